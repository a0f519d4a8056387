package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedesk/pkg/platform/sentinel"
	"feedesk/pkg/testutil"
)

func TestInMemoryLock(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "a held transaction", func(t *testing.T) {
		l := NewInMemory()
		unlock, err := l.TryLock(ctx, "TX1")
		require.NoError(t, err)

		testutil.When(t, "another request locks the same transaction", func(t *testing.T) {
			_, err := l.TryLock(ctx, "TX1")
			testutil.Then(t, "it is rejected without waiting", func(t *testing.T) {
				assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
			})
		})

		testutil.When(t, "a different transaction is locked", func(t *testing.T) {
			other, err := l.TryLock(ctx, "TX2")
			testutil.Then(t, "it succeeds", func(t *testing.T) {
				require.NoError(t, err)
				other()
			})
		})

		testutil.When(t, "the holder releases twice", func(t *testing.T) {
			unlock()
			unlock()
			testutil.Then(t, "the transaction can be locked again", func(t *testing.T) {
				again, err := l.TryLock(ctx, "TX1")
				require.NoError(t, err)
				again()
				assert.Zero(t, l.Held())
			})
		})
	})
}

func TestInMemoryLockContention(t *testing.T) {
	l := NewInMemory()
	var wg sync.WaitGroup
	var acquired atomic.Int32
	start := make(chan struct{})
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.TryLock(context.Background(), "TX-RACE"); err == nil {
				acquired.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}

func TestNoopLock(t *testing.T) {
	var l Noop
	a, err := l.TryLock(context.Background(), "TX1")
	require.NoError(t, err)
	b, err := l.TryLock(context.Background(), "TX1")
	require.NoError(t, err)
	a()
	b()
}

func TestInMemoryLockCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInMemory().TryLock(ctx, "TX1")
	assert.ErrorIs(t, err, context.Canceled)
}
