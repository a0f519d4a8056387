package identifier

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func TestNewReceiptNo(t *testing.T) {
	t.Run("default shape", func(t *testing.T) {
		no := New().NewReceiptNo(fixed)
		assert.Regexp(t, regexp.MustCompile(`^CTC20240601103000[0-9A-F]{6}$`), no)
	})

	t.Run("custom prefix and suffix", func(t *testing.T) {
		g := New(WithPrefix("FEE"), WithSuffixLength(4), WithRandomSource(func() string { return "abcdef" }))
		assert.Equal(t, "FEE20240601103000ABCD", g.NewReceiptNo(fixed))
	})

	t.Run("suffix length is clamped", func(t *testing.T) {
		g := New(WithSuffixLength(1), WithRandomSource(func() string { return "12345" }))
		assert.Equal(t, "CTC20240601103000123", g.NewReceiptNo(fixed))

		long := New(WithSuffixLength(100)).NewReceiptNo(fixed)
		assert.Len(t, long, len("CTC20240601103000")+32)
	})

	t.Run("short random source is extended", func(t *testing.T) {
		g := New(WithSuffixLength(5), WithRandomSource(func() string { return "ab" }))
		assert.Equal(t, "CTC20240601103000ABABA", g.NewReceiptNo(fixed))
	})

	t.Run("empty random source falls back to uuid hex", func(t *testing.T) {
		g := New(WithSuffixLength(8), WithRandomSource(func() string { return "" }))
		assert.Regexp(t, regexp.MustCompile(`^CTC20240601103000[0-9A-F]{8}$`), g.NewReceiptNo(fixed))

		assert.Regexp(t, regexp.MustCompile(`^CTC20240601103000[0-9A-F]{6}$`),
			New(WithRandomSource(nil)).NewReceiptNo(fixed))
	})

	t.Run("same second yields distinct numbers", func(t *testing.T) {
		g := New()
		seen := make(map[string]struct{}, 50)
		for range 50 {
			no := g.NewReceiptNo(fixed)
			_, dup := seen[no]
			require.False(t, dup, "duplicate receipt number %s", no)
			seen[no] = struct{}{}
		}
	})
}

func TestNewApplicationNo(t *testing.T) {
	g := New()
	assert.Equal(t, "202406011030001", g.NewApplicationNo(fixed, 0))
	assert.Equal(t, "202406011030002", g.NewApplicationNo(fixed, 1))
	assert.Equal(t, "2024060110300042", g.NewApplicationNo(fixed, 41))
}
