package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/suite"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/sentinel"
)

// Store is the behaviour every backend shares.
type Store interface {
	Load(ctx context.Context) ([]models.RegistrationEntry, error)
	Exists(ctx context.Context, transactionID string) (bool, error)
	Find(ctx context.Context, transactionID string) (*models.RegistrationEntry, error)
	Count(ctx context.Context) (int, error)
	Append(ctx context.Context, entry models.RegistrationEntry) error
}

// ContractSuite runs the shared ledger behaviour against the store built by newStore.
type ContractSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	ctx      context.Context
}

func (s *ContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func newEntry(txID string) models.RegistrationEntry {
	return models.RegistrationEntry{
		ReceiptNo:     "CTC20240601103000" + txID,
		ApplicationNo: "202406011030001",
		StudentName:   "JANE DOE",
		Branch:        "CSE",
		Year:          "2",
		College:       "ABC",
		Course:        "BTech",
		Mobile:        "9999999999",
		Email:         "jane@example.com",
		PayFor:        "Tuition",
		Amount:        "50000",
		PaymentMode:   "UPI",
		PaymentDate:   "2024-06-01",
		TransactionID: txID,
		Timestamp:     "20240601103000",
	}
}

func (s *ContractSuite) TestEmptyLedger() {
	entries, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(entries)
	s.NotNil(entries)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	exists, err := s.store.Exists(s.ctx, "TX1")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.store.Find(s.ctx, "TX1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ContractSuite) TestAppendAndRead() {
	s.Run("appends preserve order", func() {
		for _, id := range []string{"TX1", "TX2", "TX3"} {
			s.Require().NoError(s.store.Append(s.ctx, newEntry(id)))
		}

		entries, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal("TX1", entries[0].TransactionID)
		s.Equal("TX3", entries[2].TransactionID)
		s.Equal(newEntry("TX2"), entries[1])

		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, n)
	})

	s.Run("exists and find", func() {
		exists, err := s.store.Exists(s.ctx, "TX2")
		s.Require().NoError(err)
		s.True(exists)

		found, err := s.store.Find(s.ctx, "TX2")
		s.Require().NoError(err)
		s.Equal("CTC20240601103000TX2", found.ReceiptNo)
	})

	s.Run("duplicate transaction is a conflict", func() {
		dup := newEntry("TX1")
		dup.ReceiptNo = "CTC20240601103000RETRY"
		err := s.store.Append(s.ctx, dup)
		s.ErrorIs(err, sentinel.ErrConflict)

		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, n)
	})
}

func (s *ContractSuite) TestConcurrentAppendSameTransaction() {
	const writers = 20
	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := newEntry("TX-RACE")
			e.ReceiptNo = fmt.Sprintf("CTC-RACE-%02d", i)
			err := s.store.Append(s.ctx, e)
			switch {
			case err == nil:
				ok.Add(1)
			case isConflict(err):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(writers-1), conflicts.Load())
	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}
