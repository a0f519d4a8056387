package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"feedesk/internal/platform/metrics"
	"feedesk/internal/receipt/handler"
	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/middleware/request"
	"feedesk/pkg/requestcontext"
	"feedesk/pkg/testutil"
)

// stubService records the context the handler passed in.
type stubService struct {
	ctx context.Context
}

func (s *stubService) IssueReceipt(ctx context.Context, _ *models.ReceiptRequest) (*models.IssueResult, error) {
	s.ctx = ctx
	return nil, errors.New("not used")
}

func (s *stubService) GetReceipt(ctx context.Context, id string) (*models.RegistrationEntry, error) {
	s.ctx = ctx
	return &models.RegistrationEntry{TransactionID: id}, nil
}

func newTestRouter(svc *stubService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(handler.New(svc, logger), RouterConfig{
		Logger:         logger,
		Metrics:        metrics.New(prometheus.NewRegistry()),
		RequestTimeout: time.Minute,
	})
}

func TestRouter(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	testutil.Given(t, "the feedesk router", func(t *testing.T) {
		testutil.When(t, "fetching a receipt", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/receipts/TXN1"))

			testutil.Then(t, "the request carries id, time and deadline", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
				assert.Equal(t, rr.Header().Get(request.HeaderRequestID), requestcontext.RequestID(svc.ctx))
				_, hasDeadline := svc.ctx.Deadline()
				assert.True(t, hasDeadline)
			})
		})

		testutil.When(t, "calling an unknown route", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nope"))

			testutil.Then(t, "a JSON not found is returned", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
			})
		})

		testutil.When(t, "using the wrong method", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/generate-receipt/"))

			testutil.Then(t, "method not allowed is returned", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusMethodNotAllowed, "method_not_allowed")
			})
		})

		testutil.When(t, "scraping metrics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "the exposition includes HTTP latency", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.Contains(t, rr.Body.String(), "feedesk_http_request_duration_seconds")
			})
		})
	})
}
