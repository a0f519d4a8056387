package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/httputil"
	"feedesk/pkg/requestcontext"
)

// Service defines the receipt operations the handler exposes.
type Service interface {
	IssueReceipt(ctx context.Context, req *models.ReceiptRequest) (*models.IssueResult, error)
	GetReceipt(ctx context.Context, transactionID string) (*models.RegistrationEntry, error)
}

// Handler wires receipt endpoints to the receipt service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts receipt endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/generate-receipt/", h.HandleGenerateReceipt)
	r.Get("/receipts/{transaction_id}", h.HandleGetReceipt)
	r.Get("/healthz/", h.HandleHealth)
}

// HandleGenerateReceipt handles POST /generate-receipt/.
func (h *Handler) HandleGenerateReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := decodeReceiptRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode receipt form",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.IssueReceipt(ctx, req)
	if err != nil {
		h.writeIssueError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "receipt issued",
		"request_id", requestID,
		"transaction_id", req.TransactionID,
		"receipt_no", result.ReceiptNo,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromResult(result))
}

func (h *Handler) writeIssueError(ctx context.Context, w http.ResponseWriter, err error) {
	var dup *models.DuplicateTransactionError
	var stageErr *models.StageError
	switch {
	case errors.As(err, &dup):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error:            "duplicate_transaction",
			ErrorDescription: dup.Error(),
		})
	case errors.Is(err, models.ErrTransactionInProgress):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error:            "transaction_in_progress",
			ErrorDescription: err.Error(),
		})
	case errors.As(err, &stageErr):
		h.logger.ErrorContext(ctx, "receipt generation failed",
			"request_id", requestcontext.RequestID(ctx),
			"stage", string(stageErr.Stage),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{
			Error:            string(stageErr.Stage) + "_failed",
			ErrorDescription: stageErr.Error(),
			Stage:            string(stageErr.Stage),
		})
	default:
		httputil.WriteError(w, err)
	}
}

// HandleGetReceipt handles GET /receipts/{transaction_id}.
func (h *Handler) HandleGetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := h.service.GetReceipt(ctx, chi.URLParam(r, "transaction_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
