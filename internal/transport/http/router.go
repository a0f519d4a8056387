package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"feedesk/internal/platform/metrics"
	"feedesk/internal/platform/middleware"
	"feedesk/internal/receipt/handler"
	dErrors "feedesk/pkg/domain-errors"
	"feedesk/pkg/platform/httputil"
	"feedesk/pkg/platform/middleware/metadata"
	"feedesk/pkg/platform/middleware/request"
	"feedesk/pkg/platform/middleware/requesttime"
)

// RouterConfig carries what NewRouter needs beyond the route handlers.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter applies the shared middleware chain and mounts the receipt endpoints and
// /metrics. Unknown routes and methods answer with JSON errors.
func NewRouter(receipts *handler.Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		request.RequestID,
		metadata.ClientMetadata,
		request.Logger(logger),
		request.Recovery(logger),
		middleware.CORS(cfg.AllowedOrigins),
	)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(requesttime.Middleware, request.Timeout(cfg.RequestTimeout))
		receipts.Register(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Error:            "method_not_allowed",
			ErrorDescription: "method not allowed",
		})
	})
	return r
}
