package converter

import (
	"context"
	"fmt"
	"log/slog"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/circuit"
)

// Failover prefers primary and falls back to secondary. While the breaker is open the primary
// is skipped; fallback successes during that time count toward closing it.
type Failover struct {
	primary   Converter
	secondary Converter
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

type FailoverOption func(*Failover)

func WithBreaker(b *circuit.Breaker) FailoverOption {
	return func(f *Failover) {
		if b != nil {
			f.breaker = b
		}
	}
}

func WithFailoverLogger(logger *slog.Logger) FailoverOption {
	return func(f *Failover) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewFailover(primary, secondary Converter, opts ...FailoverOption) *Failover {
	f := &Failover{
		primary:   primary,
		secondary: secondary,
		breaker:   circuit.New("converter"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Failover) Convert(ctx context.Context, doc models.Artifact) ([]byte, error) {
	var primaryErr error
	if !f.breaker.IsOpen() {
		pdf, err := f.primary.Convert(ctx, doc)
		if err == nil {
			f.breaker.RecordSuccess()
			return pdf, nil
		}
		primaryErr = err
		if _, change := f.breaker.RecordFailure(); change.Opened {
			f.logger.WarnContext(ctx, "primary converter circuit opened",
				"breaker", f.breaker.Name(),
				"error", err,
			)
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	pdf, err := f.secondary.Convert(ctx, doc)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("primary converter: %v; secondary converter: %w", primaryErr, err)
		}
		return nil, fmt.Errorf("secondary converter: %w", err)
	}
	if f.breaker.IsOpen() {
		if _, change := f.breaker.RecordSuccess(); change.Closed {
			f.logger.InfoContext(ctx, "primary converter circuit closed", "breaker", f.breaker.Name())
		}
	}
	return pdf, nil
}
