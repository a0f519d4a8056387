package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher writes events straight to the store.
type Publisher struct {
	store Store
	now   func() time.Time
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, now: time.Now}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = p.now()
	}
	return p.store.Append(ctx, base)
}

// AsyncPublisher hands events to a Worker through a bounded queue so a slow sink never
// delays a response. Events are dropped when the queue is full.
type AsyncPublisher struct {
	inbox   chan Event
	dropped atomic.Int64
	logger  *slog.Logger
	now     func() time.Time
}

func NewAsyncPublisher(capacity int, logger *slog.Logger) *AsyncPublisher {
	if capacity <= 0 {
		capacity = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncPublisher{
		inbox:  make(chan Event, capacity),
		logger: logger,
		now:    time.Now,
	}
}

func (p *AsyncPublisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = p.now()
	}
	select {
	case p.inbox <- base:
	default:
		n := p.dropped.Add(1)
		p.logger.WarnContext(ctx, "audit queue full, event dropped",
			"action", string(base.Action),
			"transaction_id", base.TransactionID,
			"dropped_total", n,
		)
	}
	return nil
}

// Inbox is the receive side for the Worker.
func (p *AsyncPublisher) Inbox() <-chan Event {
	return p.inbox
}

func (p *AsyncPublisher) Dropped() int64 {
	return p.dropped.Load()
}
