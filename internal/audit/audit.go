// Package audit records tournament history off the request path. Record
// never blocks: events are queued for a single worker that writes them to
// the event store and hands them to any sinks. A full queue drops the
// event and logs a warning; a failed write is logged and forgotten.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/telemetry"
)

const writeTimeout = 5 * time.Second

// Sink receives every recorded event after it has been stored.
type Sink interface {
	Notify(ctx context.Context, ev event.Event) error
}

// Recorder is the asynchronous audit writer.
type Recorder struct {
	events  event.Store
	sinks   []Sink
	queue   chan event.Event
	logger  *slog.Logger
	metrics *telemetry.AuctionMetrics
	dropped atomic.Int64
}

// NewRecorder returns a Recorder buffering up to size events.
func NewRecorder(events event.Store, size int, logger *slog.Logger, metrics *telemetry.AuctionMetrics, sinks ...Sink) *Recorder {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		events:  events,
		sinks:   sinks,
		queue:   make(chan event.Event, size),
		logger:  logger,
		metrics: metrics,
	}
}

// Record queues ev. data is marshalled into ev.Data when non-nil.
func (r *Recorder) Record(ctx context.Context, ev event.Event, data any) {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			r.logger.ErrorContext(ctx, "encoding audit payload",
				slog.String("type", string(ev.Type)),
				slog.Any("error", err),
			)
			return
		}
		ev.Data = raw
	}

	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		r.metrics.AuditDropped(ctx)
		r.logger.WarnContext(ctx, "audit queue full, dropping event",
			slog.String("tournament", ev.AggregateID),
			slog.String("type", string(ev.Type)),
		)
	}
}

// Dropped returns how many events were discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run writes queued events until ctx is cancelled, then drains whatever is
// still queued and returns.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.queue:
			r.write(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.write(ctx, ev)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev event.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.events.Append(ctx, ev); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("tournament", ev.AggregateID),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
	for _, s := range r.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			r.logger.WarnContext(ctx, "audit sink failed",
				slog.String("type", string(ev.Type)),
				slog.Any("error", err),
			)
		}
	}
}
