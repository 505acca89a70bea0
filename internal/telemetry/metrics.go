package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jensholdgaard/player-auction"

// AuctionMetrics are the service's domain instruments. A nil
// *AuctionMetrics records nothing.
type AuctionMetrics struct {
	actions         metric.Int64Counter
	biddingDuration metric.Float64Histogram
	auditDropped    metric.Int64Counter
}

// NewAuctionMetrics creates the instruments on mp.
func NewAuctionMetrics(mp metric.MeterProvider) (*AuctionMetrics, error) {
	meter := mp.Meter(meterName)

	actions, err := meter.Int64Counter("auction.actions",
		metric.WithDescription("Auction actions handled, by action and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating auction.actions counter: %w", err)
	}
	duration, err := meter.Float64Histogram("auction.bidding_duration",
		metric.WithDescription("Seconds a player spent on the block before being sold."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(5, 15, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, fmt.Errorf("creating auction.bidding_duration histogram: %w", err)
	}
	dropped, err := meter.Int64Counter("audit.dropped",
		metric.WithDescription("Audit events discarded because the recorder queue was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating audit.dropped counter: %w", err)
	}

	return &AuctionMetrics{actions: actions, biddingDuration: duration, auditDropped: dropped}, nil
}

// Action counts one handled action. outcome is "ok", "duplicate" or the
// error kind.
func (m *AuctionMetrics) Action(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// BiddingDuration records how long a sold player was on the block.
func (m *AuctionMetrics) BiddingDuration(ctx context.Context, seconds int64) {
	if m == nil {
		return
	}
	m.biddingDuration.Record(ctx, float64(seconds))
}

// AuditDropped counts a discarded audit event.
func (m *AuctionMetrics) AuditDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditDropped.Add(ctx, 1)
}
