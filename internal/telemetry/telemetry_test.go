package telemetry_test

import (
	"context"
	"log/slog"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jensholdgaard/player-auction/internal/config"
	"github.com/jensholdgaard/player-auction/internal/telemetry"
)

func TestNewNopProvider(t *testing.T) {
	p := telemetry.NewNopProvider()

	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil || p.Logger == nil {
		t.Fatalf("provider has nil members: %+v", p)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestSetup_NoEndpoint(t *testing.T) {
	p, err := telemetry.Setup(context.Background(), config.TelemetryConfig{ServiceName: "auctiond", ServiceVersion: "test"}, slog.LevelWarn)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx := context.Background()
	if p.Logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be dropped at warn level")
	}
	if !p.Logger.Enabled(ctx, slog.LevelError) {
		t.Error("error should pass at warn level")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: " WARN ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "info", want: slog.LevelInfo},
		{in: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := telemetry.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogWithTrace(t *testing.T) {
	logger := slog.Default()
	if got := telemetry.LogWithTrace(context.Background(), logger); got != logger {
		t.Error("context without a span should return the same logger")
	}

	p := telemetry.NewNopProvider()
	ctx, span := p.TracerProvider.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()
	if got := telemetry.LogWithTrace(ctx, logger); got == logger {
		t.Error("sampled span should enrich the logger")
	}
}

func TestAuctionMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewAuctionMetrics(mp)
	if err != nil {
		t.Fatalf("NewAuctionMetrics: %v", err)
	}
	ctx := context.Background()

	m.Action(ctx, "SOLD", "ok")
	m.Action(ctx, "SOLD", "ok")
	m.Action(ctx, "SOLD", "bad_request")
	m.BiddingDuration(ctx, 42)
	m.AuditDropped(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			got[md.Name] = true
			if md.Name != "auction.actions" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("auction.actions data = %T", md.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			if total != 3 || len(sum.DataPoints) != 2 {
				t.Errorf("auction.actions total=%d series=%d, want 3 over 2", total, len(sum.DataPoints))
			}
		}
	}
	for _, name := range []string{"auction.actions", "auction.bidding_duration", "audit.dropped"} {
		if !got[name] {
			t.Errorf("metric %s not collected", name)
		}
	}

	var nilMetrics *telemetry.AuctionMetrics
	nilMetrics.Action(ctx, "SOLD", "ok")
}
