package observability

import (
	"context"
	"log"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Trust-Square/luma-mcp-server/internal/observability"

type toolInstruments struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

var instruments atomic.Pointer[toolInstruments]

// BindMeterProvider creates the tool-call instruments on mp. Until it is
// called the global provider is used.
func BindMeterProvider(mp metric.MeterProvider) {
	meter := mp.Meter(meterName)
	ti := &toolInstruments{}
	var err error
	ti.calls, err = meter.Int64Counter("luma_mcp.tool.calls",
		metric.WithDescription("Number of tool calls by tool and status"))
	if err != nil {
		log.Printf("[observability] tool call counter: %v", err)
	}
	ti.duration, err = meter.Float64Histogram("luma_mcp.tool.duration",
		metric.WithDescription("Tool call duration"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Printf("[observability] tool duration histogram: %v", err)
	}
	instruments.Store(ti)
}

func recordToolCall(ctx context.Context, tool, status string, durationMs int64) {
	ti := instruments.Load()
	if ti == nil {
		BindMeterProvider(otel.GetMeterProvider())
		ti = instruments.Load()
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	if ti.calls != nil {
		ti.calls.Add(ctx, 1, attrs)
	}
	if ti.duration != nil {
		ti.duration.Record(ctx, float64(durationMs), attrs)
	}
}
