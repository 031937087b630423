package experience

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/roach88/keepsake/internal/experience"

// metrics holds the session's counters. Without an SDK meter provider
// installed every instrument is a no-op.
type metrics struct {
	transitions     metric.Int64Counter
	tearCompletions metric.Int64Counter
	undos           metric.Int64Counter
	pulses          metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.transitions, err = meter.Int64Counter("keepsake.scene.transitions",
		metric.WithDescription("Scene changes, including changes made by undo"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}

	m.tearCompletions, err = meter.Int64Counter("keepsake.tear.completions",
		metric.WithDescription("Tear gestures that reached the burst stage"),
		metric.WithUnit("{gesture}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tear completions counter: %w", err)
	}

	m.undos, err = meter.Int64Counter("keepsake.history.undos",
		metric.WithDescription("History entries undone"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create undos counter: %w", err)
	}

	m.pulses, err = meter.Int64Counter("keepsake.tap.pulses",
		metric.WithDescription("Accepted tap counter pulses"),
		metric.WithUnit("{pulse}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pulses counter: %w", err)
	}
	return m, nil
}

func (m *metrics) transition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *metrics) tearCompleted(ctx context.Context, mode string) {
	m.tearCompletions.Add(ctx, 1, metric.WithAttributes(attribute.String("pointer_mode", mode)))
}

func (m *metrics) undone(ctx context.Context, label string) {
	m.undos.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

func (m *metrics) pulsed(ctx context.Context, counter string) {
	m.pulses.Add(ctx, 1, metric.WithAttributes(attribute.String("counter", counter)))
}
