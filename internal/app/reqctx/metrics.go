package reqctx

import (
	"context"
	"errors"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/jsamuelsen/go-request-context/reqctx"

type instruments struct {
	provider        metric.MeterProvider
	pushes          metric.Int64Counter
	pops            metric.Int64Counter
	active          metric.Int64UpDownCounter
	teardownErrors  metric.Int64Counter
	snapshotEntries metric.Int64Counter
}

var current atomic.Pointer[instruments]

// instrumentsFor returns instruments bound to the global meter provider,
// rebuilding them when the provider has been replaced.
func instrumentsFor() *instruments {
	mp := otel.GetMeterProvider()
	if in := current.Load(); in != nil && in.provider == mp {
		return in
	}

	in, err := newInstruments(mp)
	if err != nil {
		otel.Handle(err)

		in, _ = newInstruments(noop.NewMeterProvider())
		in.provider = mp
	}

	current.Store(in)

	return in
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(meterName)

	pushes, err1 := meter.Int64Counter("reqctx.pushes",
		metric.WithDescription("Request contexts pushed"))
	pops, err2 := meter.Int64Counter("reqctx.pops",
		metric.WithDescription("Request contexts popped"))
	active, err3 := meter.Int64UpDownCounter("reqctx.active",
		metric.WithDescription("Request contexts currently pushed"))
	teardownErrors, err4 := meter.Int64Counter("reqctx.teardown.errors",
		metric.WithDescription("Teardown functions that failed or panicked"))
	snapshotEntries, err5 := meter.Int64Counter("reqctx.snapshot.entries",
		metric.WithDescription("Snapshots entered on a stack"))

	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, err
	}

	return &instruments{
		provider:        mp,
		pushes:          pushes,
		pops:            pops,
		active:          active,
		teardownErrors:  teardownErrors,
		snapshotEntries: snapshotEntries,
	}, nil
}

func appAttr(app string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("app", app))
}

func (in *instruments) pushed(ctx context.Context, app string) {
	in.pushes.Add(ctx, 1, appAttr(app))
	in.active.Add(ctx, 1, appAttr(app))
}

func (in *instruments) popped(ctx context.Context, app string) {
	in.pops.Add(ctx, 1, appAttr(app))
	in.active.Add(ctx, -1, appAttr(app))
}

func (in *instruments) teardownFailed(ctx context.Context) {
	in.teardownErrors.Add(ctx, 1)
}

func (in *instruments) snapshotEntered(ctx context.Context, app string) {
	in.snapshotEntries.Add(ctx, 1, appAttr(app))
}
