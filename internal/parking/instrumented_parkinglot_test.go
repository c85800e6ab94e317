package parking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testTelemetry struct {
	provider *TelemetryProvider
	spans    *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
}

func newTestTelemetry(t *testing.T) *testTelemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return &testTelemetry{
		provider: NewTelemetryProviderFrom("parking-lot-test", tp, mp),
		spans:    spans,
		reader:   reader,
	}
}

// sum adds up every data point of the named sum instrument whose
// attributes include all of attrs.
func (tt *testTelemetry) sum(t *testing.T, name string, attrs ...attribute.KeyValue) float64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tt.reader.Collect(context.Background(), &rm))

	var total float64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if hasAttrs(dp.Attributes, attrs) {
						total += float64(dp.Value)
					}
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					if hasAttrs(dp.Attributes, attrs) {
						total += dp.Value
					}
				}
			}
		}
	}
	return total
}

func hasAttrs(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}

func (tt *testTelemetry) spanNamed(t *testing.T, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range tt.spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no ended span named %s", name)
	return nil
}

func TestInstrumentedParkingLotIntegration(t *testing.T) {
	tel := newTestTelemetry(t)
	clock := newFakeClock()

	ipl, err := NewInstrumentedParkingLot(2, tel.provider, WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()

	arrival, err := ipl.Arrive(ctx, "KA01HH1234", false)
	require.NoError(t, err)
	assert.Equal(t, 1, arrival.Slot)

	_, err = ipl.Arrive(ctx, "KA01HH9999", true)
	require.NoError(t, err)

	arrival, err = ipl.Arrive(ctx, "KA01BB0001", false)
	require.NoError(t, err)
	assert.True(t, arrival.Queued)

	record, ok := ipl.Lookup(ctx, "KA01HH1234")
	require.True(t, ok)
	assert.Equal(t, 1, record.Slot)

	clock.Advance(90 * time.Minute)

	departure, err := ipl.Depart(ctx, "KA01HH1234")
	require.NoError(t, err)
	assert.Equal(t, "40.00", departure.AmountDue.StringFixed(2))
	require.NotNil(t, departure.Promoted)
	assert.Equal(t, "KA01BB0001", departure.Promoted.Plate)

	status := ipl.Status(ctx)
	assert.Len(t, status.Occupied, 2)
	assert.Empty(t, status.Waiting)

	assert.Equal(t, float64(2), tel.sum(t, "parking_lot_occupancy"))
	assert.Equal(t, float64(0), tel.sum(t, "parking_lot_waiting"))
	assert.Equal(t, float64(2), tel.sum(t, "parking_lot_total_slots"))
	assert.Equal(t, float64(40), tel.sum(t, "parking_revenue_total"))
	assert.Equal(t, float64(2), tel.sum(t, "arrival_operations_total", attribute.String("status", "success")))
	assert.Equal(t, float64(1), tel.sum(t, "arrival_operations_total", attribute.String("status", "queued")))
	assert.Equal(t, float64(1), tel.sum(t, "departure_operations_total", attribute.String("status", "success")))

	span := tel.spanNamed(t, "parking_lot.depart")
	var promoted bool
	for _, ev := range span.Events() {
		if ev.Name == "vehicle_promoted" {
			promoted = true
		}
	}
	assert.True(t, promoted, "depart span should record the promotion")
}

func TestInstrumentedParkingLotRecordsErrors(t *testing.T) {
	tel := newTestTelemetry(t)
	ipl, err := NewInstrumentedParkingLot(1, tel.provider)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = ipl.Depart(ctx, "GHOST")
	assert.ErrorIs(t, err, ErrUnknownClient)

	_, err = ipl.Release(ctx, 1)
	assert.ErrorIs(t, err, ErrDoubleRelease)

	span := tel.spanNamed(t, "parking_lot.depart")
	assert.Equal(t, codes.Error, span.Status().Code)

	assert.Equal(t, float64(1), tel.sum(t, "departure_operations_total", attribute.String("status", "unknown_client")))
	assert.Equal(t, float64(1), tel.sum(t, "release_operations_total", attribute.String("status", "double_release")))
	assert.Equal(t, float64(0), tel.sum(t, "parking_lot_occupancy"))
}

func TestInstrumentedParkingLotReleaseAndEnqueue(t *testing.T) {
	tel := newTestTelemetry(t)
	ipl, err := NewInstrumentedParkingLot(1, tel.provider)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = ipl.Arrive(ctx, "A", false)
	require.NoError(t, err)

	req, err := ipl.EnqueueOnly(ctx, "B", true)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Position)
	assert.Equal(t, float64(1), tel.sum(t, "parking_lot_waiting"))

	release, err := ipl.Release(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, release.Evicted)
	assert.Equal(t, "A", release.Evicted.Plate)
	require.NotNil(t, release.Promoted)
	assert.Equal(t, "B", release.Promoted.Plate)

	assert.Equal(t, float64(1), tel.sum(t, "parking_lot_occupancy"))
	assert.Equal(t, float64(0), tel.sum(t, "parking_lot_waiting"))
	assert.Equal(t, float64(1), tel.sum(t, "enqueue_operations_total", attribute.String("status", "success")))
}

func TestInstrumentedParkingLotInitializeAdjustsGauges(t *testing.T) {
	tel := newTestTelemetry(t)
	ipl, err := NewInstrumentedParkingLot(1, tel.provider)
	require.NoError(t, err)

	ctx := context.Background()
	ipl.Arrive(ctx, "A", false)
	ipl.Arrive(ctx, "B", false)

	require.NoError(t, ipl.Initialize(ctx, 5))

	assert.Equal(t, float64(0), tel.sum(t, "parking_lot_occupancy"))
	assert.Equal(t, float64(0), tel.sum(t, "parking_lot_waiting"))
	assert.Equal(t, float64(5), tel.sum(t, "parking_lot_total_slots"))

	err = ipl.Initialize(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.Equal(t, float64(5), tel.sum(t, "parking_lot_total_slots"))
}

func TestInstrumentedEnqueueWithFreeSlotParks(t *testing.T) {
	tel := newTestTelemetry(t)
	ipl, err := NewInstrumentedParkingLot(2, tel.provider)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = ipl.Arrive(ctx, "A", false)
	require.NoError(t, err)

	req, err := ipl.EnqueueOnly(ctx, "W", false)
	require.NoError(t, err)
	require.NotNil(t, req.Promoted)
	assert.Equal(t, 2, req.Promoted.Slot)

	assert.Equal(t, float64(2), tel.sum(t, "parking_lot_occupancy"))
	assert.Equal(t, float64(0), tel.sum(t, "parking_lot_waiting"))

	span := tel.spanNamed(t, "parking_lot.enqueue")
	var promoted bool
	for _, ev := range span.Events() {
		if ev.Name == "vehicle_promoted" {
			promoted = true
		}
	}
	assert.True(t, promoted)
}

func TestInstrumentedWaitingPosition(t *testing.T) {
	tel := newTestTelemetry(t)
	ipl, err := NewInstrumentedParkingLot(1, tel.provider)
	require.NoError(t, err)

	ctx := context.Background()
	ipl.Arrive(ctx, "A", false)
	ipl.Arrive(ctx, "B", false)
	ipl.Arrive(ctx, "V", true)

	position, ok := ipl.WaitingPosition(ctx, "B")
	require.True(t, ok)
	assert.Equal(t, 2, position)

	_, ok = ipl.WaitingPosition(ctx, "A")
	assert.False(t, ok)

	span := tel.spanNamed(t, "parking_lot.waiting_position")
	assert.Contains(t, span.Attributes(), attribute.Int("waiting_position", 2))
}
