package parking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"parking-lot/internal/logging"
)

type InstrumentedParkingLot struct {
	*ParkingLot
	telemetry *TelemetryProvider

	// Metrics
	arrivalOperations   metric.Int64Counter
	departureOperations metric.Int64Counter
	releaseOperations   metric.Int64Counter
	enqueueOperations   metric.Int64Counter
	occupancyGauge      metric.Int64UpDownCounter
	waitingGauge        metric.Int64UpDownCounter
	totalSlotsGauge     metric.Int64UpDownCounter
	revenue             metric.Float64Counter
	operationDuration   metric.Float64Histogram
}

func NewInstrumentedParkingLot(capacity int, telemetry *TelemetryProvider, opts ...Option) (*InstrumentedParkingLot, error) {
	baseParkingLot, err := NewParkingLot(capacity, opts...)
	if err != nil {
		return nil, err
	}

	meter := telemetry.Meter()
	ipl := &InstrumentedParkingLot{
		ParkingLot: baseParkingLot,
		telemetry:  telemetry,
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&ipl.arrivalOperations, "arrival_operations_total", "Total number of arrival operations"},
		{&ipl.departureOperations, "departure_operations_total", "Total number of departure operations"},
		{&ipl.releaseOperations, "release_operations_total", "Total number of administrative slot releases"},
		{&ipl.enqueueOperations, "enqueue_operations_total", "Total number of administrative enqueues"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1")); err != nil {
			return nil, err
		}
	}

	gauges := []struct {
		dst  *metric.Int64UpDownCounter
		name string
		desc string
	}{
		{&ipl.occupancyGauge, "parking_lot_occupancy", "Current number of occupied parking slots"},
		{&ipl.waitingGauge, "parking_lot_waiting", "Current number of vehicles on the waiting list"},
		{&ipl.totalSlotsGauge, "parking_lot_total_slots", "Total number of parking slots"},
	}
	for _, g := range gauges {
		if *g.dst, err = meter.Int64UpDownCounter(g.name, metric.WithDescription(g.desc), metric.WithUnit("1")); err != nil {
			return nil, err
		}
	}

	ipl.revenue, err = meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Total amount billed on departure"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	ipl.operationDuration, err = meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of parking lot operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	ipl.totalSlotsGauge.Add(context.Background(), int64(capacity))

	return ipl, nil
}

func (ipl *InstrumentedParkingLot) Initialize(ctx context.Context, capacity int) error {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.initialize",
		trace.WithAttributes(attribute.Int("parking_lot.capacity", capacity)))
	defer span.End()

	before, err := ipl.ParkingLot.reset(capacity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ipl.occupancyGauge.Add(ctx, -int64(len(before.Occupied)))
	ipl.waitingGauge.Add(ctx, -int64(len(before.Waiting)))
	ipl.totalSlotsGauge.Add(ctx, int64(capacity-before.Capacity))

	logging.Info(ctx, "parking lot initialized",
		"capacity", capacity,
		"dropped_occupied", len(before.Occupied),
		"dropped_waiting", len(before.Waiting))

	return nil
}

func (ipl *InstrumentedParkingLot) Arrive(ctx context.Context, plate string, vip bool) (Arrival, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.arrive",
		trace.WithAttributes(
			attribute.String("vehicle.plate", plate),
			attribute.Bool("vehicle.vip", vip),
		))
	defer span.End()

	start := time.Now()

	span.AddEvent("finding_available_slot")

	arrival, err := ipl.ParkingLot.Arrive(plate, vip)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "arrive"),
		attribute.Bool("vip", vip),
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", ErrorCode(err)))
		logging.Warn(ctx, "arrival rejected", "plate", plate, "error", err)
	case arrival.Queued:
		span.SetAttributes(attribute.Int("waiting_position", arrival.Position))
		span.AddEvent("vehicle_queued", trace.WithAttributes(
			attribute.Int("position", arrival.Position),
		))
		labels = append(labels, attribute.String("status", "queued"))
		ipl.waitingGauge.Add(ctx, 1)
		logging.Info(ctx, "parking lot full, vehicle queued", "plate", arrival.Plate, "position", arrival.Position)
	default:
		span.SetAttributes(attribute.Int("allocated_slot_number", arrival.Slot))
		span.AddEvent("slot_allocated", trace.WithAttributes(
			attribute.Int("slot_number", arrival.Slot),
		))
		labels = append(labels, attribute.String("status", "success"))
		ipl.occupancyGauge.Add(ctx, 1)
		logging.Info(ctx, "vehicle parked", "plate", arrival.Plate, "slot", arrival.Slot, "vip", vip)
	}

	ipl.arrivalOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ipl.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return arrival, err
}

func (ipl *InstrumentedParkingLot) Depart(ctx context.Context, plate string) (*Departure, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.depart",
		trace.WithAttributes(
			attribute.String("vehicle.plate", plate),
		))
	defer span.End()

	start := time.Now()

	span.AddEvent("computing_bill")

	departure, err := ipl.ParkingLot.Depart(plate)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "depart"),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", ErrorCode(err)))
		logging.Warn(ctx, "departure rejected", "plate", plate, "error", err)
	} else {
		amount := departure.AmountDue.InexactFloat64()
		span.SetAttributes(
			attribute.Int("slot_number", departure.Slot),
			attribute.Bool("vehicle.vip", departure.VIP),
			attribute.Int64("billed_hours", departure.Hours),
			attribute.String("amount_due", departure.AmountDue.String()),
		)
		span.AddEvent("slot_released")
		labels = append(labels,
			attribute.String("status", "success"),
			attribute.Bool("vip", departure.VIP),
		)
		ipl.occupancyGauge.Add(ctx, -1)
		ipl.revenue.Add(ctx, amount, metric.WithAttributes(attribute.Bool("vip", departure.VIP)))
		logging.Info(ctx, "vehicle departed",
			"plate", departure.Plate,
			"slot", departure.Slot,
			"hours", departure.Hours,
			"amount_due", departure.AmountDue.String())

		ipl.recordPromotion(ctx, span, departure.Promoted)
	}

	ipl.departureOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ipl.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return departure, err
}

func (ipl *InstrumentedParkingLot) Release(ctx context.Context, slotNumber int) (*SlotRelease, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.release",
		trace.WithAttributes(
			attribute.Int("slot_number", slotNumber),
		))
	defer span.End()

	start := time.Now()

	span.AddEvent("releasing_slot")

	release, err := ipl.ParkingLot.Release(slotNumber)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "release"),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", ErrorCode(err)))
		logging.Warn(ctx, "slot release rejected", "slot", slotNumber, "error", err)
	} else {
		labels = append(labels, attribute.String("status", "success"))
		span.AddEvent("slot_released")
		if release.Evicted != nil {
			span.SetAttributes(attribute.String("evicted.plate", release.Evicted.Plate))
			ipl.occupancyGauge.Add(ctx, -1)
			logging.Warn(ctx, "vehicle evicted by slot release", "plate", release.Evicted.Plate, "slot", slotNumber)
		}
		ipl.recordPromotion(ctx, span, release.Promoted)
	}

	ipl.releaseOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ipl.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return release, err
}

func (ipl *InstrumentedParkingLot) EnqueueOnly(ctx context.Context, plate string, vip bool) (*Enqueued, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.enqueue",
		trace.WithAttributes(
			attribute.String("vehicle.plate", plate),
			attribute.Bool("vehicle.vip", vip),
		))
	defer span.End()

	start := time.Now()

	req, err := ipl.ParkingLot.EnqueueOnly(plate, vip)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "enqueue"),
		attribute.Bool("vip", vip),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", ErrorCode(err)))
	} else {
		span.SetAttributes(attribute.Int("waiting_position", req.Position))
		labels = append(labels, attribute.String("status", "success"))
		ipl.waitingGauge.Add(ctx, 1)
		logging.Info(ctx, "vehicle enqueued", "plate", req.Plate, "position", req.Position)
		ipl.recordPromotion(ctx, span, req.Promoted)
	}

	ipl.enqueueOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ipl.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return req, err
}

func (ipl *InstrumentedParkingLot) Status(ctx context.Context) Status {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.get_status")
	defer span.End()

	start := time.Now()

	status := ipl.ParkingLot.Status()

	span.SetAttributes(
		attribute.Int("occupied_slots_count", len(status.Occupied)),
		attribute.Int("waiting_count", len(status.Waiting)),
		attribute.Int("total_capacity", status.Capacity),
	)

	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "get_status"),
		attribute.String("status", "success"),
	))

	return status
}

func (ipl *InstrumentedParkingLot) Lookup(ctx context.Context, plate string) (OccupancyRecord, bool) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.lookup",
		trace.WithAttributes(
			attribute.String("vehicle.plate", plate),
		))
	defer span.End()

	start := time.Now()

	record, ok := ipl.ParkingLot.Lookup(plate)

	labels := []attribute.KeyValue{
		attribute.String("operation", "lookup"),
	}
	if ok {
		span.AddEvent("vehicle_found", trace.WithAttributes(
			attribute.Int("slot_number", record.Slot),
		))
		labels = append(labels, attribute.String("status", "found"))
	} else {
		span.AddEvent("vehicle_not_found")
		labels = append(labels, attribute.String("status", "not_found"))
	}

	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return record, ok
}

func (ipl *InstrumentedParkingLot) WaitingPosition(ctx context.Context, plate string) (int, bool) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.waiting_position",
		trace.WithAttributes(
			attribute.String("vehicle.plate", plate),
		))
	defer span.End()

	start := time.Now()

	position, ok := ipl.ParkingLot.WaitingPosition(plate)

	status := "not_found"
	if ok {
		span.SetAttributes(attribute.Int("waiting_position", position))
		status = "found"
	}

	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "waiting_position"),
		attribute.String("status", status),
	))

	return position, ok
}

func (ipl *InstrumentedParkingLot) recordPromotion(ctx context.Context, span trace.Span, promoted *OccupancyRecord) {
	if promoted == nil {
		return
	}
	span.AddEvent("vehicle_promoted", trace.WithAttributes(
		attribute.String("vehicle.plate", promoted.Plate),
		attribute.Int("slot_number", promoted.Slot),
	))
	ipl.waitingGauge.Add(ctx, -1)
	ipl.occupancyGauge.Add(ctx, 1)
	logging.Info(ctx, "waiting vehicle promoted", "plate", promoted.Plate, "slot", promoted.Slot, "vip", promoted.VIP)
}
