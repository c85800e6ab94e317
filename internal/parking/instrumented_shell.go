package parking

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"parking-lot/internal/logging"
)

// maxLineLength is the longest command line the shell accepts.
const maxLineLength = 1 << 20

type InstrumentedShell struct {
	instrumentedParkingLot *InstrumentedParkingLot
	scanner                *bufio.Scanner
	out                    io.Writer
	telemetry              *TelemetryProvider
	lotOptions             []Option
}

// NewInstrumentedShell reads commands from in and writes replies to out.
// lot may be nil, in which case create_parking_lot must come first.
// lotOptions apply to lots the shell creates itself.
func NewInstrumentedShell(telemetry *TelemetryProvider, lot *InstrumentedParkingLot, in io.Reader, out io.Writer, lotOptions ...Option) *InstrumentedShell {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	return &InstrumentedShell{
		instrumentedParkingLot: lot,
		scanner:                scanner,
		out:                    out,
		telemetry:              telemetry,
		lotOptions:             lotOptions,
	}
}

func (s *InstrumentedShell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil {
		if !s.scanner.Scan() {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		// Create a new span for each command
		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))

		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	if err := s.scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Error(ctx, "shell stopped reading input", "error", err)
		s.printf("Error: %s\n", err)
	}

	span.AddEvent("shell_ended")
}

func (s *InstrumentedShell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *InstrumentedShell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *InstrumentedShell) processCommand(ctx context.Context, input string) {
	tracer := s.telemetry.Tracer()
	_, span := tracer.Start(ctx, "shell.parse_command")
	defer span.End()

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	command := parts[0]
	span.SetAttributes(attribute.String("command.name", command))

	switch command {
	case "create_parking_lot":
		s.handleCreateParkingLot(ctx, parts)
	case "arrive", "park":
		s.handleArrive(ctx, parts)
	case "depart":
		s.handleDepart(ctx, parts)
	case "release", "leave":
		s.handleRelease(ctx, parts)
	case "enqueue":
		s.handleEnqueue(ctx, parts)
	case "status":
		s.handleStatus(ctx)
	case "waiting":
		s.handleWaiting(ctx)
	case "slot_number_for_registration_number":
		s.handleSlotNumberForRegistrationNumber(ctx, parts)
	default:
		span.AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		s.printf("Unknown command: %s\n", command)
	}
}

func (s *InstrumentedShell) requireLot(span trace.Span) bool {
	if s.instrumentedParkingLot == nil {
		span.AddEvent("parking_lot_not_created")
		s.println("Parking lot not created")
		return false
	}
	return true
}

func (s *InstrumentedShell) handleCreateParkingLot(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.create_parking_lot")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.println(usageCreate)
		return
	}

	capacity, err := strconv.Atoi(parts[1])
	if err != nil || capacity <= 0 {
		span.RecordError(fmt.Errorf("invalid capacity: %s", parts[1]))
		span.AddEvent("invalid_capacity")
		s.println("Invalid capacity")
		return
	}

	span.SetAttributes(attribute.Int("parking_lot.capacity", capacity))

	if s.instrumentedParkingLot != nil {
		err = s.instrumentedParkingLot.Initialize(ctx, capacity)
	} else {
		s.instrumentedParkingLot, err = NewInstrumentedParkingLot(capacity, s.telemetry, s.lotOptions...)
	}
	if err != nil {
		span.RecordError(err)
		span.AddEvent("parking_lot_creation_failed")
		s.println(shellMessage(err))
		return
	}

	span.AddEvent("parking_lot_created")
	s.printf("Created a parking lot with %d slots\n", capacity)
}

func (s *InstrumentedShell) handleArrive(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.arrive_command")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	plate, vip, err := parsePlateArgs(parts[1:])
	if err != nil {
		span.AddEvent("invalid_arguments")
		s.println(usageArrive)
		return
	}

	arrival, err := s.instrumentedParkingLot.Arrive(ctx, plate, vip)
	if err != nil {
		span.AddEvent("arrival_failed")
		s.println(shellMessage(err))
		return
	}

	span.AddEvent("arrival_successful", trace.WithAttributes(
		attribute.Int("allocated_slot", arrival.Slot),
		attribute.Bool("queued", arrival.Queued),
	))
	s.println(formatArrival(arrival))
}

func (s *InstrumentedShell) handleDepart(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.depart_command")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.println(usageDepart)
		return
	}

	departure, err := s.instrumentedParkingLot.Depart(ctx, parts[1])
	if err != nil {
		span.AddEvent("departure_failed")
		s.println(shellMessage(err))
		return
	}

	span.AddEvent("departure_successful")
	s.println(formatDeparture(departure, s.instrumentedParkingLot.Rates().Precision))
}

func (s *InstrumentedShell) handleRelease(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.release_command")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.println(usageRelease)
		return
	}

	slotNumber, err := strconv.Atoi(parts[1])
	if err != nil {
		span.RecordError(fmt.Errorf("invalid slot number: %s", parts[1]))
		span.AddEvent("invalid_slot_number")
		s.println("Invalid slot number")
		return
	}

	span.SetAttributes(attribute.Int("slot_number", slotNumber))

	release, err := s.instrumentedParkingLot.Release(ctx, slotNumber)
	if err != nil {
		span.AddEvent("release_failed")
		s.println(shellMessage(err))
		return
	}

	span.AddEvent("release_successful")
	s.println(formatRelease(release))
}

func (s *InstrumentedShell) handleEnqueue(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.enqueue_command")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	plate, vip, err := parsePlateArgs(parts[1:])
	if err != nil {
		span.AddEvent("invalid_arguments")
		s.println(usageEnqueue)
		return
	}

	req, err := s.instrumentedParkingLot.EnqueueOnly(ctx, plate, vip)
	if err != nil {
		span.AddEvent("enqueue_failed")
		s.println(shellMessage(err))
		return
	}

	if req.Promoted != nil {
		s.println(formatPromotion(req.Promoted))
		return
	}
	s.printf("Queued at position %d\n", req.Position)
}

func (s *InstrumentedShell) handleStatus(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.status_command")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	status := s.instrumentedParkingLot.Status(ctx)
	if len(status.Occupied) == 0 {
		span.AddEvent("parking_lot_empty")
		s.println("Parking lot is empty")
		return
	}

	span.SetAttributes(attribute.Int("occupied_slots_count", len(status.Occupied)))
	span.AddEvent("status_retrieved")

	s.println("Slot No.\tPlate\t\tVIP\tArrival")
	for _, record := range status.Occupied {
		s.printf("%d\t\t%s\t%s\t%s\n", record.Slot, record.Plate, formatVIP(record.VIP), record.ArrivalTime.Format(TimestampLayout))
	}
}

func (s *InstrumentedShell) handleWaiting(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.waiting_command")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	waiting := s.instrumentedParkingLot.Status(ctx).Waiting
	if len(waiting) == 0 {
		s.println("Waiting list is empty")
		return
	}

	span.SetAttributes(attribute.Int("waiting_count", len(waiting)))

	s.println("Position\tPlate\t\tVIP\tSince")
	for _, req := range waiting {
		s.printf("%d\t\t%s\t%s\t%s\n", req.Position, req.Plate, formatVIP(req.VIP), req.EnqueuedAt.Format(TimestampLayout))
	}
}

func (s *InstrumentedShell) handleSlotNumberForRegistrationNumber(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.find_slot_by_registration")
	defer span.End()

	if !s.requireLot(span) {
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.println(usageFindSlot)
		return
	}

	plate := parts[1]
	span.SetAttributes(attribute.String("registration_number", plate))

	record, ok := s.instrumentedParkingLot.Lookup(ctx, plate)
	if !ok {
		if position, waiting := s.instrumentedParkingLot.WaitingPosition(ctx, plate); waiting {
			span.AddEvent("vehicle_waiting", trace.WithAttributes(
				attribute.Int("waiting_position", position),
			))
			s.printf("Waiting at position %d\n", position)
			return
		}
		span.AddEvent("vehicle_not_found")
		s.println("Not found")
		return
	}

	span.AddEvent("vehicle_found", trace.WithAttributes(
		attribute.Int("slot_number", record.Slot),
	))
	s.printf("%d\n", record.Slot)
}
