package parking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is how arrival and departure times are rendered to
// operators.
const TimestampLayout = "2006-01-02 15:04:05"

// Arrival is the outcome of a successful Arrive call: either a slot or a
// place in the waiting list. Being queued is not an error.
type Arrival struct {
	Plate    string
	Slot     int
	Queued   bool
	Position int
	Time     time.Time
}

type BillingResult struct {
	Plate         string
	Slot          int
	VIP           bool
	ArrivalTime   time.Time
	DepartureTime time.Time
	Duration      time.Duration
	Hours         int64
	AmountDue     decimal.Decimal
}

// Departure is a bill plus the waiting vehicle, if any, that took over a
// slot as a result.
type Departure struct {
	BillingResult
	Promoted *OccupancyRecord
}

// SlotRelease describes an administrative release.
type SlotRelease struct {
	Slot     int
	Evicted  *OccupancyRecord
	Promoted *OccupancyRecord
}

// Enqueued is the outcome of EnqueueOnly. Promoted is set when the request
// did not have to wait.
type Enqueued struct {
	WaitingRequest
	Promoted *OccupancyRecord
}

type Status struct {
	Capacity int
	Occupied []OccupancyRecord
	Free     []int
	Waiting  []WaitingRequest
}

type Option func(*ParkingLot)

// WithClock replaces time.Now as the source of arrival and departure times.
func WithClock(now func() time.Time) Option {
	return func(pl *ParkingLot) {
		pl.now = now
	}
}

func WithRates(rates Rates) Option {
	return func(pl *ParkingLot) {
		pl.rates = rates
	}
}

// ParkingLot allocates slots, keeps the waiting list and bills departures.
// Every exported method runs under a single lock, so the slot pool, the
// registry and the waiting list are always observed and changed together.
type ParkingLot struct {
	mu       sync.Mutex
	pool     *SlotPool
	registry *Registry
	queue    *WaitQueue
	billing  *BillingCalculator
	rates    Rates
	now      func() time.Time
}

func NewParkingLot(capacity int, opts ...Option) (*ParkingLot, error) {
	pl := &ParkingLot{
		rates: DefaultRates(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(pl)
	}

	billing, err := NewBillingCalculator(pl.rates)
	if err != nil {
		return nil, err
	}
	pl.billing = billing

	pool, err := NewSlotPool(capacity)
	if err != nil {
		return nil, err
	}
	pl.pool = pool
	pl.registry = NewRegistry()
	pl.queue = NewWaitQueue()

	return pl, nil
}

// Initialize resets the lot to capacity empty slots and an empty waiting
// list. Nothing carries over.
func (pl *ParkingLot) Initialize(capacity int) error {
	_, err := pl.reset(capacity)
	return err
}

// reset is Initialize that also reports what was dropped.
func (pl *ParkingLot) reset(capacity int) (Status, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	before := Status{
		Capacity: pl.pool.Capacity(),
		Occupied: pl.registry.Records(),
		Waiting:  pl.queue.Snapshot(),
	}
	if err := pl.pool.Initialize(capacity); err != nil {
		return Status{}, err
	}
	pl.registry = NewRegistry()
	pl.queue = NewWaitQueue()
	return before, nil
}

func (pl *ParkingLot) Arrive(plate string, vip bool) (Arrival, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return Arrival{}, ErrInvalidPlate
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if err := pl.checkInactive(plate); err != nil {
		return Arrival{}, err
	}

	now := pl.now()

	slot, err := pl.pool.AllocateLowest()
	if errors.Is(err, ErrPoolExhausted) {
		req, err := pl.queue.Enqueue(plate, vip, now)
		if err != nil {
			return Arrival{}, err
		}
		return Arrival{Plate: plate, Queued: true, Position: req.Position, Time: now}, nil
	}
	if err != nil {
		return Arrival{}, err
	}

	if _, err := pl.registry.Register(plate, slot, vip, now); err != nil {
		pl.mustRelease(slot)
		return Arrival{}, err
	}

	return Arrival{Plate: plate, Slot: slot, Time: now}, nil
}

// Depart bills plate, frees its slot and moves the next waiting vehicle in.
func (pl *ParkingLot) Depart(plate string) (*Departure, error) {
	plate = NormalizePlate(plate)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	record, ok := pl.registry.Lookup(plate)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, plate)
	}

	now := pl.now()
	fee := pl.billing.ComputeFee(record.ArrivalTime, now, record.VIP)

	if _, err := pl.registry.Remove(plate); err != nil {
		return nil, err
	}
	pl.mustRelease(record.Slot)

	return &Departure{
		BillingResult: BillingResult{
			Plate:         record.Plate,
			Slot:          record.Slot,
			VIP:           record.VIP,
			ArrivalTime:   record.ArrivalTime,
			DepartureTime: now,
			Duration:      fee.Duration,
			Hours:         fee.Hours,
			AmountDue:     fee.Amount,
		},
		Promoted: pl.promote(now),
	}, nil
}

// Release frees slot outside of a departure, for operator corrections.
// A vehicle still recorded in the slot is evicted without a bill.
func (pl *ParkingLot) Release(slot int) (*SlotRelease, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if slot < 1 || slot > pl.pool.Capacity() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if pl.pool.IsFree(slot) {
		return nil, fmt.Errorf("%w: %d", ErrDoubleRelease, slot)
	}

	result := &SlotRelease{Slot: slot}
	if record, ok := pl.registry.LookupSlot(slot); ok {
		evicted, err := pl.registry.Remove(record.Plate)
		if err != nil {
			return nil, err
		}
		result.Evicted = evicted
	}

	if err := pl.pool.Release(slot); err != nil {
		return nil, err
	}
	result.Promoted = pl.promote(pl.now())

	return result, nil
}

// EnqueueOnly puts plate on the waiting list without trying the pool first.
// A slot never stays free while a vehicle waits, so if one is free the
// request is promoted before the call returns.
func (pl *ParkingLot) EnqueueOnly(plate string, vip bool) (*Enqueued, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, ErrInvalidPlate
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if _, ok := pl.registry.Lookup(plate); ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActive, plate)
	}

	now := pl.now()
	req, err := pl.queue.Enqueue(plate, vip, now)
	if err != nil {
		return nil, err
	}
	return &Enqueued{WaitingRequest: *req, Promoted: pl.promote(now)}, nil
}

func (pl *ParkingLot) Lookup(plate string) (OccupancyRecord, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	record, ok := pl.registry.Lookup(NormalizePlate(plate))
	if !ok {
		return OccupancyRecord{}, false
	}
	return *record, true
}

func (pl *ParkingLot) WaitingPosition(plate string) (int, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return pl.queue.Position(NormalizePlate(plate))
}

func (pl *ParkingLot) Status() Status {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return Status{
		Capacity: pl.pool.Capacity(),
		Occupied: pl.registry.Records(),
		Free:     pl.pool.FreeSlots(),
		Waiting:  pl.queue.Snapshot(),
	}
}

func (pl *ParkingLot) Capacity() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return pl.pool.Capacity()
}

func (pl *ParkingLot) Rates() Rates {
	return pl.billing.Rates()
}

func (pl *ParkingLot) checkInactive(plate string) error {
	if _, ok := pl.registry.Lookup(plate); ok {
		return fmt.Errorf("%w: %s is parked", ErrAlreadyActive, plate)
	}
	if pl.queue.Contains(plate) {
		return fmt.Errorf("%w: %s is waiting", ErrAlreadyActive, plate)
	}
	return nil
}

// promote moves the head of the waiting list into the lowest free slot.
// Called with pl.mu held, right after a slot was freed.
func (pl *ParkingLot) promote(now time.Time) *OccupancyRecord {
	if pl.queue.Len() == 0 {
		return nil
	}

	slot, err := pl.pool.AllocateLowest()
	if err != nil {
		return nil
	}

	req, _ := pl.queue.DequeueNext()
	record, err := pl.registry.Register(req.Plate, slot, req.VIP, now)
	if err != nil {
		// A waiting plate is never registered and a freshly allocated slot
		// is never bound, so this means the lot's state is corrupt.
		panic(fmt.Sprintf("parking: promote %s into slot %d: %v", req.Plate, slot, err))
	}

	out := *record
	return &out
}

func (pl *ParkingLot) mustRelease(slot int) {
	if err := pl.pool.Release(slot); err != nil {
		panic(fmt.Sprintf("parking: release slot %d: %v", slot, err))
	}
}
