package parking

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLot(t *testing.T, capacity int) (*ParkingLot, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	pl, err := NewParkingLot(capacity, WithClock(clock.Now))
	require.NoError(t, err)
	return pl, clock
}

// assertConsistent checks that the occupied slots and the active records
// describe the same set.
func assertConsistent(t *testing.T, pl *ParkingLot) {
	t.Helper()
	status := pl.Status()

	occupied := make([]int, 0, len(status.Occupied))
	seen := make(map[string]bool)
	for _, rec := range status.Occupied {
		occupied = append(occupied, rec.Slot)
		assert.False(t, seen[rec.Plate], "plate %s recorded twice", rec.Plate)
		seen[rec.Plate] = true
	}
	for _, req := range status.Waiting {
		assert.False(t, seen[req.Plate], "plate %s is both parked and waiting", req.Plate)
	}

	all := append(append([]int{}, occupied...), status.Free...)
	sort.Ints(all)
	require.Len(t, all, status.Capacity)
	for i, slot := range all {
		assert.Equal(t, i+1, slot, "slot %d is both free and occupied or missing", i+1)
	}

	if len(status.Free) > 0 {
		assert.Empty(t, status.Waiting, "vehicles wait while slots are free")
	}
}

func TestNewParkingLot(t *testing.T) {
	pl, _ := newTestLot(t, 6)

	status := pl.Status()
	assert.Equal(t, 6, status.Capacity)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, status.Free)
	assert.Empty(t, status.Occupied)
	assert.Empty(t, status.Waiting)
}

func TestNewParkingLotRejectsBadInput(t *testing.T) {
	_, err := NewParkingLot(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	bad := DefaultRates()
	bad.HourlyRate = decimal.NewFromInt(-1)
	_, err = NewParkingLot(3, WithRates(bad))
	assert.ErrorIs(t, err, ErrInvalidRates)
}

func TestArriveAllocatesLowestThenQueues(t *testing.T) {
	pl, _ := newTestLot(t, 3)

	for i := 1; i <= 3; i++ {
		arrival, err := pl.Arrive(fmt.Sprintf("CAR-%d", i), false)
		require.NoError(t, err)
		assert.False(t, arrival.Queued)
		assert.Equal(t, i, arrival.Slot)
	}

	arrival, err := pl.Arrive("CAR-4", false)
	require.NoError(t, err)
	assert.True(t, arrival.Queued)
	assert.Equal(t, 0, arrival.Slot)
	assert.Equal(t, 1, arrival.Position)

	pos, ok := pl.WaitingPosition("CAR-4")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	assertConsistent(t, pl)
}

func TestArriveReusesLowestReleasedSlot(t *testing.T) {
	pl, _ := newTestLot(t, 6)
	for i := 1; i <= 6; i++ {
		_, err := pl.Arrive(fmt.Sprintf("CAR-%d", i), false)
		require.NoError(t, err)
	}

	_, err := pl.Depart("CAR-5")
	require.NoError(t, err)

	arrival, err := pl.Arrive("NEW", false)
	require.NoError(t, err)
	assert.Equal(t, 5, arrival.Slot)
	assertConsistent(t, pl)
}

func TestArriveRejectsActivePlates(t *testing.T) {
	pl, _ := newTestLot(t, 1)

	_, err := pl.Arrive("A", false)
	require.NoError(t, err)
	_, err = pl.Arrive("A", true)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	_, err = pl.Arrive("B", false)
	require.NoError(t, err)
	_, err = pl.Arrive(" B ", false)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	_, err = pl.Arrive("   ", false)
	assert.ErrorIs(t, err, ErrInvalidPlate)

	assert.Len(t, pl.Status().Waiting, 1)
}

func TestDepartBillsAndFreesSlot(t *testing.T) {
	pl, clock := newTestLot(t, 2)

	_, err := pl.Arrive("A", false)
	require.NoError(t, err)
	_, err = pl.Arrive("V", true)
	require.NoError(t, err)

	clock.Advance(61 * time.Minute)

	dep, err := pl.Depart("A")
	require.NoError(t, err)
	assert.Equal(t, 1, dep.Slot)
	assert.Equal(t, int64(2), dep.Hours)
	assert.Equal(t, "40.00", dep.AmountDue.StringFixed(2))
	assert.Equal(t, 61*time.Minute, dep.Duration)
	assert.Equal(t, dep.ArrivalTime.Add(61*time.Minute), dep.DepartureTime)
	assert.Nil(t, dep.Promoted)

	dep, err = pl.Depart("V")
	require.NoError(t, err)
	assert.True(t, dep.VIP)
	assert.Equal(t, "30.00", dep.AmountDue.StringFixed(2))

	_, ok := pl.Lookup("A")
	assert.False(t, ok)
	assert.Equal(t, []int{1, 2}, pl.Status().Free)
}

func TestDepartImmediatelyChargesMinimum(t *testing.T) {
	pl, _ := newTestLot(t, 1)
	_, err := pl.Arrive("A", false)
	require.NoError(t, err)

	dep, err := pl.Depart("A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), dep.Hours)
	assert.True(t, dep.AmountDue.Equal(decimal.NewFromInt(20)))
}

func TestDepartUnknownLeavesStateUnchanged(t *testing.T) {
	pl, _ := newTestLot(t, 2)
	pl.Arrive("A", false)
	pl.Arrive("B", false)
	pl.Arrive("C", true)

	before := pl.Status()

	dep, err := pl.Depart("ZZZ-000")
	assert.ErrorIs(t, err, ErrUnknownClient)
	assert.Nil(t, dep)

	// A waiting vehicle has no slot to leave.
	_, err = pl.Depart("C")
	assert.ErrorIs(t, err, ErrUnknownClient)

	assert.Equal(t, before, pl.Status())
}

func TestDepartPromotesVIPFirst(t *testing.T) {
	pl, clock := newTestLot(t, 1)

	arrival, err := pl.Arrive("A", false)
	require.NoError(t, err)
	assert.Equal(t, 1, arrival.Slot)

	arrival, err = pl.Arrive("B", true)
	require.NoError(t, err)
	assert.True(t, arrival.Queued)

	arrival, err = pl.Arrive("C", false)
	require.NoError(t, err)
	assert.True(t, arrival.Queued)
	assert.Equal(t, 2, arrival.Position)

	clock.Advance(30 * time.Minute)

	dep, err := pl.Depart("A")
	require.NoError(t, err)
	require.NotNil(t, dep.Promoted)
	assert.Equal(t, "B", dep.Promoted.Plate)
	assert.Equal(t, 1, dep.Promoted.Slot)
	assert.Equal(t, clock.Now(), dep.Promoted.ArrivalTime)

	record, ok := pl.Lookup("B")
	require.True(t, ok)
	assert.True(t, record.VIP)

	waiting := pl.Status().Waiting
	require.Len(t, waiting, 1)
	assert.Equal(t, "C", waiting[0].Plate)
	assertConsistent(t, pl)
}

func TestReleaseTwiceFails(t *testing.T) {
	pl, _ := newTestLot(t, 6)
	for i := 1; i <= 6; i++ {
		pl.Arrive(fmt.Sprintf("CAR-%d", i), false)
	}

	res, err := pl.Release(5)
	require.NoError(t, err)
	require.NotNil(t, res.Evicted)
	assert.Equal(t, "CAR-5", res.Evicted.Plate)
	assert.Nil(t, res.Promoted)

	_, err = pl.Release(5)
	assert.ErrorIs(t, err, ErrDoubleRelease)

	_, ok := pl.Lookup("CAR-5")
	assert.False(t, ok)
	assertConsistent(t, pl)
}

func TestReleaseValidatesSlot(t *testing.T) {
	pl, _ := newTestLot(t, 2)

	_, err := pl.Release(0)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = pl.Release(3)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = pl.Release(1)
	assert.ErrorIs(t, err, ErrDoubleRelease)
}

func TestReleasePromotesWaitingVehicle(t *testing.T) {
	pl, _ := newTestLot(t, 2)
	pl.Arrive("A", false)
	pl.Arrive("B", false)
	pl.Arrive("C", false)

	res, err := pl.Release(2)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, "C", res.Promoted.Plate)
	assert.Equal(t, 2, res.Promoted.Slot)
	assert.Empty(t, pl.Status().Waiting)
	assertConsistent(t, pl)
}

func TestEnqueueOnly(t *testing.T) {
	pl, _ := newTestLot(t, 2)
	pl.Arrive("A", false)
	pl.Arrive("B", false)

	req, err := pl.EnqueueOnly("S", false)
	require.NoError(t, err)
	assert.Nil(t, req.Promoted)
	assert.Equal(t, 1, req.Position)

	req, err = pl.EnqueueOnly("V", true)
	require.NoError(t, err)
	assert.Nil(t, req.Promoted)
	assert.Equal(t, 1, req.Position)

	pos, ok := pl.WaitingPosition(" S ")
	require.True(t, ok)
	assert.Equal(t, 2, pos)

	_, err = pl.EnqueueOnly("S", true)
	assert.ErrorIs(t, err, ErrDuplicateWaiting)

	_, err = pl.EnqueueOnly("A", false)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	_, err = pl.EnqueueOnly("", false)
	assert.ErrorIs(t, err, ErrInvalidPlate)

	assertConsistent(t, pl)

	dep, err := pl.Depart("A")
	require.NoError(t, err)
	require.NotNil(t, dep.Promoted)
	assert.Equal(t, "V", dep.Promoted.Plate)
	assert.Equal(t, 1, dep.Promoted.Slot)
}

func TestEnqueueOnlyWithFreeSlotParksImmediately(t *testing.T) {
	pl, clock := newTestLot(t, 2)
	_, err := pl.Arrive("A", false)
	require.NoError(t, err)

	req, err := pl.EnqueueOnly("W", false)
	require.NoError(t, err)
	require.NotNil(t, req.Promoted)
	assert.Equal(t, "W", req.Promoted.Plate)
	assert.Equal(t, 2, req.Promoted.Slot)
	assert.Equal(t, clock.Now(), req.Promoted.ArrivalTime)

	_, ok := pl.WaitingPosition("W")
	assert.False(t, ok)

	// A later arrival cannot take a slot ahead of W.
	arrival, err := pl.Arrive("LATE", false)
	require.NoError(t, err)
	assert.True(t, arrival.Queued)
	assertConsistent(t, pl)
}

func TestNewParkingLotRejectsOversizedCapacity(t *testing.T) {
	_, err := NewParkingLot(math.MaxInt)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	pl, _ := newTestLot(t, 2)
	assert.ErrorIs(t, pl.Initialize(MaxCapacity+1), ErrInvalidCapacity)
	assert.Equal(t, 2, pl.Capacity())
}

func TestInitializeDropsEverything(t *testing.T) {
	pl, _ := newTestLot(t, 1)
	pl.Arrive("A", false)
	pl.Arrive("B", false)

	require.NoError(t, pl.Initialize(4))

	status := pl.Status()
	assert.Equal(t, 4, status.Capacity)
	assert.Equal(t, []int{1, 2, 3, 4}, status.Free)
	assert.Empty(t, status.Occupied)
	assert.Empty(t, status.Waiting)

	assert.ErrorIs(t, pl.Initialize(-1), ErrInvalidCapacity)
	assert.Equal(t, 4, pl.Capacity())
}

func TestConcurrentArrivalsAndDepartures(t *testing.T) {
	const capacity = 8
	pl, _ := newTestLot(t, capacity)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plate := fmt.Sprintf("CAR-%02d", i)
			if _, err := pl.Arrive(plate, i%4 == 0); err != nil {
				t.Errorf("arrive %s: %v", plate, err)
				return
			}
			if i%2 == 0 {
				if _, ok := pl.Lookup(plate); ok {
					if _, err := pl.Depart(plate); err != nil {
						t.Errorf("depart %s: %v", plate, err)
					}
				}
			}
		}(i)
	}
	wg.Wait()

	assertConsistent(t, pl)
	status := pl.Status()
	assert.LessOrEqual(t, len(status.Occupied), capacity)
}
