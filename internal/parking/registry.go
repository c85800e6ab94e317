package parking

import (
	"fmt"
	"sort"
	"time"
)

// OccupancyRecord binds a vehicle to the slot it currently occupies.
type OccupancyRecord struct {
	Vehicle
	Slot        int
	ArrivalTime time.Time
}

// Registry tracks who is parked where since when.
// It is not safe for concurrent use.
type Registry struct {
	byPlate map[string]*OccupancyRecord
	bySlot  map[int]*OccupancyRecord
}

func NewRegistry() *Registry {
	return &Registry{
		byPlate: make(map[string]*OccupancyRecord),
		bySlot:  make(map[int]*OccupancyRecord),
	}
}

func (r *Registry) Register(plate string, slot int, vip bool, arrival time.Time) (*OccupancyRecord, error) {
	vehicle := NewVehicle(plate, vip)
	if _, ok := r.byPlate[vehicle.Plate]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, vehicle.Plate)
	}
	if holder, ok := r.bySlot[slot]; ok {
		return nil, fmt.Errorf("%w: slot %d is held by %s", ErrInvalidSlot, slot, holder.Plate)
	}

	record := &OccupancyRecord{
		Vehicle:     *vehicle,
		Slot:        slot,
		ArrivalTime: arrival,
	}
	r.byPlate[vehicle.Plate] = record
	r.bySlot[slot] = record
	return record, nil
}

func (r *Registry) Lookup(plate string) (*OccupancyRecord, bool) {
	record, ok := r.byPlate[NormalizePlate(plate)]
	return record, ok
}

func (r *Registry) LookupSlot(slot int) (*OccupancyRecord, bool) {
	record, ok := r.bySlot[slot]
	return record, ok
}

// Remove deletes the active record for plate and returns it.
func (r *Registry) Remove(plate string) (*OccupancyRecord, error) {
	plate = NormalizePlate(plate)
	record, ok := r.byPlate[plate]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, plate)
	}
	delete(r.byPlate, plate)
	delete(r.bySlot, record.Slot)
	return record, nil
}

func (r *Registry) Len() int {
	return len(r.byPlate)
}

// Records returns copies of all active records ordered by slot.
func (r *Registry) Records() []OccupancyRecord {
	records := make([]OccupancyRecord, 0, len(r.byPlate))
	for _, record := range r.byPlate {
		records = append(records, *record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Slot < records[j].Slot
	})

	return records
}
