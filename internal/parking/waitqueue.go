package parking

import (
	"fmt"
	"time"

	list "github.com/bahlo/generic-list-go"
)

// WaitingRequest is an arrival that could not be given a slot yet.
type WaitingRequest struct {
	Vehicle
	EnqueuedAt time.Time
	// Position is 1-based across both lanes, VIP lane first. It is only
	// filled in on values returned by Snapshot, Enqueue and Position.
	Position int
}

// WaitQueue holds deferred arrivals in two FIFO lanes. The VIP lane is
// always served before the standard lane.
// WaitQueue is not safe for concurrent use.
type WaitQueue struct {
	vip      *list.List[*WaitingRequest]
	standard *list.List[*WaitingRequest]
	index    map[string]*list.Element[*WaitingRequest]
}

func NewWaitQueue() *WaitQueue {
	return &WaitQueue{
		vip:      list.New[*WaitingRequest](),
		standard: list.New[*WaitingRequest](),
		index:    make(map[string]*list.Element[*WaitingRequest]),
	}
}

func (q *WaitQueue) Enqueue(plate string, vip bool, at time.Time) (*WaitingRequest, error) {
	vehicle := NewVehicle(plate, vip)
	if _, ok := q.index[vehicle.Plate]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateWaiting, vehicle.Plate)
	}

	req := &WaitingRequest{
		Vehicle:    *vehicle,
		EnqueuedAt: at,
	}

	lane := q.standard
	if vip {
		lane = q.vip
	}
	q.index[vehicle.Plate] = lane.PushBack(req)

	req.Position = q.vip.Len()
	if !vip {
		req.Position += q.standard.Len()
	}

	out := *req
	return &out, nil
}

// DequeueNext pops the head of the VIP lane, or of the standard lane when
// no VIP is waiting.
func (q *WaitQueue) DequeueNext() (*WaitingRequest, bool) {
	lane := q.vip
	if lane.Len() == 0 {
		lane = q.standard
	}

	front := lane.Front()
	if front == nil {
		return nil, false
	}

	req := lane.Remove(front)
	delete(q.index, req.Plate)
	req.Position = 0
	return req, true
}

func (q *WaitQueue) Contains(plate string) bool {
	_, ok := q.index[NormalizePlate(plate)]
	return ok
}

// Position reports where plate stands in service order.
func (q *WaitQueue) Position(plate string) (int, bool) {
	plate = NormalizePlate(plate)
	if _, ok := q.index[plate]; !ok {
		return 0, false
	}
	for i, req := range q.Snapshot() {
		if req.Plate == plate {
			return i + 1, true
		}
	}
	return 0, false
}

func (q *WaitQueue) Len() int {
	return q.vip.Len() + q.standard.Len()
}

// Snapshot returns copies of the waiting requests in service order.
func (q *WaitQueue) Snapshot() []WaitingRequest {
	out := make([]WaitingRequest, 0, q.Len())
	for _, lane := range []*list.List[*WaitingRequest]{q.vip, q.standard} {
		for e := lane.Front(); e != nil; e = e.Next() {
			req := *e.Value
			req.Position = len(out) + 1
			out = append(out, req)
		}
	}
	return out
}
