package parking

import (
	"container/heap"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// MaxCapacity is the largest number of slots a lot can be initialized with.
const MaxCapacity = 100_000

// freeHeap is a min-heap of free slot numbers.
type freeHeap []int

func (h freeHeap) Len() int           { return len(h) }
func (h freeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h freeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *freeHeap) Push(x any) { *h = append(*h, x.(int)) }

func (h *freeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// SlotPool hands out slot numbers 1..capacity, lowest first.
// The heap orders free slots; the bitset answers "is this slot free"
// so a release can be checked without scanning the heap.
// SlotPool is not safe for concurrent use.
type SlotPool struct {
	capacity int
	free     freeHeap
	isFree   *bitset.BitSet
}

func NewSlotPool(capacity int) (*SlotPool, error) {
	p := &SlotPool{}
	if err := p.Initialize(capacity); err != nil {
		return nil, err
	}
	return p, nil
}

// Initialize discards all state and marks 1..capacity free.
func (p *SlotPool) Initialize(capacity int) error {
	if capacity <= 0 || capacity > MaxCapacity {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidCapacity, capacity, MaxCapacity)
	}

	free := make(freeHeap, capacity)
	isFree := bitset.New(uint(capacity + 1))
	for i := 0; i < capacity; i++ {
		free[i] = i + 1
		isFree.Set(uint(i + 1))
	}
	// Ascending order already satisfies the heap property.
	heap.Init(&free)

	p.capacity = capacity
	p.free = free
	p.isFree = isFree
	return nil
}

func (p *SlotPool) AllocateLowest() (int, error) {
	if p.free.Len() == 0 {
		return 0, ErrPoolExhausted
	}
	slot := heap.Pop(&p.free).(int)
	p.isFree.Clear(uint(slot))
	return slot, nil
}

func (p *SlotPool) Release(slot int) error {
	if !p.valid(slot) {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if p.isFree.Test(uint(slot)) {
		return fmt.Errorf("%w: %d", ErrDoubleRelease, slot)
	}
	heap.Push(&p.free, slot)
	p.isFree.Set(uint(slot))
	return nil
}

func (p *SlotPool) IsFree(slot int) bool {
	return p.valid(slot) && p.isFree.Test(uint(slot))
}

func (p *SlotPool) Capacity() int {
	return p.capacity
}

func (p *SlotPool) FreeCount() int {
	return p.free.Len()
}

// FreeSlots returns the free slot numbers in ascending order.
func (p *SlotPool) FreeSlots() []int {
	slots := make([]int, 0, p.free.Len())
	for i, ok := p.isFree.NextSet(1); ok; i, ok = p.isFree.NextSet(i + 1) {
		slots = append(slots, int(i))
	}
	return slots
}

func (p *SlotPool) valid(slot int) bool {
	return slot >= 1 && slot <= p.capacity
}
