package heap

import (
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/value"
)

type slot struct {
	value    any
	next     Handle
	occupied bool
}

// Table maps handles to host values. Freed slots form a singly linked free
// list threaded through the vacant slots and are reused most recently freed
// first.
//
// Table is not safe for concurrent use; the owning bridge serializes access.
type Table struct {
	slots     []slot
	observers []Observer
	free      Handle
	live      int
}

// NewTable creates a table with the reserved sentinel slots populated.
func NewTable() *Table {
	t := &Table{slots: make([]slot, FirstFree, 2*FirstFree)}
	t.reset()
	return t
}

func (t *Table) reset() {
	for i := Handle(0); i < ReservedSlots; i++ {
		t.slots[i] = slot{value: value.Undefined, occupied: true}
	}
	t.slots[Undefined] = slot{value: value.Undefined, occupied: true}
	t.slots[Null] = slot{value: nil, occupied: true}
	t.slots[True] = slot{value: true, occupied: true}
	t.slots[False] = slot{value: false, occupied: true}
	t.free = Handle(len(t.slots))
	t.live = 0
}

// Alloc stores v and returns its handle.
func (t *Table) Alloc(v any) Handle {
	h := t.free
	if int(h) == len(t.slots) {
		t.slots = append(t.slots, slot{})
		t.free = h + 1
	} else {
		t.free = t.slots[h].next
	}
	t.slots[h] = slot{value: v, occupied: true}
	t.live++

	t.notify(Event{Type: EventCreated, Handle: h, Value: v})
	return h
}

// Get returns the value a handle refers to.
func (t *Table) Get(h Handle) (any, error) {
	if int(h) >= len(t.slots) {
		return nil, errors.InvalidHandle(uint32(h), "out of range")
	}
	s := &t.slots[h]
	if !s.occupied {
		return nil, errors.InvalidHandle(uint32(h), "slot is vacant")
	}
	return s.value, nil
}

// Free releases a handle. Reserved handles are never released.
func (t *Table) Free(h Handle) error {
	if h.IsReserved() {
		return nil
	}
	if int(h) >= len(t.slots) {
		return errors.InvalidHandle(uint32(h), "out of range")
	}
	s := &t.slots[h]
	if !s.occupied {
		return errors.InvalidHandle(uint32(h), "double free")
	}
	v := s.value
	*s = slot{next: t.free}
	t.free = h
	t.live--

	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
	return nil
}

// Take returns the value a handle refers to and releases the handle.
func (t *Table) Take(h Handle) (any, error) {
	v, err := t.Get(h)
	if err != nil {
		return nil, err
	}
	if err := t.Free(h); err != nil {
		return nil, err
	}
	return v, nil
}

// Len returns the number of live non-reserved handles.
func (t *Table) Len() int {
	return t.live
}

// Clear releases every non-reserved handle.
func (t *Table) Clear() {
	for h := FirstFree; int(h) < len(t.slots); h++ {
		if t.slots[h].occupied {
			_ = t.Free(h)
		}
	}
	t.slots = t.slots[:FirstFree]
	t.reset()
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.observers = append(t.observers, o)
}

func (t *Table) notify(e Event) {
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
