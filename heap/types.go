package heap

// Handle is an opaque 32-bit reference to a host value held in a Table.
// Handles below FirstFree are reserved and always valid.
type Handle uint32

// Reserved handle layout. Slots 0..127 are padding that resolves to Undefined.
const (
	ReservedSlots Handle = 128

	Undefined Handle = 128
	Null      Handle = 129
	True      Handle = 130
	False     Handle = 131

	// FirstFree is the first handle Alloc can return.
	FirstFree Handle = 132
)

// IsReserved reports whether h refers to a permanent sentinel slot.
func (h Handle) IsReserved() bool {
	return h < FirstFree
}

// EventType identifies a handle lifecycle transition.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnHandleEvent calls f(e).
func (f ObserverFunc) OnHandleEvent(e Event) {
	f(e)
}
