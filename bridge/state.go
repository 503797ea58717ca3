package bridge

// State is the bridge lifecycle state.
//
//	Uninitialized -> Instantiating -> Ready -> Closed
//	                              \-> Failed
type State int32

const (
	StateUninitialized State = iota
	StateInstantiating
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInstantiating:
		return "instantiating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
