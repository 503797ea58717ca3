package bridge

import (
	"context"
	stderrors "errors"
	"fmt"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/heap"
	"github.com/wippyai/wasm-bridge/memview"
)

// frameSize is the shadow stack space reserved for a CallFrame.
const frameSize = 16

// ReturnKind says how the result word of a CallFrame is interpreted.
type ReturnKind uint8

const (
	// ReturnVoid ignores the result word.
	ReturnVoid ReturnKind = iota
	// ReturnHandle takes ownership of the result handle: the value is read
	// and the handle freed.
	ReturnHandle
	// ReturnBorrowed reads the handle's value and leaves the handle live.
	ReturnBorrowed
	// ReturnNumber returns the raw result word as a uint32.
	ReturnNumber
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnVoid:
		return "void"
	case ReturnHandle:
		return "handle"
	case ReturnBorrowed:
		return "borrowed"
	case ReturnNumber:
		return "number"
	default:
		return fmt.Sprintf("ReturnKind(%d)", uint8(k))
	}
}

// CallFrame is the result area a guest export fills before returning.
type CallFrame struct {
	Ptr         uint32
	Result      uint32
	ErrorHandle uint32
	ErrorFlag   uint32
}

// Failed reports whether the guest signalled an error.
func (f CallFrame) Failed() bool {
	return f.ErrorFlag != 0
}

// caller invokes guest exports that return through a CallFrame carved from
// the guest's shadow stack.
type caller struct {
	inst         wasmbridge.Instance
	views        *memview.Cache
	heap         *heap.Table
	stackPointer string
}

func (c *caller) adjustStack(ctx context.Context, delta int32) (uint32, error) {
	res, err := c.inst.Call(ctx, c.stackPointer, uint64(uint32(delta)))
	if err != nil {
		return 0, errors.Trap(c.stackPointer, err)
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseCall, errors.KindSignature).
			Path(c.stackPointer).
			Detail("expected 1 result, got %d", len(res)).
			Build()
	}
	return uint32(res[0]), nil
}

// call runs export(frame, args...) and converts the frame into a result.
// The frame is released on every path, including traps.
func (c *caller) call(ctx context.Context, export string, kind ReturnKind, args ...uint64) (result any, err error) {
	sp, err := c.adjustStack(ctx, -frameSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _, rerr := c.adjustStack(ctx, frameSize); rerr != nil && err == nil {
			result, err = nil, rerr
		}
	}()

	params := make([]uint64, 0, len(args)+1)
	params = append(params, uint64(sp))
	params = append(params, args...)

	_, callErr := c.inst.Call(ctx, export, params...)
	// host imports may have grown memory during the call
	c.views.Invalidate()
	if callErr != nil {
		return nil, trapError(export, callErr)
	}

	frame, err := c.readFrame(sp)
	if err != nil {
		return nil, err
	}
	return c.result(frame, kind)
}

func (c *caller) readFrame(sp uint32) (CallFrame, error) {
	if sp%4 != 0 {
		return CallFrame{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("unaligned call frame at %d", sp).
			Build()
	}
	words := c.views.Words()
	frame := CallFrame{Ptr: sp}
	var err error
	base := sp / 4
	if frame.Result, err = words.At(base); err != nil {
		return frame, err
	}
	if frame.ErrorHandle, err = words.At(base + 1); err != nil {
		return frame, err
	}
	if frame.ErrorFlag, err = words.At(base + 2); err != nil {
		return frame, err
	}
	return frame, nil
}

func (c *caller) result(frame CallFrame, kind ReturnKind) (any, error) {
	if frame.Failed() {
		v, err := c.heap.Take(heap.Handle(frame.ErrorHandle))
		if err != nil {
			return nil, err
		}
		if e, ok := v.(error); ok {
			return nil, e
		}
		return nil, &errors.GuestError{Value: v}
	}

	switch kind {
	case ReturnVoid:
		return nil, nil
	case ReturnHandle:
		return c.heap.Take(heap.Handle(frame.Result))
	case ReturnBorrowed:
		return c.heap.Get(heap.Handle(frame.Result))
	case ReturnNumber:
		return frame.Result, nil
	default:
		return nil, errors.InvalidInput(errors.PhaseCall, "unknown return kind "+kind.String())
	}
}

// trapError returns a guest error raised through the throw import unchanged
// and wraps every other failure as a trap.
func trapError(export string, err error) error {
	var ge *errors.GuestError
	if stderrors.As(err, &ge) {
		return ge
	}
	return errors.Trap(export, err)
}

// guestAllocator reserves guest memory through the guest's exports.
type guestAllocator struct {
	inst    wasmbridge.Instance
	malloc  string
	realloc string
}

func (a *guestAllocator) Malloc(ctx context.Context, size, align uint32) (uint32, error) {
	return a.call(ctx, a.malloc, uint64(size), uint64(align))
}

func (a *guestAllocator) Realloc(ctx context.Context, ptr, oldSize, newSize, align uint32) (uint32, error) {
	return a.call(ctx, a.realloc, uint64(ptr), uint64(oldSize), uint64(newSize), uint64(align))
}

func (a *guestAllocator) call(ctx context.Context, name string, params ...uint64) (uint32, error) {
	res, err := a.inst.Call(ctx, name, params...)
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseCall, errors.KindSignature).
			Path(name).
			Detail("expected 1 result, got %d", len(res)).
			Build()
	}
	return uint32(res[0]), nil
}

var _ wasmbridge.Allocator = (*guestAllocator)(nil)
