package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/heap"
	"github.com/wippyai/wasm-bridge/transcoder"
	"github.com/wippyai/wasm-bridge/value"
)

// hostImports services the guest's imports against the bridge's handle table.
// Failures other than the exception-store path trap the running call.
type hostImports struct {
	heap     *heap.Table
	decoder  *transcoder.StringDecoder
	logger   *zap.Logger
	exnStore string

	// inst is set once instantiation returns; imports only run inside calls.
	inst wasmbridge.Instance
}

func (h *hostImports) StringNew(_ context.Context, ptr, n uint32) uint32 {
	s, err := h.decoder.Decode(ptr, n)
	if err != nil {
		panic(err)
	}
	return uint32(h.heap.Alloc(s))
}

func (h *hostImports) NumberNew(_ context.Context, f float64) uint32 {
	return uint32(h.heap.Alloc(f))
}

func (h *hostImports) BigIntFromI64(_ context.Context, v int64) uint32 {
	return uint32(h.heap.Alloc(value.BigInt(v)))
}

func (h *hostImports) ObjectNew(context.Context) uint32 {
	return uint32(h.heap.Alloc(value.NewObject()))
}

// ObjectSet assigns target[key] = val. Any failure, including a panic, is
// handed to the guest's exception store and reported by returning 0.
func (h *hostImports) ObjectSet(ctx context.Context, target, key, val uint32) (ok uint32) {
	defer func() {
		if r := recover(); r != nil {
			ok = h.storeException(ctx, panicError(r))
		}
	}()
	if err := h.set(heap.Handle(target), heap.Handle(key), heap.Handle(val)); err != nil {
		return h.storeException(ctx, err)
	}
	return 1
}

func (h *hostImports) set(target, key, val heap.Handle) error {
	t, err := h.heap.Get(target)
	if err != nil {
		return err
	}
	k, err := h.heap.Get(key)
	if err != nil {
		return err
	}
	v, err := h.heap.Get(val)
	if err != nil {
		return err
	}
	obj, ok := t.(*value.Object)
	if !ok {
		return errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Value(t).
			Detail("cannot set property %q on %s", value.PropertyKey(k), value.TypeName(t)).
			Build()
	}
	obj.Set(value.PropertyKey(k), v)
	return nil
}

// storeException parks err in the handle table and passes its handle to the
// guest, which reports it through the call frame.
func (h *hostImports) storeException(ctx context.Context, err error) uint32 {
	handle := h.heap.Alloc(err)
	h.logger.Debug("storing host exception", zap.Uint32("handle", uint32(handle)), zap.Error(err))
	if h.inst == nil {
		panic(errors.NotInitialized(errors.PhaseCall, "guest instance"))
	}
	if _, cerr := h.inst.Call(ctx, h.exnStore, uint64(handle)); cerr != nil {
		_ = h.heap.Free(handle)
		panic(errors.Trap(h.exnStore, cerr))
	}
	return 0
}

func (h *hostImports) ObjectCloneRef(_ context.Context, handle uint32) uint32 {
	v, err := h.heap.Get(heap.Handle(handle))
	if err != nil {
		panic(err)
	}
	return uint32(h.heap.Alloc(v))
}

func (h *hostImports) ObjectDropRef(_ context.Context, handle uint32) {
	if err := h.heap.Free(heap.Handle(handle)); err != nil {
		panic(err)
	}
}

// Throw raises the guest's message as a *errors.GuestError.
func (h *hostImports) Throw(_ context.Context, ptr, n uint32) {
	msg, err := h.decoder.Decode(ptr, n)
	if err != nil {
		panic(err)
	}
	panic(&errors.GuestError{Value: msg})
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

var _ wasmbridge.Imports = (*hostImports)(nil)
