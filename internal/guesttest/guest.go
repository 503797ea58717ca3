// Package guesttest provides guests for exercising the bridge: a Go guest
// that follows the wasm-bindgen calling convention over an in-process memory,
// and small real wasm modules built with the wasm package.
package guesttest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

const (
	pageSize  = 65536
	stackBase = 65536

	// Reserved handle values the guest returns without calling the host.
	handleTrue  = 130
	handleFalse = 131
)

// Memory is a growable in-process linear memory.
type Memory struct {
	buf []byte
	gen uint64
}

// NewMemory creates a memory of the given number of pages.
func NewMemory(pages int) *Memory {
	return &Memory{buf: make([]byte, pages*pageSize), gen: 1}
}

// Buffer returns the current backing slice.
func (m *Memory) Buffer() []byte { return m.buf }

// Generation changes on every growth.
func (m *Memory) Generation() uint64 { return m.gen }

// Grow replaces the backing slice with one that is pages larger.
func (m *Memory) Grow(pages int) {
	next := make([]byte, len(m.buf)+pages*pageSize)
	copy(next, m.buf)
	m.buf = next
	m.gen++
}

// Options change how a Guest behaves.
type Options struct {
	// Gate blocks Instantiate until it is closed.
	Gate chan struct{}

	// InstantiateErr fails instantiation.
	InstantiateErr error

	// MallocErr fails every allocation.
	MallocErr error

	// GrowOnAlloc grows memory on every allocation, replacing the buffer.
	GrowOnAlloc bool

	// Pages is the initial memory size. 0 means 2.
	Pages int
}

// Guest is an interpreter guest implemented in Go. It exports the same
// functions as a wasm-bindgen interpreter module and calls back into the host
// through Imports for every value it produces.
//
// Programs are arithmetic expressions over integers and floats with
// + - * / and parentheses, the literals true and false, double quoted
// strings, object literals {key: expr, ...} and "panic <message>", which
// throws. The program "trap" fails the call without a guest error.
type Guest struct {
	opts    Options
	imports wasmbridge.Imports
	mem     *Memory

	mu           sync.Mutex
	sp           uint32
	heap         uint32
	exn          uint32
	interpreters map[uint32]bool
	nextID       uint32
	calls        []string
	closed       bool
	instantiated int
}

// New creates a guest that instantiates itself.
func New(opts Options) *Guest {
	if opts.Pages == 0 {
		opts.Pages = 2
	}
	return &Guest{opts: opts}
}

// Instantiate links the guest against imports and resets its state.
func (g *Guest) Instantiate(ctx context.Context, imports wasmbridge.Imports) (wasmbridge.Instance, error) {
	if g.opts.Gate != nil {
		select {
		case <-g.opts.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.opts.InstantiateErr != nil {
		return nil, g.opts.InstantiateErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.imports = imports
	g.mem = NewMemory(g.opts.Pages)
	g.sp = stackBase
	g.heap = stackBase
	g.interpreters = make(map[uint32]bool)
	g.nextID = 1
	g.closed = false
	g.instantiated++
	return g, nil
}

// Memory returns the guest memory.
func (g *Guest) Memory() wasmbridge.Memory { return g.mem }

// StackPointer returns the current shadow stack pointer.
func (g *Guest) StackPointer() uint32 { return g.sp }

// StackBase is the initial shadow stack pointer.
func (g *Guest) StackBase() uint32 { return stackBase }

// Calls returns the exports called so far, in order.
func (g *Guest) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Live returns the number of interpreters not yet freed.
func (g *Guest) Live() int { return len(g.interpreters) }

// Instantiated returns how often Instantiate succeeded.
func (g *Guest) Instantiated() int { return g.instantiated }

// Closed reports whether Close was called.
func (g *Guest) Closed() bool { return g.closed }

// Close marks the guest closed. Later calls fail.
func (g *Guest) Close(context.Context) error {
	g.closed = true
	return nil
}

// Call dispatches an export. Host panics raised during the call are
// recovered and returned as errors, the way a wasm runtime reports traps.
func (g *Guest) Call(ctx context.Context, name string, params ...uint64) (results []uint64, err error) {
	if g.closed {
		return nil, errors.NotInitialized(errors.PhaseCall, "guest")
	}
	g.mu.Lock()
	g.calls = append(g.calls, name)
	g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w (recovered by guest)", e)
				return
			}
			err = fmt.Errorf("%v (recovered by guest)", r)
		}
	}()

	arg := func(i int) uint32 {
		if i >= len(params) {
			panic(fmt.Errorf("%s: missing argument %d", name, i))
		}
		return uint32(params[i])
	}

	switch name {
	case "__wbindgen_add_to_stack_pointer":
		g.sp = uint32(int32(g.sp) + int32(arg(0)))
		return []uint64{uint64(g.sp)}, nil
	case "__wbindgen_malloc":
		ptr, err := g.malloc(arg(0))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr)}, nil
	case "__wbindgen_realloc":
		ptr, err := g.realloc(arg(0), arg(1), arg(2))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr)}, nil
	case "__wbindgen_exn_store":
		g.exn = arg(0)
		return nil, nil
	case "interpreter_new":
		id := g.nextID
		g.nextID++
		g.interpreters[id] = true
		return []uint64{uint64(id)}, nil
	case "__wbg_interpreter_free":
		delete(g.interpreters, arg(0))
		return nil, nil
	case "interpreter_interpret_str_web":
		if !g.interpreters[arg(1)] {
			return nil, fmt.Errorf("null pointer passed to rust")
		}
		return nil, g.run(ctx, arg(0), arg(2), arg(3))
	case "run_program":
		return nil, g.run(ctx, arg(0), arg(1), arg(2))
	default:
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}
}

func (g *Guest) malloc(size uint32) (uint32, error) {
	if g.opts.MallocErr != nil {
		return 0, g.opts.MallocErr
	}
	ptr := g.heap
	g.heap += size
	need := int(g.heap) - len(g.mem.buf)
	switch {
	case need > 0:
		g.mem.Grow(need/pageSize + 1)
	case g.opts.GrowOnAlloc:
		g.mem.Grow(1)
	}
	return ptr, nil
}

func (g *Guest) realloc(ptr, oldSize, newSize uint32) (uint32, error) {
	next, err := g.malloc(newSize)
	if err != nil {
		return 0, err
	}
	copy(g.mem.buf[next:next+oldSize], g.mem.buf[ptr:ptr+oldSize])
	return next, nil
}

func (g *Guest) putFrame(retptr, result, errHandle, flag uint32) {
	for i, w := range []uint32{result, errHandle, flag} {
		binary.LittleEndian.PutUint32(g.mem.buf[retptr+uint32(i*4):], w)
	}
}

// newString copies s into guest memory and asks the host for a handle.
func (g *Guest) newString(ctx context.Context, s string) uint32 {
	ptr, err := g.malloc(uint32(len(s)))
	if err != nil {
		panic(err)
	}
	copy(g.mem.buf[ptr:], s)
	return g.imports.StringNew(ctx, ptr, uint32(len(s)))
}

// run evaluates the program at ptr and writes the outcome to the frame at retptr.
func (g *Guest) run(ctx context.Context, retptr, ptr, n uint32) error {
	if int(ptr)+int(n) > len(g.mem.buf) {
		return fmt.Errorf("out of bounds memory access")
	}
	src := string(g.mem.buf[ptr : ptr+n])
	if src == "trap" {
		return fmt.Errorf("unreachable")
	}

	v, err := parse(src)
	if err != nil {
		g.putFrame(retptr, 0, g.newString(ctx, err.Error()), 1)
		return nil
	}
	if v.kind == kindPanic {
		msg := v.str
		p, _ := g.malloc(uint32(len(msg)))
		copy(g.mem.buf[p:], msg)
		g.imports.Throw(ctx, p, uint32(len(msg)))
		return fmt.Errorf("throw returned")
	}

	h, failed := g.toHost(ctx, v)
	if failed {
		g.putFrame(retptr, 0, g.exn, 1)
		return nil
	}
	g.putFrame(retptr, h, 0, 0)
	return nil
}

// toHost converts v to a host handle. It reports failure when the host
// rejected a property assignment and left the error in the exception store.
func (g *Guest) toHost(ctx context.Context, v value) (uint32, bool) {
	switch v.kind {
	case kindInt:
		return g.imports.BigIntFromI64(ctx, v.i), false
	case kindFloat:
		return g.imports.NumberNew(ctx, v.f), false
	case kindBool:
		if v.b {
			return handleTrue, false
		}
		return handleFalse, false
	case kindString:
		return g.newString(ctx, v.str), false
	case kindObject:
		obj := g.imports.ObjectNew(ctx)
		for _, f := range v.fields {
			key := g.newString(ctx, f.key)
			val, failed := g.toHost(ctx, f.val)
			if failed {
				g.imports.ObjectDropRef(ctx, key)
				g.imports.ObjectDropRef(ctx, obj)
				return 0, true
			}
			ok := g.imports.ObjectSet(ctx, obj, key, val)
			g.imports.ObjectDropRef(ctx, key)
			g.imports.ObjectDropRef(ctx, val)
			if ok == 0 {
				g.imports.ObjectDropRef(ctx, obj)
				return 0, true
			}
		}
		return obj, false
	case kindNullSet:
		// assign to null so the host reports a failure through exn_store
		key := g.newString(ctx, "x")
		val := g.imports.BigIntFromI64(ctx, 1)
		ok := g.imports.ObjectSet(ctx, 129, key, val)
		g.imports.ObjectDropRef(ctx, key)
		g.imports.ObjectDropRef(ctx, val)
		return 0, ok == 0
	}
	panic(fmt.Sprintf("unknown value kind %d", v.kind))
}

var (
	_ wasmbridge.Instance     = (*Guest)(nil)
	_ wasmbridge.Instantiator = (*Guest)(nil)
	_ wasmbridge.Memory       = (*Memory)(nil)
)
