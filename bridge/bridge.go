package bridge

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/heap"
	"github.com/wippyai/wasm-bridge/memview"
	"github.com/wippyai/wasm-bridge/transcoder"
	"github.com/wippyai/wasm-bridge/value"
)

// Bridge runs programs in a single guest interpreter instance. It owns the
// guest's handle table and memory views. Calls are serialized; a Bridge is
// safe for concurrent use.
type Bridge struct {
	instantiator wasmbridge.Instantiator
	logger       *zap.Logger
	metrics      *Metrics
	exports      Exports

	stateMu sync.Mutex
	state   State
	ready   chan struct{}
	initErr error

	// guarded by mu once Ready
	mu       sync.Mutex
	heap     *heap.Table
	instance wasmbridge.Instance
	views    *memview.Cache
	encoder  *transcoder.StringEncoder
	caller   *caller
	self     uint32
	rebuilds uint64
}

// New creates an uninitialized bridge. Call Init before Interpret.
func New(inst wasmbridge.Instantiator, opts ...Option) *Bridge {
	b := &Bridge{
		instantiator: inst,
		logger:       zap.NewNop(),
		exports:      DefaultExports(),
		heap:         heap.NewTable(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger.Core().Enabled(zap.DebugLevel) {
		b.heap.Subscribe(heap.ObserverFunc(func(e heap.Event) {
			b.logger.Debug("handle "+e.Type.String(),
				zap.Uint32("handle", uint32(e.Handle)),
				zap.String("type", value.TypeName(e.Value)))
		}))
	}
	return b
}

// State returns the lifecycle state.
func (b *Bridge) State() State {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

// Heap returns the handle table for diagnostics. It must not be used while
// a call is running.
func (b *Bridge) Heap() *heap.Table {
	return b.heap
}

// Init instantiates the guest and creates its interpreter. It runs at most
// once; concurrent and later callers get the outcome of that attempt.
func (b *Bridge) Init(ctx context.Context) error {
	b.stateMu.Lock()
	switch b.state {
	case StateReady:
		b.stateMu.Unlock()
		return nil
	case StateFailed:
		err := b.initErr
		b.stateMu.Unlock()
		return err
	case StateClosed:
		b.stateMu.Unlock()
		return errors.NotInitialized(errors.PhaseRuntime, "bridge (closed)")
	case StateInstantiating:
		b.stateMu.Unlock()
		return b.wait(ctx)
	}
	b.state = StateInstantiating
	b.ready = make(chan struct{})
	b.stateMu.Unlock()

	start := time.Now()
	err := b.instantiate(ctx)

	b.stateMu.Lock()
	if err != nil {
		b.state = StateFailed
		b.initErr = err
		b.logger.Error("guest instantiation failed", zap.Error(err))
	} else {
		b.state = StateReady
		b.logger.Info("guest ready", zap.Duration("elapsed", time.Since(start)))
	}
	close(b.ready)
	b.stateMu.Unlock()
	return err
}

// wait blocks until a running instantiation finishes.
func (b *Bridge) wait(ctx context.Context) error {
	b.stateMu.Lock()
	ready := b.ready
	b.stateMu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return errors.Wrap(errors.PhaseRuntime, errors.KindNotInitialized, ctx.Err(), "waiting for guest instantiation")
	}

	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	switch b.state {
	case StateReady:
		return nil
	case StateFailed:
		return b.initErr
	default:
		return errors.NotInitialized(errors.PhaseRuntime, "bridge")
	}
}

func (b *Bridge) instantiate(ctx context.Context) error {
	imports := &hostImports{
		heap:     b.heap,
		logger:   b.logger,
		exnStore: b.exports.ExnStore,
	}
	inst, err := b.instantiator.Instantiate(ctx, imports)
	if err != nil {
		return err
	}

	views := memview.New(inst.Memory())
	imports.decoder = transcoder.NewStringDecoder(views)
	imports.inst = inst

	b.mu.Lock()
	defer b.mu.Unlock()
	b.instance = inst
	b.views = views
	b.encoder = transcoder.NewStringEncoder(views, &guestAllocator{
		inst:    inst,
		malloc:  b.exports.Malloc,
		realloc: b.exports.Realloc,
	})
	b.caller = &caller{
		inst:         inst,
		views:        views,
		heap:         b.heap,
		stackPointer: b.exports.StackPointer,
	}

	if b.exports.New == "" {
		return nil
	}
	res, err := inst.Call(ctx, b.exports.New)
	if err != nil {
		_ = inst.Close(ctx)
		return errors.Wrap(errors.PhaseRuntime, errors.KindInstantiation, trapError(b.exports.New, err), "create interpreter")
	}
	if len(res) != 1 || res[0] == 0 {
		_ = inst.Close(ctx)
		return errors.New(errors.PhaseRuntime, errors.KindInstantiation).
			Path(b.exports.New).
			Detail("constructor returned %v", res).
			Build()
	}
	b.self = uint32(res[0])
	return nil
}

// awaitReady waits for the bridge to become usable.
func (b *Bridge) awaitReady(ctx context.Context) error {
	b.stateMu.Lock()
	state := b.state
	initErr := b.initErr
	b.stateMu.Unlock()

	switch state {
	case StateReady:
		return nil
	case StateFailed:
		return initErr
	case StateInstantiating:
		return b.wait(ctx)
	case StateClosed:
		return errors.NotInitialized(errors.PhaseRuntime, "bridge (closed)")
	default:
		return errors.NotInitialized(errors.PhaseRuntime, "bridge")
	}
}

// Interpret runs source in the guest interpreter and returns the resulting
// host value. A program error is returned as *errors.GuestError carrying the
// guest's message unchanged.
func (b *Bridge) Interpret(ctx context.Context, source string) (any, error) {
	if err := b.awaitReady(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.caller == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "bridge (closed)")
	}

	start := time.Now()
	v, err := b.interpret(ctx, source)
	elapsed := time.Since(start)

	rebuilds := b.views.Rebuilds()
	outcome := OutcomeOK
	var ge *errors.GuestError
	switch {
	case err == nil:
	case stderrors.As(err, &ge):
		outcome = OutcomeGuestError
	default:
		outcome = OutcomeError
	}
	b.metrics.recordInterpret(outcome, elapsed, b.heap.Len(), rebuilds-b.rebuilds)
	b.rebuilds = rebuilds

	b.logger.Debug("interpret",
		zap.Int("source_bytes", len(source)),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
		zap.Int("live_handles", b.heap.Len()))
	return v, err
}

func (b *Bridge) interpret(ctx context.Context, source string) (any, error) {
	ptr, n, err := b.encoder.Encode(ctx, source)
	if err != nil {
		return nil, err
	}
	if b.exports.New == "" {
		return b.caller.call(ctx, b.exports.Run, ReturnHandle, uint64(ptr), uint64(n))
	}
	return b.caller.call(ctx, b.exports.Run, ReturnHandle, uint64(b.self), uint64(ptr), uint64(n))
}

// InterpretJSON runs source and renders the result as JSON.
func (b *Bridge) InterpretJSON(ctx context.Context, source string) (string, error) {
	v, err := b.Interpret(ctx, source)
	if err != nil {
		return "", err
	}
	return value.ToJSON(v)
}

// Close frees the guest interpreter and closes the instance. Closing a bridge
// that never became ready only marks it closed.
func (b *Bridge) Close(ctx context.Context) error {
	b.stateMu.Lock()
	if b.state == StateInstantiating {
		b.stateMu.Unlock()
		_ = b.wait(ctx)
		b.stateMu.Lock()
	}
	prev := b.state
	b.state = StateClosed
	b.stateMu.Unlock()

	if prev != StateReady {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.exports.Free != "" && b.self != 0 {
		if _, ferr := b.instance.Call(ctx, b.exports.Free, uint64(b.self)); ferr != nil {
			err = errors.Trap(b.exports.Free, ferr)
		}
	}
	if cerr := b.instance.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	b.heap.Clear()
	b.caller = nil
	b.encoder = nil
	b.self = 0
	return err
}
