package wasmbridge

import "context"

// Memory is a guest linear memory.
type Memory interface {
	// Buffer returns the current backing bytes. The slice is invalidated
	// whenever the memory grows.
	Buffer() []byte

	// Generation changes every time the backing buffer is replaced.
	Generation() uint64
}

// Instance is an instantiated guest module.
type Instance interface {
	Memory() Memory

	// Call invokes an exported function with raw wasm values.
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)

	Close(ctx context.Context) error
}

// Allocator reserves space in guest memory through the guest's own allocator.
type Allocator interface {
	Malloc(ctx context.Context, size, align uint32) (uint32, error)
	Realloc(ctx context.Context, ptr, oldSize, newSize, align uint32) (uint32, error)
}

// Imports are the host functions a guest links against. Every value crosses
// the boundary as a heap handle. An implementation traps the running guest
// call by panicking with an error.
type Imports interface {
	// StringNew decodes n bytes of UTF-8 at ptr into a new string handle.
	StringNew(ctx context.Context, ptr, n uint32) uint32
	NumberNew(ctx context.Context, f float64) uint32
	BigIntFromI64(ctx context.Context, v int64) uint32
	ObjectNew(ctx context.Context) uint32
	// ObjectSet assigns target[key] = val and returns 1. On failure it stores
	// the error with the guest's exception store and returns 0.
	ObjectSet(ctx context.Context, target, key, val uint32) uint32
	// ObjectCloneRef returns a second handle to the value h refers to.
	ObjectCloneRef(ctx context.Context, h uint32) uint32
	ObjectDropRef(ctx context.Context, h uint32)
	// Throw raises the UTF-8 message at ptr as a guest error. It never returns.
	Throw(ctx context.Context, ptr, n uint32)
}

// Instantiator creates a guest instance linked against imports.
type Instantiator interface {
	Instantiate(ctx context.Context, imports Imports) (Instance, error)
}
