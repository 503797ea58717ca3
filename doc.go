// Package wasmbridge connects a Go host to a sandboxed WebAssembly guest that
// exposes a wasm-bindgen style ABI.
//
// The guest cannot see host memory and the host does not own the guest's
// allocator, so every exchange goes through a small set of mechanisms:
//
//	wasmbridge/          Root package with Memory, Instance and Imports contracts
//	├── bridge/          Call adapter, host imports and the Bridge facade
//	├── engine/          wazero runtime, import linking and module loading
//	├── heap/            Handle table for host values referenced by the guest
//	├── memview/         Generation-checked views over guest memory
//	├── transcoder/      UTF-8 string marshaling across the boundary
//	├── value/           Host value model and JSON rendering
//	├── config/          File and environment configuration
//	├── errors/          Structured error types
//	├── wasm/            Core module encoder used for test guests
//	└── cmd/playground/  CLI and TUI for running programs
//
// # Quick Start
//
//	eng, err := engine.NewWazeroEngine(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	b := bridge.New(eng.Instantiator(engine.File("focus_bg.wasm")))
//	if err := b.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close(ctx)
//
//	result, err := b.Interpret(ctx, "1 + 1") // value.BigInt(2)
//
// # Calling Convention
//
// Guest exports return at most one scalar. Calls that can fail reserve a
// 16-byte frame on the guest's shadow stack and pass its address as the first
// argument. The guest writes the result handle, an error handle and an error
// flag into the frame; the bridge reads them back, converts them to a Go
// (value, error) pair and releases the frame on every path.
package wasmbridge
