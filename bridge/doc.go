// Package bridge connects a Go host to a wasm-bindgen style interpreter guest.
//
// A Bridge owns everything the guest can reach on the host side: the handle
// table holding host values the guest refers to, the cached view of guest
// memory and the string marshalers. Programs are passed in as strings and
// results come back as host values from the value package:
//
//	b := bridge.New(eng.Instantiator(engine.File("focus_bg.wasm")))
//	if err := b.Init(ctx); err != nil {
//		return err
//	}
//	v, err := b.Interpret(ctx, "1 + 1") // value.BigInt(2)
//
// Guest exports that return more than one value write a 16 byte CallFrame on
// the guest's shadow stack: the result, an error handle and an error flag.
// The frame is reserved with __wbindgen_add_to_stack_pointer(-16) and always
// released, even when the guest traps.
//
// Host import failures that the guest expects to catch are parked in the
// handle table and handed to __wbindgen_exn_store; the guest reports them
// through the frame and they are returned from Interpret as the original Go
// error.
package bridge
