// Package wasm encodes core WebAssembly modules.
//
// It covers the subset needed to assemble small guest modules in Go: function
// types, function imports, one memory, i32 globals, exports, code and active
// data segments.
//
//	body, _ := wasm.EncodeInstructions([]wasm.Instruction{
//		wasm.LocalGet(0),
//		wasm.LocalGet(1),
//		wasm.Op(wasm.OpI32Add),
//		wasm.Op(wasm.OpEnd),
//	})
//	m := &wasm.Module{
//		Types:   []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}},
//		Funcs:   []uint32{0},
//		Exports: []wasm.Export{{Name: "add", Kind: wasm.KindFunc, Idx: 0}},
//		Code:    []wasm.FuncBody{{Code: body}},
//	}
//	bin := m.Encode()
package wasm
