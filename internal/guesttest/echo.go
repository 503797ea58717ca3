package guesttest

import (
	"github.com/wippyai/wasm-bridge/wasm"
)

// Hashed import names used by the echo module, in the form wasm-bindgen emits.
const (
	EchoObjectNewImport = "__wbg_new_8a6f238a6ece86ea"
	EchoObjectSetImport = "__wbg_set_3f1d0b984ed272ed"
)

// EchoStackBase is the echo module's initial shadow stack pointer.
const EchoStackBase = 65536

// Function indices: imports first, then defined functions.
const (
	fnStringNew uint32 = iota
	fnThrow
	fnBigIntFromI64
	fnObjectNew
	fnObjectSet
	fnAddToStackPointer
	fnMalloc
	fnRealloc
	fnExnStore
	fnInterpreterNew
	fnInterpreterFree
	fnInterpret
)

// Type indices
const (
	tI32I32toI32 uint32 = iota
	tI32I32
	tI32toI32
	tI32x4toI32
	tI32
	tToI32
	tI32x4
	tI64toI32
	tI32x3toI32
)

// Globals
const (
	gStackPointer uint32 = iota
	gHeap
	gException
)

const (
	emptyProgramAddr = 16
	emptyProgramMsg  = "empty program"
	lengthKeyAddr    = 32
	lengthKey        = "length"
)

// EchoModule returns a real wasm-bindgen style module. Its run export
// interprets input by its first byte:
//
//	""       throws "empty program" through __wbindgen_throw
//	"!msg"   reports "msg" as an error through the frame error flag
//	"#..."   returns BigInt(byte length of the input)
//	"@..."   returns {length: BigInt(byte length)} built with __wbg_new/__wbg_set
//	"%..."   sets a property on null, so the failure comes back from the exception store
//	other    echoes the input string
//
// Its allocator is a bump allocator that grows memory when the heap passes
// the end of memory, and the shadow stack starts at EchoStackBase.
func EchoModule() []byte {
	i32, i64 := wasm.ValI32, wasm.ValI64
	m := &wasm.Module{
		Types: []wasm.FuncType{
			tI32I32toI32: {Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}},
			tI32I32:      {Params: []wasm.ValType{i32, i32}},
			tI32toI32:    {Params: []wasm.ValType{i32}, Results: []wasm.ValType{i32}},
			tI32x4toI32:  {Params: []wasm.ValType{i32, i32, i32, i32}, Results: []wasm.ValType{i32}},
			tI32:         {Params: []wasm.ValType{i32}},
			tToI32:       {Results: []wasm.ValType{i32}},
			tI32x4:       {Params: []wasm.ValType{i32, i32, i32, i32}},
			tI64toI32:    {Params: []wasm.ValType{i64}, Results: []wasm.ValType{i32}},
			tI32x3toI32:  {Params: []wasm.ValType{i32, i32, i32}, Results: []wasm.ValType{i32}},
		},
		Imports: []wasm.Import{
			{Module: "wbg", Name: "__wbindgen_string_new", TypeIdx: tI32I32toI32},
			{Module: "wbg", Name: "__wbindgen_throw", TypeIdx: tI32I32},
			{Module: "wbg", Name: "__wbindgen_bigint_from_i64", TypeIdx: tI64toI32},
			{Module: "wbg", Name: EchoObjectNewImport, TypeIdx: tToI32},
			{Module: "wbg", Name: EchoObjectSetImport, TypeIdx: tI32x3toI32},
		},
		Funcs:    []uint32{tI32toI32, tI32I32toI32, tI32x4toI32, tI32, tToI32, tI32, tI32x4},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 2}}},
		Globals: []wasm.Global{
			gStackPointer: {Type: wasm.GlobalType{ValType: i32, Mutable: true}, Init: wasm.I32ConstExpr(EchoStackBase)},
			gHeap:         {Type: wasm.GlobalType{ValType: i32, Mutable: true}, Init: wasm.I32ConstExpr(EchoStackBase)},
			gException:    {Type: wasm.GlobalType{ValType: i32, Mutable: true}, Init: wasm.I32ConstExpr(0)},
		},
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: "__wbindgen_add_to_stack_pointer", Kind: wasm.KindFunc, Idx: fnAddToStackPointer},
			{Name: "__wbindgen_malloc", Kind: wasm.KindFunc, Idx: fnMalloc},
			{Name: "__wbindgen_realloc", Kind: wasm.KindFunc, Idx: fnRealloc},
			{Name: "__wbindgen_exn_store", Kind: wasm.KindFunc, Idx: fnExnStore},
			{Name: "interpreter_new", Kind: wasm.KindFunc, Idx: fnInterpreterNew},
			{Name: "__wbg_interpreter_free", Kind: wasm.KindFunc, Idx: fnInterpreterFree},
			{Name: "interpreter_interpret_str_web", Kind: wasm.KindFunc, Idx: fnInterpret},
		},
		Code: []wasm.FuncBody{
			{Code: code(addToStackPointer())},
			{Code: code(malloc()), Locals: []wasm.LocalEntry{{Count: 1, ValType: i32}}},
			{Code: code(realloc()), Locals: []wasm.LocalEntry{{Count: 2, ValType: i32}}},
			{Code: code(wasm.LocalGet(0), wasm.GlobalSet(gException), end())},
			{Code: code(wasm.I32Const(1), end())},
			{Code: code(end())},
			{Code: code(interpret()), Locals: []wasm.LocalEntry{{Count: 1, ValType: i32}}},
		},
		Data: []wasm.DataSegment{
			{Offset: wasm.I32ConstExpr(emptyProgramAddr), Init: []byte(emptyProgramMsg)},
			{Offset: wasm.I32ConstExpr(lengthKeyAddr), Init: []byte(lengthKey)},
		},
	}
	return m.Encode()
}

// MissingImportModule imports a function the host does not provide.
func MissingImportModule() []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Results: []wasm.ValType{wasm.ValF64}},
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}},
		},
		Imports: []wasm.Import{
			{Module: "wbg", Name: "__wbg_random_1f3c2bd7eaa1d0a3", TypeIdx: 0},
			{Module: "wbg", Name: "__wbindgen_throw", TypeIdx: 1},
			{Module: "env", Name: "abort", TypeIdx: 1},
		},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports:  []wasm.Export{{Name: "memory", Kind: wasm.KindMemory, Idx: 0}},
	}
	return m.Encode()
}

// MismatchedImportModule imports a known host function with the wrong signature.
func MismatchedImportModule() []byte {
	m := &wasm.Module{
		Types:    []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}},
		Imports:  []wasm.Import{{Module: "wbg", Name: "__wbindgen_string_new", TypeIdx: 0}},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports:  []wasm.Export{{Name: "memory", Kind: wasm.KindMemory, Idx: 0}},
	}
	return m.Encode()
}

func end() wasm.Instruction { return wasm.Op(wasm.OpEnd) }

func code(instrs ...any) []byte {
	var flat []wasm.Instruction
	for _, in := range instrs {
		switch v := in.(type) {
		case wasm.Instruction:
			flat = append(flat, v)
		case []wasm.Instruction:
			flat = append(flat, v...)
		}
	}
	b, err := wasm.EncodeInstructions(flat)
	if err != nil {
		panic(err)
	}
	return b
}

// add_to_stack_pointer(delta) -> sp
func addToStackPointer() []wasm.Instruction {
	return []wasm.Instruction{
		wasm.GlobalGet(gStackPointer),
		wasm.LocalGet(0),
		wasm.Op(wasm.OpI32Add),
		wasm.GlobalSet(gStackPointer),
		wasm.GlobalGet(gStackPointer),
		end(),
	}
}

// heapEnd pushes memory.size << 16
func heapEnd() []wasm.Instruction {
	return []wasm.Instruction{wasm.MemorySize(), wasm.I32Const(16), wasm.Op(wasm.OpI32Shl)}
}

// malloc(size, align) -> ptr; local 2 holds the result
func malloc() []wasm.Instruction {
	out := []wasm.Instruction{
		wasm.GlobalGet(gHeap),
		wasm.LocalSet(2),
		wasm.GlobalGet(gHeap),
		wasm.LocalGet(0),
		wasm.Op(wasm.OpI32Add),
		wasm.GlobalSet(gHeap),
		wasm.GlobalGet(gHeap),
	}
	out = append(out, heapEnd()...)
	out = append(out, wasm.Op(wasm.OpI32GtU), wasm.If(), wasm.GlobalGet(gHeap))
	out = append(out, heapEnd()...)
	out = append(out,
		wasm.Op(wasm.OpI32Sub),
		wasm.I32Const(16),
		wasm.Op(wasm.OpI32ShrU),
		wasm.I32Const(1),
		wasm.Op(wasm.OpI32Add),
		wasm.MemoryGrow(),
		wasm.Op(wasm.OpDrop),
		end(),
		wasm.LocalGet(2),
		end(),
	)
	return out
}

// realloc(ptr, old, new, align) -> ptr; copies old bytes into a fresh block.
// local 4 is the new block, local 5 the copy index.
func realloc() []wasm.Instruction {
	return []wasm.Instruction{
		wasm.LocalGet(2),
		wasm.LocalGet(3),
		wasm.Call(fnMalloc),
		wasm.LocalSet(4),
		wasm.I32Const(0),
		wasm.LocalSet(5),
		wasm.Block(),
		wasm.Loop(),
		wasm.LocalGet(5),
		wasm.LocalGet(1),
		wasm.Op(wasm.OpI32Eq),
		wasm.BrIf(1),
		wasm.LocalGet(4),
		wasm.LocalGet(5),
		wasm.Op(wasm.OpI32Add),
		wasm.LocalGet(0),
		wasm.LocalGet(5),
		wasm.Op(wasm.OpI32Add),
		wasm.I32Load8U(0),
		wasm.I32Store8(0),
		wasm.LocalGet(5),
		wasm.I32Const(1),
		wasm.Op(wasm.OpI32Add),
		wasm.LocalSet(5),
		wasm.Br(0),
		end(),
		end(),
		wasm.LocalGet(4),
		end(),
	}
}

// writeFrame stores result, error handle and flag at the frame in local 0.
// Each argument pushes one i32.
func writeFrame(result, errHandle, flag []wasm.Instruction) []wasm.Instruction {
	var out []wasm.Instruction
	for i, word := range [][]wasm.Instruction{result, errHandle, flag} {
		out = append(out, wasm.LocalGet(0))
		out = append(out, word...)
		out = append(out, wasm.I32Store(uint32(i*4)))
	}
	return out
}

func i32s(v int32) []wasm.Instruction { return []wasm.Instruction{wasm.I32Const(v)} }

// firstByteIs pushes (first input byte == c)
func firstByteIs(c byte) []wasm.Instruction {
	return []wasm.Instruction{wasm.LocalGet(2), wasm.I32Load8U(0), wasm.I32Const(int32(c)), wasm.Op(wasm.OpI32Eq)}
}

// lengthBigInt pushes a BigInt handle for the input length
func lengthBigInt() []wasm.Instruction {
	return []wasm.Instruction{wasm.LocalGet(3), wasm.Op(wasm.OpI64ExtendI32U), wasm.Call(fnBigIntFromI64)}
}

// setLength builds target.length = BigInt(len) with target in local 4 and
// reports the outcome through the frame.
func setLength(target []wasm.Instruction) []wasm.Instruction {
	out := append([]wasm.Instruction{}, target...)
	out = append(out,
		wasm.LocalSet(4),
		wasm.LocalGet(4),
		wasm.I32Const(lengthKeyAddr),
		wasm.I32Const(int32(len(lengthKey))),
		wasm.Call(fnStringNew),
	)
	out = append(out, lengthBigInt()...)
	out = append(out, wasm.Call(fnObjectSet), wasm.Op(wasm.OpI32Eqz), wasm.If())
	out = append(out, writeFrame(i32s(0), []wasm.Instruction{wasm.GlobalGet(gException)}, i32s(1))...)
	out = append(out, wasm.Op(wasm.OpReturn), end())
	out = append(out, writeFrame([]wasm.Instruction{wasm.LocalGet(4)}, i32s(0), i32s(0))...)
	return append(out, wasm.Op(wasm.OpReturn))
}

// interpret(retptr, self, ptr, len)
func interpret() []wasm.Instruction {
	var out []wasm.Instruction

	// empty input throws
	out = append(out,
		wasm.LocalGet(3),
		wasm.Op(wasm.OpI32Eqz),
		wasm.If(),
		wasm.I32Const(emptyProgramAddr),
		wasm.I32Const(int32(len(emptyProgramMsg))),
		wasm.Call(fnThrow),
		wasm.Op(wasm.OpUnreachable),
		end(),
	)

	// "!msg" reports msg through the error flag
	out = append(out, firstByteIs('!')...)
	out = append(out, wasm.If())
	out = append(out, writeFrame(
		i32s(0),
		[]wasm.Instruction{
			wasm.LocalGet(2), wasm.I32Const(1), wasm.Op(wasm.OpI32Add),
			wasm.LocalGet(3), wasm.I32Const(1), wasm.Op(wasm.OpI32Sub),
			wasm.Call(fnStringNew),
		},
		i32s(1),
	)...)
	out = append(out, wasm.Op(wasm.OpReturn), end())

	// "#..." returns BigInt(len)
	out = append(out, firstByteIs('#')...)
	out = append(out, wasm.If())
	out = append(out, writeFrame(lengthBigInt(), i32s(0), i32s(0))...)
	out = append(out, wasm.Op(wasm.OpReturn), end())

	// "@..." returns {length: BigInt(len)}
	out = append(out, firstByteIs('@')...)
	out = append(out, wasm.If())
	out = append(out, setLength([]wasm.Instruction{wasm.Call(fnObjectNew)})...)
	out = append(out, end())

	// "%..." sets a property on null
	out = append(out, firstByteIs('%')...)
	out = append(out, wasm.If())
	out = append(out, setLength(i32s(129))...)
	out = append(out, end())

	// echo
	out = append(out, writeFrame(
		[]wasm.Instruction{wasm.LocalGet(2), wasm.LocalGet(3), wasm.Call(fnStringNew)},
		i32s(0),
		i32s(0),
	)...)
	return append(out, end())
}
