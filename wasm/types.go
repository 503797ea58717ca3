package wasm

// Module is a core WebAssembly module
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type index of each defined function
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Code     []FuncBody
	Data     []DataSegment
	Customs  []CustomSection
}

// FuncType is a function signature
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import describes an imported function
type Import struct {
	Module  string
	Name    string
	TypeIdx uint32
}

// Limits bounds a memory in pages
type Limits struct {
	Max *uint64
	Min uint64
}

// MemoryType describes a linear memory
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global's value type and mutability
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a module-defined global with its init expression
type Global struct {
	Init []byte // constant expression including the trailing end
	Type GlobalType
}

// Export names an exported item
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// LocalEntry declares Count locals of one type
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// FuncBody is the code of one defined function
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // instructions including the trailing end
}

// DataSegment is an active data segment for memory 0
type DataSegment struct {
	Offset []byte // constant expression including the trailing end
	Init   []byte
}

// CustomSection is an opaque named section
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions, which precede
// defined functions in the function index space.
func (m *Module) NumImportedFuncs() uint32 {
	return uint32(len(m.Imports))
}

// I32ConstExpr builds the constant expression i32.const v; end
func I32ConstExpr(v int32) []byte {
	w := newWriter()
	w.Byte(OpI32Const)
	w.WriteS32(v)
	w.Byte(OpEnd)
	return w.Bytes()
}
