package wasm

import "fmt"

// Instruction is a single WebAssembly instruction with its immediate
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop and if
type BlockImm struct {
	Type int32
}

// BranchImm holds the label index for br and br_if
type BranchImm struct {
	LabelIdx uint32
}

// CallImm holds the function index for call
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set and local.tee
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds the memarg of loads and stores. Align is log2 of the alignment.
type MemoryImm struct {
	Offset uint32
	Align  uint32
}

// I32Imm holds the constant for i32.const
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant for i64.const
type I64Imm struct {
	Value int64
}

// F64Imm holds the constant for f64.const
type F64Imm struct {
	Value float64
}

// Op builds an instruction without immediates
func Op(opcode byte) Instruction { return Instruction{Opcode: opcode} }

func Block() Instruction { return Instruction{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeEmpty}} }
func Loop() Instruction  { return Instruction{Opcode: OpLoop, Imm: BlockImm{Type: BlockTypeEmpty}} }
func If() Instruction    { return Instruction{Opcode: OpIf, Imm: BlockImm{Type: BlockTypeEmpty}} }

func Br(label uint32) Instruction   { return Instruction{Opcode: OpBr, Imm: BranchImm{LabelIdx: label}} }
func BrIf(label uint32) Instruction { return Instruction{Opcode: OpBrIf, Imm: BranchImm{LabelIdx: label}} }
func Call(fn uint32) Instruction    { return Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: fn}} }

func LocalGet(i uint32) Instruction  { return Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: i}} }
func LocalSet(i uint32) Instruction  { return Instruction{Opcode: OpLocalSet, Imm: LocalImm{LocalIdx: i}} }
func LocalTee(i uint32) Instruction  { return Instruction{Opcode: OpLocalTee, Imm: LocalImm{LocalIdx: i}} }
func GlobalGet(i uint32) Instruction { return Instruction{Opcode: OpGlobalGet, Imm: GlobalImm{GlobalIdx: i}} }
func GlobalSet(i uint32) Instruction { return Instruction{Opcode: OpGlobalSet, Imm: GlobalImm{GlobalIdx: i}} }

func I32Const(v int32) Instruction   { return Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: v}} }
func I64Const(v int64) Instruction   { return Instruction{Opcode: OpI64Const, Imm: I64Imm{Value: v}} }
func F64Const(v float64) Instruction { return Instruction{Opcode: OpF64Const, Imm: F64Imm{Value: v}} }

// I32Store stores an i32 at address + offset with 4-byte alignment
func I32Store(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Store, Imm: MemoryImm{Offset: offset, Align: 2}}
}

// I32Load loads an i32 from address + offset with 4-byte alignment
func I32Load(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Load, Imm: MemoryImm{Offset: offset, Align: 2}}
}

// I32Load8U loads a zero-extended byte from address + offset
func I32Load8U(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Load8U, Imm: MemoryImm{Offset: offset}}
}

// I32Store8 stores the low byte of an i32 at address + offset
func I32Store8(offset uint32) Instruction {
	return Instruction{Opcode: OpI32Store8, Imm: MemoryImm{Offset: offset}}
}

func MemorySize() Instruction { return Instruction{Opcode: OpMemorySize} }
func MemoryGrow() Instruction { return Instruction{Opcode: OpMemoryGrow} }

func encodeInstruction(w *writer, instr Instruction) error {
	w.Byte(instr.Opcode)

	switch instr.Opcode {
	case OpBlock, OpLoop, OpIf:
		imm, ok := instr.Imm.(BlockImm)
		if !ok {
			return immError(instr)
		}
		w.WriteS32(imm.Type)

	case OpBr, OpBrIf:
		imm, ok := instr.Imm.(BranchImm)
		if !ok {
			return immError(instr)
		}
		w.WriteU32(imm.LabelIdx)

	case OpCall:
		imm, ok := instr.Imm.(CallImm)
		if !ok {
			return immError(instr)
		}
		w.WriteU32(imm.FuncIdx)

	case OpLocalGet, OpLocalSet, OpLocalTee:
		imm, ok := instr.Imm.(LocalImm)
		if !ok {
			return immError(instr)
		}
		w.WriteU32(imm.LocalIdx)

	case OpGlobalGet, OpGlobalSet:
		imm, ok := instr.Imm.(GlobalImm)
		if !ok {
			return immError(instr)
		}
		w.WriteU32(imm.GlobalIdx)

	case OpI32Load, OpI32Load8U, OpI32Store, OpI32Store8:
		imm, ok := instr.Imm.(MemoryImm)
		if !ok {
			return immError(instr)
		}
		w.WriteU32(imm.Align)
		w.WriteU32(imm.Offset)

	case OpMemorySize, OpMemoryGrow:
		w.Byte(0x00) // memory index

	case OpI32Const:
		imm, ok := instr.Imm.(I32Imm)
		if !ok {
			return immError(instr)
		}
		w.WriteS32(imm.Value)

	case OpI64Const:
		imm, ok := instr.Imm.(I64Imm)
		if !ok {
			return immError(instr)
		}
		w.WriteS64(imm.Value)

	case OpF64Const:
		imm, ok := instr.Imm.(F64Imm)
		if !ok {
			return immError(instr)
		}
		w.WriteF64(imm.Value)
	}
	return nil
}

func immError(instr Instruction) error {
	return fmt.Errorf("opcode 0x%02x: unexpected immediate %T", instr.Opcode, instr.Imm)
}

// EncodeInstructions encodes instructions to bytes
func EncodeInstructions(instrs []Instruction) ([]byte, error) {
	w := newWriter()
	for _, instr := range instrs {
		if err := encodeInstruction(w, instr); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}
