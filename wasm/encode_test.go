package wasm

import (
	"bytes"
	"testing"
)

func TestEncode_AddModule(t *testing.T) {
	body, err := EncodeInstructions([]Instruction{
		LocalGet(0),
		LocalGet(1),
		Op(OpI32Add),
		Op(OpEnd),
	})
	if err != nil {
		t.Fatal(err)
	}
	m := &Module{
		Types:   []FuncType{{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}}},
		Funcs:   []uint32{0},
		Exports: []Export{{Name: "add", Kind: KindFunc, Idx: 0}},
		Code:    []FuncBody{{Code: body}},
	}

	want := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x07, 0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00,
		0x0A, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6A, 0x0B,
	}
	if got := m.Encode(); !bytes.Equal(got, want) {
		t.Errorf("Encode() =\n% x\nwant\n% x", got, want)
	}
}

func TestEncode_MemoryGlobalData(t *testing.T) {
	maxPages := uint64(4)
	m := &Module{
		Memories: []MemoryType{{Limits: Limits{Min: 1, Max: &maxPages}}},
		Globals:  []Global{{Type: GlobalType{ValType: ValI32, Mutable: true}, Init: I32ConstExpr(65536)}},
		Data:     []DataSegment{{Offset: I32ConstExpr(16), Init: []byte("hi")}},
	}
	got := m.Encode()

	for _, part := range [][]byte{
		{SectionMemory, 0x04, 0x01, 0x01, 0x01, 0x04},
		{SectionGlobal, 0x08, 0x01, 0x7F, 0x01, 0x41, 0x80, 0x80, 0x04, 0x0B},
		{SectionData, 0x08, 0x01, 0x00, 0x41, 0x10, 0x0B, 0x02, 'h', 'i'},
	} {
		if !bytes.Contains(got, part) {
			t.Errorf("encoded module missing % x", part)
		}
	}
}

func TestEncodeInstructions(t *testing.T) {
	tests := []struct {
		name  string
		instr Instruction
		want  []byte
	}{
		{"i32.const -1", I32Const(-1), []byte{0x41, 0x7F}},
		{"i32.const 64", I32Const(64), []byte{0x41, 0xC0, 0x00}},
		{"i32.const -16", I32Const(-16), []byte{0x41, 0x70}},
		{"i64.const 2", I64Const(2), []byte{0x42, 0x02}},
		{"i32.store offset=8", I32Store(8), []byte{0x36, 0x02, 0x08}},
		{"i32.load8_u", I32Load8U(0), []byte{0x2D, 0x00, 0x00}},
		{"if", If(), []byte{0x04, 0x40}},
		{"call 3", Call(3), []byte{0x10, 0x03}},
		{"memory.grow", MemoryGrow(), []byte{0x40, 0x00}},
		{"global.set 1", GlobalSet(1), []byte{0x24, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeInstructions([]Instruction{tt.instr})
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncodeInstructions_BadImmediate(t *testing.T) {
	_, err := EncodeInstructions([]Instruction{{Opcode: OpCall, Imm: LocalImm{}}})
	if err == nil {
		t.Fatal("expected error for mismatched immediate")
	}
}
