package wasm

import (
	"bytes"
	"encoding/binary"
	"math"
)

type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) Bytes() []byte          { return w.buf.Bytes() }
func (w *writer) Len() int               { return w.buf.Len() }
func (w *writer) Byte(b byte)            { w.buf.WriteByte(b) }
func (w *writer) WriteBytes(data []byte) { w.buf.Write(data) }

// WriteU32 writes unsigned LEB128
func (w *writer) WriteU32(v uint32) {
	w.WriteU64(uint64(v))
}

func (w *writer) WriteU64(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// WriteS32 writes signed LEB128
func (w *writer) WriteS32(v int32) {
	w.WriteS64(int64(v))
}

func (w *writer) WriteS64(v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.buf.WriteByte(b)
			return
		}
		w.buf.WriteByte(b | 0x80)
	}
}

func (w *writer) WriteF64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}

func (w *writer) WriteU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) WriteSection(id byte, body *writer) {
	w.Byte(id)
	w.WriteU32(uint32(body.Len()))
	w.WriteBytes(body.Bytes())
}
