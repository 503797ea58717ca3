package memview

import (
	"encoding/binary"

	"github.com/wippyai/wasm-bridge/errors"
)

// Words views guest memory as 32-bit little-endian words addressed by word
// index, so byte address p is word p/4.
type Words struct {
	buf []byte
}

// Len returns the number of whole words in the view.
func (w Words) Len() int {
	return len(w.buf) / 4
}

// At returns word i.
func (w Words) At(i uint32) (uint32, error) {
	off := uint64(i) * 4
	if off+4 > uint64(len(w.buf)) {
		return 0, errors.OutOfBounds(errors.PhaseDecode, uint32(off), 4, len(w.buf))
	}
	return binary.LittleEndian.Uint32(w.buf[off:]), nil
}

// Set stores v at word i.
func (w Words) Set(i, v uint32) error {
	off := uint64(i) * 4
	if off+4 > uint64(len(w.buf)) {
		return errors.OutOfBounds(errors.PhaseEncode, uint32(off), 4, len(w.buf))
	}
	binary.LittleEndian.PutUint32(w.buf[off:], v)
	return nil
}
