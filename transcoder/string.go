package transcoder

import (
	"context"
	"unicode/utf8"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/memview"
)

// MaxStringSize bounds strings in either direction.
const MaxStringSize = 1 << 24

// StringEncoder copies host strings into guest memory using the guest's
// allocator.
type StringEncoder struct {
	views *memview.Cache
	alloc wasmbridge.Allocator
}

// NewStringEncoder creates an encoder writing through views.
func NewStringEncoder(views *memview.Cache, alloc wasmbridge.Allocator) *StringEncoder {
	return &StringEncoder{views: views, alloc: alloc}
}

// Encode writes s into freshly allocated guest memory and returns its address
// and its UTF-8 byte length.
//
// The first allocation is sized in UTF-16 code units, which is exact for
// ASCII. Bytes are copied one at a time until the first non-ASCII byte; the
// block is then reallocated to hold the consumed prefix plus three bytes per
// remaining code unit and the rest is copied as UTF-8. The returned length
// can be smaller than the allocation.
func (e *StringEncoder) Encode(ctx context.Context, s string) (ptr, n uint32, err error) {
	if !utf8.ValidString(s) {
		return 0, 0, errors.InvalidUTF8(errors.PhaseEncode, []byte(s))
	}
	if len(s) > MaxStringSize {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("string size %d exceeds maximum %d", len(s), MaxStringSize).
			Build()
	}

	units := uint32(UTF16Len(s))
	ptr, err = e.alloc.Malloc(ctx, units, 1)
	if err != nil {
		return 0, 0, errors.AllocationFailed(errors.PhaseEncode, units, 1, err)
	}

	buf, err := e.views.Slice(ptr, units)
	if err != nil {
		return 0, 0, err
	}
	offset := 0
	for ; offset < len(s); offset++ {
		c := s[offset]
		if c > 0x7F {
			break
		}
		buf[offset] = c
	}
	if offset == len(s) {
		return ptr, units, nil
	}

	rest := s[offset:]
	size := uint32(offset) + uint32(UTF16Len(rest))*3
	ptr, err = e.alloc.Realloc(ctx, ptr, units, size, 1)
	if err != nil {
		return 0, 0, errors.AllocationFailed(errors.PhaseEncode, size, 1, err)
	}

	if err := e.views.Write(ptr+uint32(offset), []byte(rest)); err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), nil
}

// StringDecoder reads UTF-8 strings out of guest memory.
type StringDecoder struct {
	views *memview.Cache
}

// NewStringDecoder creates a decoder reading through views.
func NewStringDecoder(views *memview.Cache) *StringDecoder {
	return &StringDecoder{views: views}
}

// Decode reads n bytes at ptr. Malformed UTF-8 is an error.
func (d *StringDecoder) Decode(ptr, n uint32) (string, error) {
	if n > MaxStringSize {
		return "", errors.New(errors.PhaseDecode, errors.KindOverflow).
			Detail("string size %d exceeds maximum %d", n, MaxStringSize).
			Build()
	}
	if n == 0 {
		return "", nil
	}
	b, err := d.views.Slice(ptr, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, b)
	}
	return string(b), nil
}

// UTF16Len returns the number of UTF-16 code units needed to represent s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
