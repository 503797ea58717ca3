package memview

import (
	"encoding/binary"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Cache holds a view over guest memory and rebuilds it when the guest
// replaces its backing buffer. Every accessor checks staleness first, so a
// view is never used after a guest call has grown memory.
type Cache struct {
	mem      wasmbridge.Memory
	buf      []byte
	gen      uint64
	valid    bool
	rebuilds uint64
}

// New creates a cache over mem. No view is built until first use.
func New(mem wasmbridge.Memory) *Cache {
	return &Cache{mem: mem}
}

// Bytes returns a current byte view of guest memory.
func (c *Cache) Bytes() []byte {
	gen := c.mem.Generation()
	if !c.valid || len(c.buf) == 0 || gen != c.gen {
		c.buf = c.mem.Buffer()
		c.gen = gen
		c.valid = true
		c.rebuilds++
	}
	return c.buf
}

// Words returns a current 32-bit little-endian view of guest memory.
func (c *Cache) Words() Words {
	return Words{buf: c.Bytes()}
}

// Invalidate drops the cached view.
func (c *Cache) Invalidate() {
	c.buf = nil
	c.valid = false
}

// Rebuilds returns how many times the view has been rebuilt.
func (c *Cache) Rebuilds() uint64 {
	return c.rebuilds
}

// Read copies n bytes starting at ptr.
func (c *Cache) Read(ptr, n uint32) ([]byte, error) {
	b, err := c.Slice(ptr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Slice returns the n bytes at ptr without copying. The result aliases
// guest memory and must not be retained across guest calls.
func (c *Cache) Slice(ptr, n uint32) ([]byte, error) {
	buf := c.Bytes()
	if uint64(ptr)+uint64(n) > uint64(len(buf)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, n, len(buf))
	}
	return buf[ptr : ptr+n : ptr+n], nil
}

// Write copies data into guest memory at ptr.
func (c *Cache) Write(ptr uint32, data []byte) error {
	buf := c.Bytes()
	if uint64(ptr)+uint64(len(data)) > uint64(len(buf)) {
		return errors.OutOfBounds(errors.PhaseEncode, ptr, uint32(len(data)), len(buf))
	}
	copy(buf[ptr:], data)
	return nil
}

// Uint32 reads a little-endian word at byte offset off.
func (c *Cache) Uint32(off uint32) (uint32, error) {
	b, err := c.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PutUint32 writes a little-endian word at byte offset off.
func (c *Cache) PutUint32(off, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return c.Write(off, b[:])
}
