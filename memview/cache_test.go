package memview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type growableMemory struct {
	buf []byte
	gen uint64
}

func (m *growableMemory) Buffer() []byte     { return m.buf }
func (m *growableMemory) Generation() uint64 { return m.gen }

func (m *growableMemory) grow(n int) {
	next := make([]byte, len(m.buf)+n)
	copy(next, m.buf)
	m.buf = next
	m.gen++
}

func TestCache_RebuildsAfterGrowth(t *testing.T) {
	mem := &growableMemory{buf: make([]byte, 64)}
	c := New(mem)

	require.NoError(t, c.Write(0, []byte("hi")))
	assert.Equal(t, uint64(1), c.Rebuilds())

	require.NoError(t, c.Write(2, []byte("!")))
	assert.Equal(t, uint64(1), c.Rebuilds(), "view must be reused while generation is unchanged")

	mem.grow(64)
	require.NoError(t, c.Write(100, []byte("tail")))
	assert.Equal(t, uint64(2), c.Rebuilds())

	got, err := c.Read(0, 3)
	require.NoError(t, err)
	assert.Equal(t, "hi!", string(got))
	assert.Equal(t, "tail", string(mem.buf[100:104]), "writes must land in the live buffer")
}

func TestCache_RebuildsEmptyView(t *testing.T) {
	mem := &growableMemory{}
	c := New(mem)

	assert.Empty(t, c.Bytes())
	mem.buf = make([]byte, 8)
	assert.Len(t, c.Bytes(), 8, "zero-length view is treated as stale")
}

func TestCache_Invalidate(t *testing.T) {
	mem := &growableMemory{buf: make([]byte, 8)}
	c := New(mem)
	c.Bytes()
	c.Invalidate()
	c.Bytes()
	assert.Equal(t, uint64(2), c.Rebuilds())
}

func TestCache_Bounds(t *testing.T) {
	c := New(&growableMemory{buf: make([]byte, 16)})

	_, err := c.Read(12, 8)
	assert.Error(t, err)
	assert.Error(t, c.Write(15, []byte{1, 2}))
	_, err = c.Uint32(13)
	assert.Error(t, err)

	_, err = c.Read(0xFFFFFFFF, 2)
	assert.Error(t, err, "offset overflow must be rejected")
}

func TestWords(t *testing.T) {
	c := New(&growableMemory{buf: make([]byte, 32)})

	require.NoError(t, c.PutUint32(16, 0xDEADBEEF))
	w := c.Words()
	assert.Equal(t, 8, w.Len())

	v, err := w.At(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)

	require.NoError(t, w.Set(5, 7))
	got, err := c.Uint32(20)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got)

	_, err = w.At(8)
	assert.Error(t, err)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, c.Bytes()[16:20])
}
