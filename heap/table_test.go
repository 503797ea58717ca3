package heap

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/value"
)

func TestTable_Sentinels(t *testing.T) {
	tbl := NewTable()

	tests := []struct {
		h    Handle
		want any
	}{
		{0, value.Undefined},
		{127, value.Undefined},
		{Undefined, value.Undefined},
		{Null, nil},
		{True, true},
		{False, false},
	}
	for _, tt := range tests {
		v, err := tbl.Get(tt.h)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, "handle %d", tt.h)
	}

	for _, h := range []Handle{0, Undefined, Null, True, False} {
		require.NoError(t, tbl.Free(h))
		v, err := tbl.Get(h)
		require.NoError(t, err, "reserved handle %d must survive Free", h)
		_ = v
	}
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, FirstFree, tbl.Alloc("first"))
}

func TestTable_ReusesMostRecentlyFreed(t *testing.T) {
	tbl := NewTable()

	a := tbl.Alloc("a")
	b := tbl.Alloc("b")
	c := tbl.Alloc("c")
	require.Equal(t, []Handle{132, 133, 134}, []Handle{a, b, c})

	require.NoError(t, tbl.Free(a))
	require.NoError(t, tbl.Free(c))

	assert.Equal(t, c, tbl.Alloc("x"))
	assert.Equal(t, a, tbl.Alloc("y"))
	assert.Equal(t, Handle(135), tbl.Alloc("z"))
	assert.Equal(t, 4, tbl.Len())
}

func TestTable_ReusesFreedSet(t *testing.T) {
	tests := []struct {
		name  string
		freed []int // indexes into the allocated handles, in free order
	}{
		{"ascending", []int{0, 1, 2, 3, 4}},
		{"descending", []int{9, 7, 5, 3, 1}},
		{"shuffled", []int{6, 2, 9, 0, 4, 7}},
		{"interleaved", []int{3, 8, 1, 5, 0, 9, 2}},
		{"all", []int{4, 0, 8, 2, 6, 1, 9, 3, 7, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := NewTable()
			handles := make([]Handle, 10)
			for i := range handles {
				handles[i] = tbl.Alloc(i)
			}

			want := make([]Handle, 0, len(tt.freed))
			for _, i := range tt.freed {
				require.NoError(t, tbl.Free(handles[i]))
				want = append(want, handles[i])
			}
			require.Equal(t, len(handles)-len(tt.freed), tbl.Len())

			got := make([]Handle, 0, len(tt.freed))
			for range tt.freed {
				got = append(got, tbl.Alloc("again"))
			}
			assert.ElementsMatch(t, want, got)
			assert.Equal(t, len(handles), tbl.Len())
			assert.Equal(t, FirstFree+Handle(len(handles)), tbl.Alloc("next"))
		})
	}
}

func TestTable_Take(t *testing.T) {
	tbl := NewTable()
	h := tbl.Alloc(value.BigInt(2))

	v, err := tbl.Take(h)
	require.NoError(t, err)
	assert.Equal(t, value.BigInt(2), v)

	_, err = tbl.Get(h)
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseHandle, Kind: errors.KindInvalidHandle}))

	v, err = tbl.Take(True)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestTable_ContractViolations(t *testing.T) {
	tbl := NewTable()
	h := tbl.Alloc("x")
	require.NoError(t, tbl.Free(h))

	err := tbl.Free(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "double free")

	_, err = tbl.Get(1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	require.Error(t, tbl.Free(1000))
}

func TestTable_Observer(t *testing.T) {
	tbl := NewTable()
	var events []Event
	tbl.Subscribe(ObserverFunc(func(e Event) { events = append(events, e) }))

	h := tbl.Alloc("v")
	require.NoError(t, tbl.Free(h))
	require.NoError(t, tbl.Free(Null))

	require.Len(t, events, 2)
	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, EventDropped, events[1].Type)
	assert.Equal(t, "v", events[1].Value)
	assert.Equal(t, "dropped", events[1].Type.String())
}

func TestTable_Clear(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < 10; i++ {
		tbl.Alloc(i)
	}
	dropped := 0
	tbl.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventDropped {
			dropped++
		}
	}))

	tbl.Clear()
	assert.Equal(t, 10, dropped)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, FirstFree, tbl.Alloc("again"))

	v, err := tbl.Get(Null)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func BenchmarkTable_AllocFree(b *testing.B) {
	tbl := NewTable()
	for i := 0; i < b.N; i++ {
		h := tbl.Alloc(i)
		_ = tbl.Free(h)
	}
}
