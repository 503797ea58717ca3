package bridge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/guesttest"
	"github.com/wippyai/wasm-bridge/value"
)

func newWazeroBridge(t *testing.T) *Bridge {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.NewWazeroEngine(ctx, nil)
	require.NoError(t, err)

	b := New(eng.Instantiator(engine.Bytes(guesttest.EchoModule())))
	require.NoError(t, b.Init(ctx))
	t.Cleanup(func() {
		_ = b.Close(ctx)
		_ = eng.Close(ctx)
	})
	return b
}

func stackPointer(t *testing.T, b *Bridge) uint32 {
	t.Helper()
	res, err := b.instance.Call(context.Background(), DefaultExports().StackPointer, 0)
	require.NoError(t, err)
	return uint32(res[0])
}

func TestWazero_Echo(t *testing.T) {
	b := newWazeroBridge(t)
	ctx := context.Background()

	tests := []struct {
		source string
		want   any
	}{
		{"hello", "hello"},
		{"héllo wörld €", "héllo wörld €"},
		{"#abc", value.BigInt(4)},
		{"#", value.BigInt(1)},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := b.Interpret(ctx, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, uint32(guesttest.EchoStackBase), stackPointer(t, b))
			assert.Equal(t, 0, b.Heap().Len())
		})
	}
}

func TestWazero_Object(t *testing.T) {
	b := newWazeroBridge(t)

	js, err := b.InterpretJSON(context.Background(), "@ab")
	require.NoError(t, err)
	assert.Equal(t, `{"length":3}`, js)
	// key and value handles stay with the guest until it drops them
	assert.Equal(t, 2, b.Heap().Len())
}

func TestWazero_GuestErrors(t *testing.T) {
	b := newWazeroBridge(t)
	ctx := context.Background()

	_, err := b.Interpret(ctx, "!Unexpected token '$'.")
	var ge *errors.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "Unexpected token '$'.", err.Error())

	_, err = b.Interpret(ctx, "")
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "empty program", err.Error())
	assert.Equal(t, uint32(guesttest.EchoStackBase), stackPointer(t, b))
}

func TestWazero_HostException(t *testing.T) {
	b := newWazeroBridge(t)

	_, err := b.Interpret(context.Background(), "%")
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseCall, Kind: errors.KindInvalidInput})
	assert.Contains(t, err.Error(), `cannot set property "length" on null`)
}

func TestWazero_MemoryGrowth(t *testing.T) {
	b := newWazeroBridge(t)
	before := b.instance.Memory().Generation()

	src := strings.Repeat("ab€", 50_000)
	got, err := b.Interpret(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src, got)
	assert.Greater(t, b.instance.Memory().Generation(), before)
}
