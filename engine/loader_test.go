package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/guesttest"
)

const fallbackMsg = "module is not served as application/wasm, falling back to buffered load"

func newTestLoader(cfg LoaderConfig) (*Loader, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg.RetryMax = 1
	return NewLoader(cfg, zap.New(core)), logs
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func serve(t *testing.T, body []byte, header map[string]string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/guest.wasm" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, WasmContentType, r.Header.Get("Accept"))
		for k, v := range header {
			w.Header().Set(k, v)
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLoader_URL(t *testing.T) {
	module := guesttest.EchoModule()

	tests := []struct {
		name     string
		body     []byte
		header   map[string]string
		fallback bool
	}{
		{
			name:   "streamed",
			body:   module,
			header: map[string]string{"Content-Type": "application/wasm"},
		},
		{
			name:   "streamed with parameters",
			body:   module,
			header: map[string]string{"Content-Type": "application/wasm; charset=binary"},
		},
		{
			name:     "octet stream falls back",
			body:     module,
			header:   map[string]string{"Content-Type": "application/octet-stream"},
			fallback: true,
		},
		{
			name:   "gzip encoded",
			body:   gzipped(t, module),
			header: map[string]string{"Content-Type": "application/wasm", "Content-Encoding": "gzip"},
		},
		{
			name:     "gzip archive sniffed",
			body:     gzipped(t, module),
			header:   map[string]string{"Content-Type": "application/octet-stream"},
			fallback: true,
		},
		{
			name:     "zstd archive sniffed",
			body:     zstded(t, module),
			header:   map[string]string{"Content-Type": "application/octet-stream"},
			fallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, logs := newTestLoader(LoaderConfig{})
			url := serve(t, tt.body, tt.header)

			data, err := l.Load(context.Background(), URL(url+"/guest.wasm"))
			require.NoError(t, err)
			assert.Equal(t, module, data)

			want := 0
			if tt.fallback {
				want = 1
			}
			assert.Equal(t, want, logs.FilterMessage(fallbackMsg).Len(), "one warning per load")
		})
	}
}

func TestLoader_SniffedArchiveMustHoldModule(t *testing.T) {
	l, logs := newTestLoader(LoaderConfig{})

	_, err := l.Load(context.Background(), Reader(bytes.NewReader(gzipped(t, []byte("<html>not a module</html>"))), ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData})
	assert.Contains(t, err.Error(), "bad magic")
	assert.Equal(t, 1, logs.FilterMessage(fallbackMsg).Len())
}

func TestLoader_URLErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   []byte
		header map[string]string
		want   string
	}{
		{
			name: "not found",
			path: "/missing.wasm",
			want: "404",
		},
		{
			name:   "bad magic",
			path:   "/guest.wasm",
			body:   []byte("\x00asX\x01\x00\x00\x00"),
			header: map[string]string{"Content-Type": "application/wasm"},
			want:   "bad magic",
		},
		{
			name:   "unsupported version",
			path:   "/guest.wasm",
			body:   []byte("\x00asm\x02\x00\x00\x00"),
			header: map[string]string{"Content-Type": "application/wasm"},
			want:   "unsupported binary version 2",
		},
		{
			name:   "html page",
			path:   "/guest.wasm",
			body:   []byte("<!doctype html><html><body>not here</body></html>"),
			header: map[string]string{"Content-Type": "text/html"},
			want:   "not a wasm module",
		},
		{
			name:   "unknown encoding",
			path:   "/guest.wasm",
			body:   []byte("data"),
			header: map[string]string{"Content-Type": "application/wasm", "Content-Encoding": "br"},
			want:   "unsupported content encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLoader(LoaderConfig{})
			url := serve(t, tt.body, tt.header)

			_, err := l.Load(context.Background(), URL(url+tt.path))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData})
		})
	}
}

func TestLoader_SizeLimit(t *testing.T) {
	l, _ := newTestLoader(LoaderConfig{MaxModuleSize: 16})

	_, err := l.Load(context.Background(), Bytes(guesttest.EchoModule()))
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindOverflow})
}

func TestLoader_Reader(t *testing.T) {
	module := guesttest.EchoModule()

	l, logs := newTestLoader(LoaderConfig{})
	data, err := l.Load(context.Background(), Reader(bytes.NewReader(module), ""))
	require.NoError(t, err)
	assert.Equal(t, module, data)
	assert.Equal(t, 1, logs.FilterMessage(fallbackMsg).Len())

	_, err = l.Load(context.Background(), Reader(nil, WasmContentType))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})
}

func TestLoader_File(t *testing.T) {
	module := guesttest.EchoModule()
	dir := t.TempDir()

	files := map[string][]byte{
		"guest.wasm":     module,
		"guest.wasm.gz":  gzipped(t, module),
		"guest.wasm.zst": zstded(t, module),
		"guest.bin":      module,
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	for name := range files {
		t.Run(name, func(t *testing.T) {
			l, logs := newTestLoader(LoaderConfig{})
			data, err := l.Load(context.Background(), File(filepath.Join(dir, name)))
			require.NoError(t, err)
			assert.Equal(t, module, data)
			assert.Equal(t, name == "guest.bin", logs.FilterMessage(fallbackMsg).Len() > 0)
		})
	}

	l, _ := newTestLoader(LoaderConfig{})
	_, err := l.Load(context.Background(), File(filepath.Join(dir, "absent.wasm")))
	assert.Error(t, err)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "bytes(3)", Bytes([]byte{1, 2, 3}).String())
	assert.Equal(t, "reader", Reader(nil, "").String())
	assert.Equal(t, "guest.wasm", File("guest.wasm").String())
	assert.Equal(t, "http://host/guest.wasm", URL("http://host/guest.wasm").String())
}

func TestInstantiator_URL(t *testing.T) {
	ctx := context.Background()
	url := serve(t, guesttest.EchoModule(), map[string]string{"Content-Type": "application/wasm"})

	eng, err := NewWazeroEngine(ctx, &Config{Loader: LoaderConfig{RetryMax: 1}})
	require.NoError(t, err)
	defer eng.Close(ctx)

	im := &testImports{}
	inst, err := eng.Instantiator(URL(url+"/guest.wasm")).Instantiate(ctx, im)
	require.NoError(t, err)
	defer inst.Close(ctx)
	im.inst = inst.(*WazeroInstance)

	words, err := interpret(t, im.inst, "remote")
	require.NoError(t, err)
	assert.Equal(t, "remote", im.get(words[0]))
}
