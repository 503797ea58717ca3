package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// WasmContentType is the media type that enables the streaming load path.
const WasmContentType = "application/wasm"

const (
	wasmMagic   = 0x6D736100
	wasmVersion = 1
)

// LoaderConfig configures module fetching
type LoaderConfig struct {
	// MaxModuleSize bounds the decoded module size. 0 means 64 MiB.
	MaxModuleSize int64

	// RetryMax is the number of HTTP retries. 0 means 3.
	RetryMax int

	// Timeout bounds a single HTTP attempt. 0 means 30s.
	Timeout time.Duration
}

// SourceKind identifies where module bytes come from
type SourceKind uint8

const (
	SourceBytes SourceKind = iota
	SourceReader
	SourceFile
	SourceURL
)

// Source describes where to load a module from
type Source struct {
	Reader      io.Reader
	Location    string // file path or URL
	ContentType string
	Data        []byte
	Kind        SourceKind
}

// Bytes is a module already in memory.
func Bytes(data []byte) Source {
	return Source{Kind: SourceBytes, Data: data, ContentType: WasmContentType}
}

// Reader is a module body with its declared content type. An empty or
// unexpected content type selects the buffered fallback.
func Reader(r io.Reader, contentType string) Source {
	return Source{Kind: SourceReader, Reader: r, ContentType: contentType}
}

// File is a module on disk. ".wasm" files stream; ".gz" and ".zst" files are
// decompressed.
func File(path string) Source {
	return Source{Kind: SourceFile, Location: path}
}

// URL is a module served over HTTP.
func URL(u string) Source {
	return Source{Kind: SourceURL, Location: u}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceBytes:
		return fmt.Sprintf("bytes(%d)", len(s.Data))
	case SourceReader:
		return "reader"
	default:
		return s.Location
	}
}

// Loader fetches module bytes. Bodies labelled application/wasm are validated
// while they are read; anything else is buffered whole, sniffed and accepted
// only when it is a wasm module.
type Loader struct {
	client *retryablehttp.Client
	logger *zap.Logger
	cfg    LoaderConfig
}

// NewLoader creates a loader. A nil logger disables logging.
func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	if cfg.MaxModuleSize <= 0 {
		cfg.MaxModuleSize = 64 << 20
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = &retryLogger{log: logger.Sugar()}

	return &Loader{client: client, logger: logger, cfg: cfg}
}

// Load returns the raw module bytes for src.
func (l *Loader) Load(ctx context.Context, src Source) ([]byte, error) {
	switch src.Kind {
	case SourceBytes:
		return l.read(bytes.NewReader(src.Data), src.ContentType, "")
	case SourceReader:
		if src.Reader == nil {
			return nil, errors.InvalidInput(errors.PhaseLoad, "nil module reader")
		}
		return l.read(src.Reader, src.ContentType, "")
	case SourceFile:
		return l.loadFile(src.Location)
	case SourceURL:
		return l.loadURL(ctx, src.Location)
	default:
		return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("unknown source kind %d", src.Kind))
	}
}

func (l *Loader) loadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Load("open module file", err)
	}
	defer f.Close()

	contentType, encoding := "", ""
	name := path
	switch ext := filepath.Ext(name); ext {
	case ".gz":
		encoding, name = "gzip", strings.TrimSuffix(name, ext)
	case ".zst":
		encoding, name = "zstd", strings.TrimSuffix(name, ext)
	}
	if filepath.Ext(name) == ".wasm" {
		contentType = WasmContentType
	}
	return l.read(f, contentType, encoding)
}

func (l *Loader) loadURL(ctx context.Context, u string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Load("build module request", err)
	}
	req.Header.Set("Accept", WasmContentType)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Load("fetch module", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Load(fmt.Sprintf("fetch module: %s", resp.Status), nil)
	}
	return l.read(resp.Body, resp.Header.Get("Content-Type"), resp.Header.Get("Content-Encoding"))
}

func (l *Loader) read(r io.Reader, contentType, encoding string) ([]byte, error) {
	r, closeFn, err := decompress(r, encoding)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if isWasmContentType(contentType) {
		return l.stream(r)
	}

	l.logger.Warn("module is not served as application/wasm, falling back to buffered load",
		zap.String("content_type", contentType))
	return l.buffered(r)
}

// stream checks the header before consuming the rest of the body.
func (l *Loader) stream(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(8)
	if err != nil {
		return nil, errors.Load("read module header", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}
	return l.readLimited(br)
}

func (l *Loader) buffered(r io.Reader) ([]byte, error) {
	data, err := l.readLimited(r)
	if err != nil {
		return nil, err
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/gzip"):
		return l.unpack(data, "gzip")
	case mt.Is("application/zstd"):
		return l.unpack(data, "zstd")
	case mt.Is(WasmContentType):
		return data, checkHeader(data)
	default:
		return nil, errors.Load(fmt.Sprintf("not a wasm module (detected %s)", mt.String()), nil)
	}
}

// unpack decompresses a sniffed body; the result must be a wasm module.
func (l *Loader) unpack(data []byte, encoding string) ([]byte, error) {
	r, closeFn, err := decompress(bytes.NewReader(data), encoding)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	out, err := l.readLimited(r)
	if err != nil {
		return nil, err
	}
	return out, checkHeader(out)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.cfg.MaxModuleSize+1))
	if err != nil {
		return nil, errors.Load("read module", err)
	}
	if int64(len(data)) > l.cfg.MaxModuleSize {
		return nil, errors.Overflow(errors.PhaseLoad, len(data), fmt.Sprintf("module size limit %d", l.cfg.MaxModuleSize))
	}
	return data, nil
}

func decompress(r io.Reader, encoding string) (io.Reader, func(), error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, func() {}, nil
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, errors.Load("gzip module body", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, errors.Load("zstd module body", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, errors.Load(fmt.Sprintf("unsupported content encoding %q", encoding), nil)
	}
}

func isWasmContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == WasmContentType
}

func checkHeader(b []byte) error {
	if len(b) < 8 {
		return errors.Load(fmt.Sprintf("module too short (%d bytes)", len(b)), nil)
	}
	if binary.LittleEndian.Uint32(b) != wasmMagic {
		return errors.Load(fmt.Sprintf("bad magic % x", b[:4]), nil)
	}
	if v := binary.LittleEndian.Uint32(b[4:]); v != wasmVersion {
		return errors.Load(fmt.Sprintf("unsupported binary version %d", v), nil)
	}
	return nil
}

// retryLogger routes retryablehttp's leveled logging to zap.
type retryLogger struct {
	log *zap.SugaredLogger
}

func (r *retryLogger) Error(msg string, kv ...any) { r.log.Errorw(msg, kv...) }
func (r *retryLogger) Info(msg string, kv ...any)  { r.log.Debugw(msg, kv...) }
func (r *retryLogger) Debug(msg string, kv ...any) { r.log.Debugw(msg, kv...) }
func (r *retryLogger) Warn(msg string, kv ...any)  { r.log.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = (*retryLogger)(nil)
