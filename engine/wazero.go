package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// WazeroEngine creates guest instances on wazero
type WazeroEngine struct {
	cache  wazero.CompilationCache
	loader *Loader
	logger *zap.Logger
	cfg    Config
}

// Config holds configuration for engine creation
type Config struct {
	// Logger receives engine diagnostics. Defaults to the package logger.
	Logger *zap.Logger

	// CompilationCacheDir persists compiled code across processes when set.
	CompilationCacheDir string

	// Loader configures how module bytes are fetched.
	Loader LoaderConfig

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// EnableWASI links wasi_snapshot_preview1 for guests that import it.
	EnableWASI bool

	// CloseOnContextDone stops a running guest when its call context is done.
	CloseOnContextDone bool
}

// NewWazeroEngine creates a new engine. A nil cfg uses defaults.
func NewWazeroEngine(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Logger == nil {
		c.Logger = Logger()
	}

	var cache wazero.CompilationCache
	if c.CompilationCacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(c.CompilationCacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "open compilation cache")
		}
	} else {
		cache = wazero.NewCompilationCache()
	}

	return &WazeroEngine{
		cache:  cache,
		loader: NewLoader(c.Loader, c.Logger),
		logger: c.Logger,
		cfg:    c,
	}, nil
}

// Close releases the compilation cache.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}

// Loader returns the engine's module loader.
func (e *WazeroEngine) Loader() *Loader {
	return e.loader
}

func (e *WazeroEngine) newRuntime(ctx context.Context) wazero.Runtime {
	rc := wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCloseOnContextDone(e.cfg.CloseOnContextDone)
	if e.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, rc)
}

// Instantiator binds a module source to the engine. The module is loaded on
// the first instantiation and its bytes are reused afterwards.
func (e *WazeroEngine) Instantiator(src Source) *Instantiator {
	return &Instantiator{engine: e, src: src}
}

// Instantiator implements wasmbridge.Instantiator for a module Source
type Instantiator struct {
	engine *WazeroEngine
	src    Source
	data   []byte
	mu     sync.Mutex
}

// Instantiate loads, links and instantiates the module.
func (i *Instantiator) Instantiate(ctx context.Context, imports wasmbridge.Imports) (wasmbridge.Instance, error) {
	data, err := i.bytes(ctx)
	if err != nil {
		return nil, err
	}
	return i.engine.InstantiateBytes(ctx, data, imports)
}

func (i *Instantiator) bytes(ctx context.Context) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.data != nil {
		return i.data, nil
	}
	data, err := i.engine.loader.Load(ctx, i.src)
	if err != nil {
		return nil, err
	}
	i.data = data
	return data, nil
}

// InstantiateBytes compiles a module, links its imports to imports and
// instantiates it in a dedicated runtime.
func (e *WazeroEngine) InstantiateBytes(ctx context.Context, data []byte, imports wasmbridge.Imports) (*WazeroInstance, error) {
	rt := e.newRuntime(ctx)
	inst, err := e.instantiate(ctx, rt, data, imports)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return inst, nil
}

func (e *WazeroEngine) instantiate(ctx context.Context, rt wazero.Runtime, data []byte, imports wasmbridge.Imports) (*WazeroInstance, error) {
	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	if e.cfg.EnableWASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return nil, errors.Wrap(errors.PhaseLinking, errors.KindInstantiation, err, "instantiate WASI")
		}
	}

	builder := rt.NewHostModuleBuilder(ImportModule)
	var missing []errors.MissingImport
	bound := 0
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module == wasi_snapshot_preview1.ModuleName && e.cfg.EnableWASI {
			continue
		}
		got := signature(def.ParamTypes(), def.ResultTypes())

		fn, ok := lookupHostFunc(name)
		if module != ImportModule || !ok {
			missing = append(missing, errors.MissingImport{Namespace: module, Function: name, Signature: got})
			continue
		}
		if !sameTypes(fn.params, def.ParamTypes()) || !sameTypes(fn.results, def.ResultTypes()) {
			missing = append(missing, errors.MissingImport{
				Namespace: module,
				Function:  name,
				Signature: fmt.Sprintf("%s, host provides %s", got, signature(fn.params, fn.results)),
			})
			continue
		}

		builder.NewFunctionBuilder().
			WithGoModuleFunction(fn.bind(imports), fn.params, fn.results).
			WithName(name).
			Export(name)
		bound++
		debugf("bound import %s.%s %s", module, name, got)
	}
	if len(missing) > 0 {
		return nil, &errors.MissingImportsError{Imports: missing}
	}

	if bound > 0 {
		if _, err := builder.Instantiate(ctx); err != nil {
			return nil, errors.Wrap(errors.PhaseLinking, errors.KindInstantiation, err, "instantiate host module")
		}
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseLinking, "memory export", "memory")
	}

	e.logger.Debug("guest instantiated",
		zap.Int("imports", bound),
		zap.Int("exports", len(compiled.ExportedFunctions())),
		zap.Uint32("memory_bytes", mem.Size()))

	return &WazeroInstance{
		runtime:   rt,
		module:    mod,
		memory:    &WazeroMemory{mem: mem},
		funcCache: make(map[string]api.Function),
	}, nil
}

// WazeroInstance is a running guest module
type WazeroInstance struct {
	runtime   wazero.Runtime
	module    api.Module
	memory    *WazeroMemory
	funcCache map[string]api.Function
}

// Memory returns the guest's linear memory.
func (i *WazeroInstance) Memory() wasmbridge.Memory {
	return i.memory
}

// Call invokes an exported function.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if i.module == nil {
		return nil, errors.NotInitialized(errors.PhaseCall, "instance")
	}
	fn, ok := i.funcCache[name]
	if !ok {
		fn = i.module.ExportedFunction(name)
		if fn == nil {
			return nil, errors.NotFound(errors.PhaseCall, "export", name)
		}
		i.funcCache[name] = fn
	}
	return fn.Call(ctx, params...)
}

// Exports returns the names of exported functions, sorted.
func (i *WazeroInstance) Exports() []string {
	if i.module == nil {
		return nil
	}
	defs := i.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes the guest, its host module and its runtime.
func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.runtime == nil {
		return nil
	}
	err := i.runtime.Close(ctx)
	i.runtime = nil
	i.module = nil
	i.funcCache = nil
	return err
}

// WazeroMemory adapts wazero memory to wasmbridge.Memory
type WazeroMemory struct {
	mem api.Memory
}

// Buffer returns a view of the whole memory. wazero invalidates it on growth.
func (m *WazeroMemory) Buffer() []byte {
	buf, _ := m.mem.Read(0, m.mem.Size())
	return buf
}

// Generation is the memory size in bytes, which changes on every growth.
func (m *WazeroMemory) Generation() uint64 {
	return uint64(m.mem.Size())
}

// Size returns the memory size in bytes.
func (m *WazeroMemory) Size() uint32 {
	return m.mem.Size()
}

// Grow adds delta pages and returns the previous size in pages.
func (m *WazeroMemory) Grow(delta uint32) (uint32, bool) {
	return m.mem.Grow(delta)
}

var (
	_ wasmbridge.Memory       = (*WazeroMemory)(nil)
	_ wasmbridge.Instance     = (*WazeroInstance)(nil)
	_ wasmbridge.Instantiator = (*Instantiator)(nil)
)
