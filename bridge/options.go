package bridge

import (
	"go.uber.org/zap"
)

// Exports names the guest functions the bridge calls.
type Exports struct {
	Malloc       string
	Realloc      string
	StackPointer string
	ExnStore     string

	// New creates the guest interpreter and Free releases it. When New is
	// empty Run is called without a receiver: run(frame, ptr, len).
	New  string
	Free string
	Run  string
}

// DefaultExports returns the names wasm-bindgen generates for the
// interpreter's exported class.
func DefaultExports() Exports {
	return Exports{
		Malloc:       "__wbindgen_malloc",
		Realloc:      "__wbindgen_realloc",
		StackPointer: "__wbindgen_add_to_stack_pointer",
		ExnStore:     "__wbindgen_exn_store",
		New:          "interpreter_new",
		Free:         "__wbg_interpreter_free",
		Run:          "interpreter_interpret_str_web",
	}
}

// ProgramExports returns the names of a guest exporting a free function
// run_program(frame, ptr, len) instead of an interpreter class.
func ProgramExports() Exports {
	e := DefaultExports()
	e.New = ""
	e.Free = ""
	e.Run = "run_program"
	return e
}

// withDefaults fills the allocator, stack and exception names left empty.
func (e Exports) withDefaults() Exports {
	d := DefaultExports()
	if e.Malloc == "" {
		e.Malloc = d.Malloc
	}
	if e.Realloc == "" {
		e.Realloc = d.Realloc
	}
	if e.StackPointer == "" {
		e.StackPointer = d.StackPointer
	}
	if e.ExnStore == "" {
		e.ExnStore = d.ExnStore
	}
	if e.Run == "" {
		e.Run = d.Run
	}
	return e
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Handle lifecycle events are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithExports overrides the guest export names.
func WithExports(e Exports) Option {
	return func(b *Bridge) {
		b.exports = e.withDefaults()
	}
}

// WithMetrics records interpretation metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}
