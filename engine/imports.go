package engine

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero/api"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// ImportModule is the namespace wasm-bindgen guests import host functions from.
const ImportModule = "wbg"

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f64 = api.ValueTypeF64
)

type hostFunc struct {
	params  []api.ValueType
	results []api.ValueType
	bind    func(wasmbridge.Imports) api.GoModuleFunc
}

var exactImports = map[string]hostFunc{
	"__wbindgen_string_new": {
		params:  []api.ValueType{i32, i32},
		results: []api.ValueType{i32},
		bind: func(im wasmbridge.Imports) api.GoModuleFunc {
			return func(ctx context.Context, _ api.Module, stack []uint64) {
				stack[0] = uint64(im.StringNew(ctx, api.DecodeU32(stack[0]), api.DecodeU32(stack[1])))
			}
		},
	},
	"__wbindgen_number_new": {
		params:  []api.ValueType{f64},
		results: []api.ValueType{i32},
		bind: func(im wasmbridge.Imports) api.GoModuleFunc {
			return func(ctx context.Context, _ api.Module, stack []uint64) {
				stack[0] = uint64(im.NumberNew(ctx, api.DecodeF64(stack[0])))
			}
		},
	},
	"__wbindgen_bigint_from_i64": {
		params:  []api.ValueType{i64},
		results: []api.ValueType{i32},
		bind: func(im wasmbridge.Imports) api.GoModuleFunc {
			return func(ctx context.Context, _ api.Module, stack []uint64) {
				stack[0] = uint64(im.BigIntFromI64(ctx, int64(stack[0])))
			}
		},
	},
	"__wbindgen_object_clone_ref": {
		params:  []api.ValueType{i32},
		results: []api.ValueType{i32},
		bind: func(im wasmbridge.Imports) api.GoModuleFunc {
			return func(ctx context.Context, _ api.Module, stack []uint64) {
				stack[0] = uint64(im.ObjectCloneRef(ctx, api.DecodeU32(stack[0])))
			}
		},
	},
	"__wbindgen_object_drop_ref": {
		params: []api.ValueType{i32},
		bind: func(im wasmbridge.Imports) api.GoModuleFunc {
			return func(ctx context.Context, _ api.Module, stack []uint64) {
				im.ObjectDropRef(ctx, api.DecodeU32(stack[0]))
			}
		},
	},
	"__wbindgen_throw": {
		params: []api.ValueType{i32, i32},
		bind: func(im wasmbridge.Imports) api.GoModuleFunc {
			return func(ctx context.Context, _ api.Module, stack []uint64) {
				im.Throw(ctx, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
			}
		},
	},
}

// Hashed imports: wasm-bindgen appends a per-build hash to these names.
var prefixImports = []struct {
	prefix string
	fn     hostFunc
}{
	{
		prefix: "__wbg_new_",
		fn: hostFunc{
			results: []api.ValueType{i32},
			bind: func(im wasmbridge.Imports) api.GoModuleFunc {
				return func(ctx context.Context, _ api.Module, stack []uint64) {
					stack[0] = uint64(im.ObjectNew(ctx))
				}
			},
		},
	},
	{
		prefix: "__wbg_set_",
		fn: hostFunc{
			params:  []api.ValueType{i32, i32, i32},
			results: []api.ValueType{i32},
			bind: func(im wasmbridge.Imports) api.GoModuleFunc {
				return func(ctx context.Context, _ api.Module, stack []uint64) {
					stack[0] = uint64(im.ObjectSet(ctx, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
				}
			},
		},
	},
}

func lookupHostFunc(name string) (hostFunc, bool) {
	if fn, ok := exactImports[name]; ok {
		return fn, true
	}
	for _, p := range prefixImports {
		if strings.HasPrefix(name, p.prefix) {
			return p.fn, true
		}
	}
	return hostFunc{}, false
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteByte(')')
	if len(results) > 0 {
		b.WriteString(" -> ")
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(r))
		}
	}
	return b.String()
}
