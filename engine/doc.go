// Package engine runs wasm-bindgen style guest modules on wazero.
//
// # Architecture
//
//	WazeroEngine   - Shared configuration, compilation cache and module loader
//	Instantiator   - Binds one module Source to the engine
//	WazeroInstance - A running guest with its own runtime and host module
//
// # Instantiation Flow
//
//  1. The Loader reads the module bytes from a Source (bytes, reader, file or URL)
//  2. The module is compiled; compiled code is reused through the cache
//  3. Every function the guest imports from the "wbg" namespace is matched to a
//     host function, by exact name or by the hashed-name prefix wasm-bindgen
//     generates (__wbg_new_*, __wbg_set_*), and its signature is checked
//  4. Unmatched imports fail instantiation with errors.MissingImportsError
//  5. A host module exporting exactly the guest's import names is instantiated,
//     then the guest itself
//
// Each instance owns a wazero runtime because module names are unique per
// runtime and every guest build links against differently hashed names.
//
// # Host Import ABI
//
//	__wbindgen_string_new(ptr i32, len i32) -> i32
//	__wbindgen_number_new(f64) -> i32
//	__wbindgen_bigint_from_i64(i64) -> i32
//	__wbindgen_object_clone_ref(i32) -> i32
//	__wbindgen_object_drop_ref(i32)
//	__wbg_new_<hash>() -> i32
//	__wbg_set_<hash>(target i32, key i32, value i32) -> i32
//	__wbindgen_throw(ptr i32, len i32)
//
// # Memory Generations
//
// A wasm memory only ever grows, and growth is the only event that replaces
// the buffer wazero exposes, so WazeroMemory reports its byte size as its
// generation.
//
// # Thread Safety
//
// WazeroEngine is safe for concurrent use. WazeroInstance is NOT thread-safe
// and should be used by a single goroutine.
package engine
