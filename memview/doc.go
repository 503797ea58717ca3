// Package memview caches byte and word views over a guest's linear memory.
//
// A guest may grow its memory during any call into it, which replaces the
// buffer a previously obtained view points at. Cache compares the memory's
// generation on every access and rebuilds the view when it has changed or
// when the cached view has length zero.
package memview
