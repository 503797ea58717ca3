// Package config loads playground configuration.
//
// Values are resolved in order: Default, an optional YAML file, then
// environment variables prefixed with FOCUS:
//
//	module:
//	  path: focus_bg.wasm
//	  timeout: 10s
//	engine:
//	  memory_limit_pages: 1024
//	log:
//	  level: debug
//
// is equivalent to FOCUS_MODULE_PATH=focus_bg.wasm FOCUS_MODULE_TIMEOUT=10s
// FOCUS_ENGINE_MEMORY_LIMIT_PAGES=1024 FOCUS_LOG_LEVEL=debug.
package config
