// Package errors provides structured error types for the wasm bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a location path, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("interpreter_interpret_str_web").
//		Detail("result word at %d", off).
//		Build()
//
// Errors raised by the guest program itself are reported as *GuestError, whose
// message is exactly the guest's message.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
