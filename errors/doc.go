// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (which side of the bridge failed) and Kind
// (error category). The Error type carries the bridge operation, a field path
// into the value being lowered or lifted, the Go type and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindNilPointer).
//		Op("do-thing").
//		Path("shared-thing", "y").
//		GoType("*bridge.ThingR").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Moved("get-name", "*bridge.Demo")
//	err := errors.Trap("make-demo", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind only.
package errors
