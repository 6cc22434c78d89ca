// Package errors provides the structured error types used across
// clap-runtime.
//
// Errors are categorized by Phase (which lifecycle step failed) and Kind
// (the closed error set of the ABI contract). Every error maps to a log
// severity so that failure paths crossing the plugin boundary can be
// reported through the host's logging capability.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseActivate, errors.KindActivationFailed).
//		Detail("plugin %q rejected configuration", id).
//		Build()
//
// Or the convenience constructors for the common cases:
//
//	err := errors.MissingFactory()
//	err := errors.NullPointer(errors.PhaseDispatch, "plugin instance")
//
// All errors implement the standard error interface and support
// errors.Is/As; two errors match when their Phase and Kind match.
package errors
