package errors

import (
	"fmt"
	"strings"

	"github.com/cadenza-audio/clap-runtime/abi"
)

// Phase indicates which lifecycle step the error occurred in
type Phase string

const (
	PhaseLoad     Phase = "load"     // bundle loading and symbol resolution
	PhaseFactory  Phase = "factory"  // instance creation
	PhaseInit     Phase = "init"     // plugin-side init protocol
	PhaseActivate Phase = "activate" // activation and deactivation
	PhaseProcess  Phase = "process"  // processing state machine and cycles
	PhaseDispatch Phase = "dispatch" // plugin-side foreign call dispatch
	PhaseTeardown Phase = "teardown" // destruction
)

// Kind categorizes the error within the closed host- and plugin-facing sets
type Kind string

const (
	// Host-facing kinds: failures observed while driving a foreign plugin.
	KindMissingFactory        Kind = "missing_factory"
	KindInstantiationFailed   Kind = "instantiation_failed"
	KindNullActivateFunction  Kind = "null_activate_function"
	KindActivationFailed      Kind = "activation_failed"
	KindStartProcessingFailed Kind = "start_processing_failed"
	KindProcessingStarted     Kind = "processing_started"
	KindProcessingStopped     Kind = "processing_stopped"
	KindNullProcessFunction   Kind = "null_process_function"
	KindProcessingFailed      Kind = "processing_failed"

	// Plugin-facing kinds: failures observed while dispatching a foreign
	// host's calls into plugin code.
	KindNullPluginInstance Kind = "null_plugin_instance"
	KindAlreadyDestroyed   Kind = "already_destroyed"
	KindNullPointer        Kind = "null_pointer"
	KindInvalidParameter   Kind = "invalid_parameter"
	KindUninitialized      Kind = "uninitialized_plugin"
	KindInitializing       Kind = "called_during_init"
	KindInitFailed         Kind = "init_already_failed"
	KindAlreadyInitialized Kind = "already_initialized"
	KindDestroying         Kind = "destroying"
	KindPanic              Kind = "panic"
	KindPluginInternal     Kind = "plugin_internal"

	// Shared kinds.
	KindActivatedPlugin   Kind = "activated_plugin"
	KindDeactivatedPlugin Kind = "deactivated_plugin"
	KindLoadFailed        Kind = "load_failed"
)

// Error is the structured error type used throughout clap-runtime
type Error struct {
	Phase  Phase
	Kind   Kind
	Detail string
	Cause  error

	// severity overrides the kind-derived severity when set.
	severity abi.LogSeverity
	hasSev   bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Severity returns the log severity of this error.
//
// Structural contract violations are misbehaving-host class, a panic inside
// plugin code is misbehaving-plugin class, and domain-reported failures log
// as plain errors unless an explicit severity was attached.
func (e *Error) Severity() abi.LogSeverity {
	if e.hasSev {
		return e.severity
	}
	switch e.Kind {
	case KindPanic:
		return abi.LogPluginMisbehaving
	case KindPluginInternal, KindActivationFailed, KindStartProcessingFailed,
		KindProcessingFailed, KindInstantiationFailed, KindLoadFailed:
		return abi.LogError
	default:
		return abi.LogHostMisbehaving
	}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

// Detail sets a human-readable message, with optional fmt args
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

// Cause attaches the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Severity overrides the kind-derived log severity
func (b *Builder) Severity(s abi.LogSeverity) *Builder {
	b.err.severity = s
	b.err.hasSev = true
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// MissingFactory reports a bundle that exposes no plugin factory.
func MissingFactory() *Error {
	return &Error{
		Phase:  PhaseFactory,
		Kind:   KindMissingFactory,
		Detail: "bundle exposes no plugin factory",
	}
}

// InstantiationFailed reports a factory that returned no instance.
func InstantiationFailed(pluginID string) *Error {
	return &Error{
		Phase:  PhaseFactory,
		Kind:   KindInstantiationFailed,
		Detail: fmt.Sprintf("factory returned no instance for plugin %q", pluginID),
	}
}

// ActivationFailed reports a foreign activate call that signaled failure.
func ActivationFailed() *Error {
	return &Error{
		Phase:  PhaseActivate,
		Kind:   KindActivationFailed,
		Detail: "plugin rejected activation",
	}
}

// ActivatedPlugin reports activation of an already-active plugin.
func ActivatedPlugin() *Error {
	return &Error{
		Phase:  PhaseActivate,
		Kind:   KindActivatedPlugin,
		Detail: "plugin is already activated",
	}
}

// DeactivatedPlugin reports use of processing state while inactive.
func DeactivatedPlugin() *Error {
	return &Error{
		Phase:  PhaseActivate,
		Kind:   KindDeactivatedPlugin,
		Detail: "plugin is not activated",
	}
}

// StartProcessingFailed reports a foreign start_processing call that
// signaled failure.
func StartProcessingFailed() *Error {
	return &Error{
		Phase:  PhaseProcess,
		Kind:   KindStartProcessingFailed,
		Detail: "plugin refused to start processing",
	}
}

// ProcessingStarted reports a strict start on an already-started processor.
func ProcessingStarted() *Error {
	return &Error{
		Phase:  PhaseProcess,
		Kind:   KindProcessingStarted,
		Detail: "processing was already started",
	}
}

// ProcessingStopped reports a processing-only call on a stopped processor.
func ProcessingStopped() *Error {
	return &Error{
		Phase:  PhaseProcess,
		Kind:   KindProcessingStopped,
		Detail: "processing is stopped",
	}
}

// NullProcessFunction reports an absent required process table entry.
func NullProcessFunction() *Error {
	return &Error{
		Phase:  PhaseProcess,
		Kind:   KindNullProcessFunction,
		Detail: "plugin has no process function",
	}
}

// ProcessingFailed reports an error or unrecognized process status code.
func ProcessingFailed(status int32) *Error {
	return &Error{
		Phase:  PhaseProcess,
		Kind:   KindProcessingFailed,
		Detail: fmt.Sprintf("process call failed (status %d)", status),
	}
}

// NullPluginInstance reports a dispatch call with a nil instance pointer.
func NullPluginInstance() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNullPluginInstance,
		Detail: "plugin method was called with a null instance pointer",
	}
}

// AlreadyDestroyed reports a dispatch call on a destroyed instance.
func AlreadyDestroyed() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindAlreadyDestroyed,
		Detail: "plugin instance was already destroyed (instance data is null)",
	}
}

// NullPointer reports an unexpectedly null pointer named by what.
func NullPointer(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullPointer,
		Detail: fmt.Sprintf("plugin method was called with null %s pointer", what),
	}
}

// InvalidParameter reports an invalid parameter value named by what.
func InvalidParameter(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidParameter,
		Detail: fmt.Sprintf("received invalid parameter %q", what),
	}
}

// Panic reports an abnormal termination caught at the dispatch boundary.
// The recovered value is stringified into the detail.
func Panic(recovered any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindPanic,
		Detail: fmt.Sprintf("plugin panicked: %v", recovered),
	}
}

// PluginInternal wraps a domain error reported by plugin code.
func PluginInternal(cause error) *Error {
	return &Error{
		Phase: PhaseDispatch,
		Kind:  KindPluginInternal,
		Cause: cause,
	}
}

// Uninitialized reports use of a plugin before its init call.
func Uninitialized() *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindUninitialized,
		Detail: "plugin was not initialized before use",
	}
}

// CalledDuringInit reports a plugin method call made while init is running.
func CalledDuringInit() *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindInitializing,
		Detail: "host called a plugin method during initialization",
	}
}

// InitAlreadyFailed reports use of a plugin whose init previously failed.
func InitAlreadyFailed() *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindInitFailed,
		Detail: "plugin initialization has already failed",
	}
}

// AlreadyInitialized reports a second init call.
func AlreadyInitialized() *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindAlreadyInitialized,
		Detail: "plugin is already initialized",
	}
}

// Destroying reports a plugin method call made while destroy is running.
func Destroying() *Error {
	return &Error{
		Phase:  PhaseTeardown,
		Kind:   KindDestroying,
		Detail: "plugin is being destroyed",
	}
}

// Load wraps a bundle loading failure.
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailed,
		Detail: detail,
		Cause:  cause,
	}
}
