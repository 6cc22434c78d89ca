// Package plugin exposes Go plugin implementations safely to a foreign
// host.
//
// A plugin supplies a Template describing its three state facets and their
// constructors: Shared state reachable from any call context, MainThread
// state touched only by control-thread calls, and AudioProcessor state
// touched only by processing-thread calls while activated. The package
// turns a Template into the ABI function table a host consumes.
//
// Every foreign call lands in one dispatch entry point that null-checks the
// raw instance, verifies the instance has not been destroyed and is in the
// right phase of its init protocol, catches panics and domain errors, and
// reports every failure through the host's log callback when one exists,
// falling back to the process error stream. No call ever propagates a
// panic back across the boundary: on any failure the foreign side simply
// observes the call's failure value.
package plugin
