// Package host drives foreign plugin instances from the hosting side.
//
// An Instance owns one created plugin: its function table, the pinned
// descriptor handed to the plugin at creation, and the bundle that keeps the
// plugin's binary resident. Per-instance host state is split into three
// facets by execution context:
//
//   - Shared: reachable from any context; must tolerate concurrent reads.
//   - MainThread: reachable only from the single logical control thread.
//   - AudioProcessor: reachable only from the single logical processing
//     thread, and only while the instance is activated.
//
// Activation hands back a StoppedProcessor, the capability representing
// "this instance is activated". The processing start/stop sub-protocol is
// driven either through the typed StoppedProcessor/StartedProcessor pair or
// through the AudioProcessor tagged value, which poisons itself if a
// transition panics mid-flight.
//
// Which functions may run on which thread is a documented contract, not a
// runtime check: nothing here takes a lock on the processing path.
package host
