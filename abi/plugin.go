package abi

// PluginDescriptor identifies one plugin type exposed by a factory.
type PluginDescriptor struct {
	ID          string
	Name        string
	Vendor      string
	URL         string
	Version     string
	Description string
	Features    []string
}

// Plugin is the per-instance function table handed from a plugin to its host.
//
// It mirrors the C-layout instance struct of the underlying ABI: an opaque
// per-instance data word plus a table of function pointers, all of which
// receive the instance itself as their first argument. Data is meaningful
// only to the side that created the instance; hosts must never interpret it.
//
// Thread contract (not runtime-checked): Activate, Deactivate, OnMainThread
// and Destroy are control-thread functions; StartProcessing, StopProcessing,
// Process and Reset are processing-thread functions. The two groups must
// never run concurrently with each other for the same instance.
type Plugin struct {
	Descriptor *PluginDescriptor

	// Data is the opaque per-instance payload owned by the plugin side.
	// A zero value after destruction marks the instance as dead.
	Data uintptr

	// Control-thread entries.
	Init         func(p *Plugin) bool
	Destroy      func(p *Plugin)
	Activate     func(p *Plugin, sampleRate float64, minFrames, maxFrames uint32) bool
	Deactivate   func(p *Plugin)
	OnMainThread func(p *Plugin)

	// Processing-thread entries.
	StartProcessing func(p *Plugin) bool
	StopProcessing  func(p *Plugin)
	Reset           func(p *Plugin)
	Process         func(p *Plugin, data *ProcessData) ProcessStatus
}

// AudioConfig is the fixed audio configuration supplied at activation:
// a positive sample rate and an inclusive frames-per-cycle range with
// MinFrames <= MaxFrames. It cannot change while an activation lasts.
type AudioConfig struct {
	SampleRate float64
	MinFrames  uint32
	MaxFrames  uint32
}

// Factory creates plugin instances given a plugin identifier and a pointer
// to the host descriptor. The returned instance is not yet initialized; the
// host must call Init exactly once before any other table entry.
type Factory interface {
	PluginCount() uint32
	// PluginDescriptor returns the descriptor at index, or nil if out of range.
	PluginDescriptor(index uint32) *PluginDescriptor
	// CreatePlugin returns a new instance for pluginID, or nil if the ID is
	// unknown or instantiation failed. The host pointer must stay valid and
	// at a stable address for the whole life of the instance.
	CreatePlugin(host *Host, pluginID string) *Plugin
}
