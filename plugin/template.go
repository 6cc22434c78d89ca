package plugin

import "github.com/cadenza-audio/clap-runtime/abi"

// Template describes one plugin type: its descriptor plus the constructors
// and handlers for its three state facets. NewShared, NewMainThread,
// Activate, Deactivate and Process are required; the rest are optional.
//
// Thread contract for handlers: NewShared, NewMainThread, Activate,
// Deactivate and OnMainThread run on the control thread; StartProcessing,
// StopProcessing, Reset and Process run on the processing thread. The
// Shared facet must tolerate concurrent reads; the other facets are only
// ever touched from their own context.
type Template[S, M, P any] struct {
	Descriptor abi.PluginDescriptor

	// NewShared builds the Shared facet. The host descriptor stays valid
	// for the instance's whole life and may be retained.
	NewShared func(host *abi.Host) (S, error)

	// NewMainThread builds the MainThread facet, borrowing Shared.
	NewMainThread func(shared *S) (M, error)

	// Activate builds the AudioProcessor facet for one activation.
	Activate func(shared *S, main *M, cfg abi.AudioConfig) (P, error)

	// Deactivate tears the AudioProcessor facet down again.
	Deactivate func(proc P, main *M)

	// Process runs one process cycle.
	Process func(proc *P, shared *S, data *abi.ProcessData) (abi.ProcessStatus, error)

	StartProcessing func(proc *P) error
	StopProcessing  func(proc *P)
	Reset           func(proc *P)
	OnMainThread    func(main *M)
}

func (t *Template[S, M, P]) complete() bool {
	return t.NewShared != nil &&
		t.NewMainThread != nil &&
		t.Activate != nil &&
		t.Deactivate != nil &&
		t.Process != nil
}
