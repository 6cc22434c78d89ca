// Package clapruntime hosts audio plugins behind a safety layer that turns
// the plugin ABI's raw function tables and thread contracts into typed,
// state-checked Go APIs.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct
// responsibilities:
//
//	clap-runtime/        Root package (documentation only)
//	├── abi/             Wire-level contract: function tables, process payload, events
//	├── host/            Host side: instance lifecycle, audio processor state machine
//	├── plugin/          Plugin side: panic-isolated dispatch for Go-implemented plugins
//	├── bundle/          Loaded-binary abstraction and in-process bundles
//	│   ├── dylib/       Native shared-library loading via purego
//	│   └── wasm/        Sandboxed WebAssembly loading via wazero
//	├── errors/          Structured error types with phase, kind and severity
//	└── examples/gain/   Reference plugin exercising both sides in-process
//
// # Quick Start
//
// Host a plugin through the typed lifecycle:
//
//	lib, err := dylib.Open("reverb.so")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Close()
//
//	inst, err := host.NewInstance[Shared, Main, Proc](lib, "dev.example.reverb",
//	    host.HostInfo{Name: "myhost", Version: "1.0.0"}, newShared, newMain)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Destroy()
//
//	stopped, err := inst.Activate(host.AudioConfig{SampleRate: 48000, MinFrames: 1, MaxFrames: 256}, newProc)
//	started, err := stopped.StartProcessing()
//	status, err := started.Process(in, out, events, outEvents, abi.SteadyTimeAt(0), nil)
//
// # Thread Safety
//
// The facet types encode the ABI's thread contract: Instance methods belong
// on the control thread, StoppedProcessor and StartedProcessor on the
// processing thread, and the Shared facet may be touched from anywhere. The
// library checks state, not thread identity; keeping calls on the right
// threads remains the caller's job.
//
// # Failure Model
//
// Foreign code reporting failure surfaces as *errors.Error values. A Go
// plugin panicking inside its own entries is caught at the dispatch
// boundary, logged through the host and converted to the entry's failure
// result; it never unwinds into host frames. A processor caught mid
// transition by a panic is poisoned and pins any later use.
package clapruntime
