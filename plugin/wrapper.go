package plugin

import (
	"sync/atomic"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

// lifecycle is the init-protocol phase of one hosted instance.
type lifecycle int32

const (
	lifeUninitialized lifecycle = iota
	lifeInitializing
	lifeInitialized
	lifeInitFailed
	lifeDestroying
)

// Wrapper holds one hosted plugin instance's three facets and mediates
// every foreign call into them. Instances are only reachable through the
// dispatch entry points in this package; plugin code never sees a raw
// instance pointer.
type Wrapper[S, M, P any] struct {
	template *Template[S, M, P]
	host     *abi.Host

	state atomic.Int32

	// shared and main are valid once the init call succeeded.
	shared S
	main   M

	// proc is the AudioProcessor facet; non-nil exactly while activated.
	proc atomic.Pointer[P]
}

func (w *Wrapper[S, M, P]) phase() lifecycle {
	return lifecycle(w.state.Load())
}

// init runs the instance's one-time initialization: constructing the
// Shared facet, then the MainThread facet borrowing it. Control thread
// only; called exactly once by a well-behaved host.
func (w *Wrapper[S, M, P]) init() error {
	switch w.phase() {
	case lifeInitializing:
		return errors.CalledDuringInit()
	case lifeInitialized:
		return errors.AlreadyInitialized()
	case lifeInitFailed:
		return errors.InitAlreadyFailed()
	case lifeDestroying:
		return errors.Destroying()
	}

	w.state.Store(int32(lifeInitializing))

	shared, err := w.template.NewShared(w.host)
	if err != nil {
		w.state.Store(int32(lifeInitFailed))
		return errors.PluginInternal(err)
	}
	w.shared = shared

	main, err := w.template.NewMainThread(&w.shared)
	if err != nil {
		w.state.Store(int32(lifeInitFailed))
		return errors.PluginInternal(err)
	}
	w.main = main

	w.state.Store(int32(lifeInitialized))
	return nil
}

// ready guards every post-init call against the init protocol.
func (w *Wrapper[S, M, P]) ready() error {
	switch w.phase() {
	case lifeUninitialized:
		return errors.Uninitialized()
	case lifeInitializing:
		return errors.CalledDuringInit()
	case lifeInitFailed:
		return errors.InitAlreadyFailed()
	case lifeDestroying:
		return errors.Destroying()
	}
	return nil
}

// IsActive reports whether the instance is currently activated.
func (w *Wrapper[S, M, P]) IsActive() bool {
	return w.proc.Load() != nil
}

// activate builds and stores the AudioProcessor facet. Control thread
// only, never concurrently with deactivate.
func (w *Wrapper[S, M, P]) activate(cfg abi.AudioConfig) error {
	if w.IsActive() {
		return errors.ActivatedPlugin()
	}

	proc, err := w.template.Activate(&w.shared, &w.main, cfg)
	if err != nil {
		return errors.PluginInternal(err)
	}

	w.proc.Store(&proc)
	return nil
}

// deactivate takes the AudioProcessor facet out and tears it down.
// Control thread only.
func (w *Wrapper[S, M, P]) deactivate() error {
	proc := w.proc.Swap(nil)
	if proc == nil {
		return errors.DeactivatedPlugin()
	}

	w.template.Deactivate(*proc, &w.main)
	return nil
}

// Shared returns the Shared facet. Safe from any dispatch context.
func (w *Wrapper[S, M, P]) Shared() *S {
	return &w.shared
}

// MainThread returns the MainThread facet. Reachable only from
// control-thread dispatch.
func (w *Wrapper[S, M, P]) MainThread() *M {
	return &w.main
}

// AudioProcessor returns the AudioProcessor facet, or DeactivatedPlugin
// when the instance is not activated. Reachable only from
// processing-thread dispatch. The extra activation check catches hosts
// that call processing-thread functions on a deactivated instance.
func (w *Wrapper[S, M, P]) AudioProcessor() (*P, error) {
	proc := w.proc.Load()
	if proc == nil {
		return nil, errors.DeactivatedPlugin()
	}
	return proc, nil
}
