package host

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/bundle"
	"github.com/cadenza-audio/clap-runtime/errors"
)

// instanceInner is the refcounted core shared by an Instance and the
// processor handles derived from it. The foreign destroy function runs when
// the last owner releases its reference, never before and never twice.
type instanceInner[S, M, P any] struct {
	shared S
	main   M

	// proc is the AudioProcessor facet; non-nil exactly while activated.
	proc atomic.Pointer[P]

	// descriptor is heap-pinned: referenced only by pointer, handed to the
	// foreign binary at creation, valid at a stable address until destroy.
	descriptor *abi.Host

	plugin *abi.Plugin

	// bundle keeps the plugin's binary resident while the instance lives.
	bundle bundle.Bundle

	refs      atomic.Int32
	destroyed atomic.Bool
}

// Instance wraps one created foreign plugin instance.
//
// All methods must be called from the control thread. Destroy must be
// called exactly once per Instance and never concurrently with any other
// access; if the instance is still active it auto-deactivates first.
type Instance[S, M, P any] struct {
	inner *instanceInner[S, M, P]
}

// NewInstance creates a plugin instance from b's factory.
//
// sharedInit builds the Shared facet and mainInit the MainThread facet;
// mainInit receives the already-constructed Shared facet so it may borrow
// it. The pinned host descriptor is built before the factory call; once the
// foreign instance pointer is known, a Shared facet implementing
// InstanceObserver is informed.
func NewInstance[S, M, P any](
	b bundle.Bundle,
	pluginID string,
	info HostInfo,
	sharedInit func() S,
	mainInit func(shared *S) M,
) (*Instance[S, M, P], error) {
	factory := b.Factory()
	if factory == nil {
		return nil, errors.MissingFactory()
	}

	inner := &instanceInner[S, M, P]{bundle: b}
	inner.shared = sharedInit()
	inner.main = mainInit(&inner.shared)
	inner.descriptor = inner.newDescriptor(info)

	plugin := factory.CreatePlugin(inner.descriptor, pluginID)
	if plugin == nil {
		return nil, errors.InstantiationFailed(pluginID)
	}

	if plugin.Init != nil && !plugin.Init(plugin) {
		if plugin.Destroy != nil {
			plugin.Destroy(plugin)
		}
		return nil, errors.New(errors.PhaseFactory, errors.KindInstantiationFailed).
			Detail("plugin %q failed to initialize", pluginID).
			Build()
	}

	inner.plugin = plugin
	inner.refs.Store(1)

	if obs, ok := any(&inner.shared).(InstanceObserver); ok {
		obs.Instantiated(SharedPluginHandle{plugin: plugin})
	}

	Logger().Debug("plugin instantiated",
		zap.String("plugin", pluginID))

	return &Instance[S, M, P]{inner: inner}, nil
}

// newDescriptor builds the pinned host descriptor. Callbacks forward to the
// Shared facet when it implements the matching interface; logging falls
// back to the package logger otherwise.
func (inn *instanceInner[S, M, P]) newDescriptor(info HostInfo) *abi.Host {
	h := &abi.Host{
		Name:    info.Name,
		Vendor:  info.Vendor,
		URL:     info.URL,
		Version: info.Version,
	}

	h.Log = func(_ *abi.Host, severity abi.LogSeverity, msg string) {
		if l, ok := any(&inn.shared).(LogHandler); ok {
			l.Log(severity, msg)
			return
		}
		logFallback(severity, msg)
	}
	h.RequestRestart = func(*abi.Host) {
		if r, ok := any(&inn.shared).(RestartHandler); ok {
			r.RequestRestart()
		}
	}
	h.RequestProcess = func(*abi.Host) {
		if r, ok := any(&inn.shared).(ProcessRequestHandler); ok {
			r.RequestProcess()
		}
	}
	h.RequestCallback = func(*abi.Host) {
		if r, ok := any(&inn.shared).(CallbackRequester); ok {
			r.RequestCallback()
		}
	}
	h.GetExtension = func(_ *abi.Host, id string) any {
		if p, ok := any(&inn.shared).(ExtensionProvider); ok {
			return p.HostExtension(id)
		}
		return nil
	}

	return h
}

// Shared returns the Shared facet. Safe from any thread.
func (i *Instance[S, M, P]) Shared() *S {
	return &i.inner.shared
}

// MainThread returns the MainThread facet. Control thread only.
func (i *Instance[S, M, P]) MainThread() *M {
	return &i.inner.main
}

// IsActive reports whether the instance is currently activated.
func (i *Instance[S, M, P]) IsActive() bool {
	return i.inner != nil && i.inner.proc.Load() != nil
}

// Descriptor returns the plugin's descriptor, or nil after Destroy.
func (i *Instance[S, M, P]) Descriptor() *abi.PluginDescriptor {
	if i.inner == nil {
		return nil
	}
	return i.inner.plugin.Descriptor
}

// Activate supplies the fixed audio configuration and allocates the
// AudioProcessor facet, returning the Stopped processing capability.
//
// processorInit runs before the foreign activate call, so the facet already
// exists if the foreign binary makes reentrant calls during activation. If
// the foreign call then reports failure, the freshly-built facet is
// discarded and ActivationFailed is returned.
func (i *Instance[S, M, P]) Activate(
	cfg AudioConfig,
	processorInit func(h ProcessorHandle, shared *S, main *M) (P, error),
) (*StoppedProcessor[S, M, P], error) {
	inner := i.inner
	if inner == nil || inner.destroyed.Load() {
		return nil, errors.AlreadyDestroyed()
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if inner.plugin.Activate == nil {
		return nil, errors.New(errors.PhaseActivate, errors.KindNullActivateFunction).
			Detail("plugin has no activate function").
			Build()
	}
	if inner.proc.Load() != nil {
		return nil, errors.ActivatedPlugin()
	}

	proc, err := processorInit(ProcessorHandle{plugin: inner.plugin}, &inner.shared, &inner.main)
	if err != nil {
		return nil, err
	}
	inner.proc.Store(&proc)

	if !inner.plugin.Activate(inner.plugin, cfg.SampleRate, cfg.MinFrames, cfg.MaxFrames) {
		inner.proc.Store(nil)
		return nil, errors.ActivationFailed()
	}

	inner.refs.Add(1)

	Logger().Debug("plugin activated",
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Uint32("min_frames", cfg.MinFrames),
		zap.Uint32("max_frames", cfg.MaxFrames))

	return &StoppedProcessor[S, M, P]{inner: inner}, nil
}

// Deactivate invokes the foreign deactivate function, then tears down the
// AudioProcessor facet through teardown, which receives the facet and the
// MainThread facet. A nil teardown discards the facet.
//
// The foreign deactivate entry is optional and its outcome is treated as
// unconditional success.
//
// Any processor handle still derived from this instance becomes dead; its
// operations fail with DeactivatedPlugin. The caller must guarantee the
// processing thread is no longer inside a processing call.
func (i *Instance[S, M, P]) Deactivate(teardown func(proc P, main *M)) error {
	inner := i.inner
	if inner == nil || inner.proc.Load() == nil {
		return errors.DeactivatedPlugin()
	}

	if inner.plugin.Deactivate != nil {
		inner.plugin.Deactivate(inner.plugin)
	}

	proc := inner.proc.Swap(nil)
	if teardown != nil && proc != nil {
		teardown(*proc, &inner.main)
	}

	inner.release()

	Logger().Debug("plugin deactivated")
	return nil
}

// OnMainThread forwards the plugin's main-thread callback. The caller must
// be on the control thread. A no-op after Destroy.
func (i *Instance[S, M, P]) OnMainThread() {
	if i.inner == nil {
		return
	}
	plugin := i.inner.plugin
	if plugin.OnMainThread != nil {
		plugin.OnMainThread(plugin)
	}
}

// Destroy releases this wrapper's ownership of the instance,
// auto-deactivating first if still active. The foreign destroy function
// runs when the last owner (wrapper or processor handle) is gone, exactly
// once. Destroy is idempotent on the wrapper and must not run concurrently
// with any other access to the instance.
func (i *Instance[S, M, P]) Destroy() {
	inner := i.inner
	if inner == nil {
		return
	}
	i.inner = nil

	if inner.proc.Load() != nil {
		if inner.plugin.Deactivate != nil {
			inner.plugin.Deactivate(inner.plugin)
		}
		inner.proc.Store(nil)
		inner.release()
	}

	inner.release()
}

func (inn *instanceInner[S, M, P]) release() {
	if inn.refs.Add(-1) != 0 {
		return
	}
	if inn.destroyed.Swap(true) {
		return
	}
	if inn.plugin.Destroy != nil {
		inn.plugin.Destroy(inn.plugin)
	}
	Logger().Debug("plugin destroyed")
}

// startProcessing calls the optional foreign start_processing entry.
// Absence is automatic success. Processing thread only.
func (inn *instanceInner[S, M, P]) startProcessing() error {
	if f := inn.plugin.StartProcessing; f != nil {
		if !f(inn.plugin) {
			return errors.StartProcessingFailed()
		}
	}
	return nil
}

// stopProcessing calls the optional foreign stop_processing entry. This
// direction cannot fail at the ABI level. Processing thread only.
func (inn *instanceInner[S, M, P]) stopProcessing() {
	if f := inn.plugin.StopProcessing; f != nil {
		f(inn.plugin)
	}
}

func (inn *instanceInner[S, M, P]) reset() {
	if f := inn.plugin.Reset; f != nil {
		f(inn.plugin)
	}
}
