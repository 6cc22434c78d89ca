package host

import (
	"math"

	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

// HostInfo identifies the host application to plugins.
type HostInfo struct {
	Name    string
	Vendor  string
	URL     string
	Version string
}

// AudioConfig is the fixed audio configuration of one activation. Changing
// it requires deactivating, reconfiguring and activating again.
type AudioConfig = abi.AudioConfig

func validateConfig(c AudioConfig) error {
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 1) {
		return errors.InvalidParameter(errors.PhaseActivate, "sample_rate")
	}
	if c.MinFrames > c.MaxFrames {
		return errors.InvalidParameter(errors.PhaseActivate, "frames_count_range")
	}
	return nil
}

// The Shared facet may implement any of the following interfaces to receive
// the corresponding host-descriptor callbacks. Each callback may arrive from
// any thread; implementations must be safe for concurrent use.

// InstanceObserver is notified once the foreign instance pointer is known.
// The descriptor must exist before the factory call, but the instance only
// exists after it; this closes that gap.
type InstanceObserver interface {
	Instantiated(plugin SharedPluginHandle)
}

// LogHandler receives plugin log messages.
type LogHandler interface {
	Log(severity abi.LogSeverity, msg string)
}

// RestartHandler receives deactivate-and-reactivate requests.
type RestartHandler interface {
	RequestRestart()
}

// ProcessRequestHandler receives wake-the-processing-context requests.
type ProcessRequestHandler interface {
	RequestProcess()
}

// CallbackRequester receives requests to schedule OnMainThread.
type CallbackRequester interface {
	RequestCallback()
}

// ExtensionProvider resolves host-side capability queries.
type ExtensionProvider interface {
	HostExtension(id string) any
}

// SharedPluginHandle is the view of a plugin instance whose entries are safe
// to call from any thread. The core lifecycle has none, so it only exposes
// identity.
type SharedPluginHandle struct {
	plugin *abi.Plugin
}

// Descriptor returns the plugin's descriptor.
func (h SharedPluginHandle) Descriptor() *abi.PluginDescriptor {
	if h.plugin == nil {
		return nil
	}
	return h.plugin.Descriptor
}

// ProcessorHandle is the processing-capability view of a plugin instance,
// handed to the AudioProcessor facet initializer during activation.
type ProcessorHandle struct {
	plugin *abi.Plugin
}

// Descriptor returns the plugin's descriptor.
func (h ProcessorHandle) Descriptor() *abi.PluginDescriptor {
	if h.plugin == nil {
		return nil
	}
	return h.plugin.Descriptor
}

func logFallback(severity abi.LogSeverity, msg string) {
	l := Logger()
	switch severity {
	case abi.LogDebug:
		l.Debug(msg)
	case abi.LogInfo:
		l.Info(msg)
	case abi.LogWarning:
		l.Warn(msg)
	default:
		l.Error(msg, zap.Stringer("severity", severity))
	}
}
