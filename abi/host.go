package abi

// LogSeverity classifies a log message passed through the host's log
// callback. The values mirror the wire-level log severity constants.
type LogSeverity int32

const (
	LogDebug   LogSeverity = 0
	LogInfo    LogSeverity = 1
	LogWarning LogSeverity = 2
	LogError   LogSeverity = 3
	LogFatal   LogSeverity = 4

	// LogHostMisbehaving flags a structural contract violation by the host
	// (null pointer, wrong-state call, missing required function).
	LogHostMisbehaving LogSeverity = 5
	// LogPluginMisbehaving flags a contract violation by the plugin,
	// including a panic escaping plugin code.
	LogPluginMisbehaving LogSeverity = 6
)

func (s LogSeverity) String() string {
	switch s {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	case LogFatal:
		return "fatal"
	case LogHostMisbehaving:
		return "host-misbehaving"
	case LogPluginMisbehaving:
		return "plugin-misbehaving"
	}
	return "unknown"
}

// Host is the descriptor a host pins in memory and hands to the plugin
// factory at instantiation. The plugin side may retain the pointer and call
// back through it at any point during the instance's life, so the block must
// never move or be freed while the instance exists.
//
// All callbacks are optional; a nil field means the capability is absent.
type Host struct {
	Name    string
	Vendor  string
	URL     string
	Version string

	// Data is an opaque word owned by the host side.
	Data uintptr

	// GetExtension resolves a host-side capability by identifier.
	// Returns nil when the capability is not supported.
	GetExtension func(h *Host, id string) any

	// Log writes one message through the host's logging facility.
	Log func(h *Host, severity LogSeverity, msg string)

	// RequestRestart asks the host to deactivate and reactivate the plugin.
	RequestRestart func(h *Host)

	// RequestProcess asks the host to wake the processing context and start
	// processing if it is not already.
	RequestProcess func(h *Host)

	// RequestCallback schedules a call to the plugin's OnMainThread entry
	// from the control thread.
	RequestCallback func(h *Host)
}
