package host

import (
	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

// StoppedProcessor is the processing capability of an activated instance
// whose start_processing sub-protocol is currently off. All methods are
// processing-thread only except Matches.
type StoppedProcessor[S, M, P any] struct {
	inner *instanceInner[S, M, P]
}

// StartProcessing invokes the foreign start_processing entry. On success
// the Started capability is returned; on failure the receiver remains the
// valid Stopped capability, so no instance is ever lost to a failed start.
func (s *StoppedProcessor[S, M, P]) StartProcessing() (*StartedProcessor[S, M, P], error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	if err := s.inner.startProcessing(); err != nil {
		return nil, err
	}
	return &StartedProcessor[S, M, P]{inner: s.inner}, nil
}

// Reset forwards the foreign reset entry.
func (s *StoppedProcessor[S, M, P]) Reset() {
	if s.alive() == nil {
		s.inner.reset()
	}
}

// Shared returns the Shared facet. Safe from any thread.
func (s *StoppedProcessor[S, M, P]) Shared() *S {
	return &s.inner.shared
}

// Handler returns the AudioProcessor facet, or nil if the instance has been
// deactivated under this handle.
func (s *StoppedProcessor[S, M, P]) Handler() *P {
	return s.inner.proc.Load()
}

// Matches reports whether this processor was derived from instance.
func (s *StoppedProcessor[S, M, P]) Matches(instance *Instance[S, M, P]) bool {
	return instance != nil && s.inner == instance.inner
}

func (s *StoppedProcessor[S, M, P]) alive() error {
	if s.inner.destroyed.Load() || s.inner.proc.Load() == nil {
		return errors.DeactivatedPlugin()
	}
	return nil
}

// StartedProcessor is the processing capability while the instance is
// started; processing calls are legal only here. All methods are
// processing-thread only except Matches.
type StartedProcessor[S, M, P any] struct {
	inner *instanceInner[S, M, P]
}

// Process runs one process cycle.
//
// The effective frame count is the minimum of the input and output frame
// counts when both are known, the known one when only one is, and zero when
// neither is. steadyTime encodes "absent" as a distinguished negative
// sentinel that no supplied value can collide with. transport may be nil
// for a free-running host.
//
// The payload is built fresh for this call and must not be retained by the
// plugin. The returned status is the plugin's continuation request; an
// error status or an unrecognized code is reported as ProcessingFailed.
func (s *StartedProcessor[S, M, P]) Process(
	audioIn, audioOut *AudioPorts,
	eventsIn abi.InputEvents,
	eventsOut abi.OutputEvents,
	steadyTime abi.SteadyTime,
	transport *abi.Transport,
) (abi.ProcessStatus, error) {
	inner := s.inner
	if inner.destroyed.Load() || inner.proc.Load() == nil {
		return abi.ProcessError, errors.DeactivatedPlugin()
	}

	plugin := inner.plugin
	if plugin.Process == nil {
		return abi.ProcessError, errors.NullProcessFunction()
	}

	data := abi.ProcessData{
		SteadyTime:   steadyTime.Encode(),
		FramesCount:  resolveFramesCount(audioIn, audioOut),
		Transport:    transport,
		AudioInputs:  audioIn.Raw(),
		AudioOutputs: audioOut.Raw(),
		InEvents:     eventsIn,
		OutEvents:    eventsOut,
	}

	status := plugin.Process(plugin, &data)
	if !status.Known() || status == abi.ProcessError {
		return status, errors.ProcessingFailed(int32(status))
	}
	return status, nil
}

// StopProcessing invokes the foreign stop_processing entry and returns the
// Stopped capability. This direction cannot fail at the ABI level.
func (s *StartedProcessor[S, M, P]) StopProcessing() *StoppedProcessor[S, M, P] {
	if s.alive() == nil {
		s.inner.stopProcessing()
	}
	return &StoppedProcessor[S, M, P]{inner: s.inner}
}

// Reset forwards the foreign reset entry.
func (s *StartedProcessor[S, M, P]) Reset() {
	if s.alive() == nil {
		s.inner.reset()
	}
}

// Shared returns the Shared facet. Safe from any thread.
func (s *StartedProcessor[S, M, P]) Shared() *S {
	return &s.inner.shared
}

// Handler returns the AudioProcessor facet, or nil if the instance has been
// deactivated under this handle.
func (s *StartedProcessor[S, M, P]) Handler() *P {
	return s.inner.proc.Load()
}

// Matches reports whether this processor was derived from instance.
func (s *StartedProcessor[S, M, P]) Matches(instance *Instance[S, M, P]) bool {
	return instance != nil && s.inner == instance.inner
}

func (s *StartedProcessor[S, M, P]) alive() error {
	if s.inner.destroyed.Load() || s.inner.proc.Load() == nil {
		return errors.DeactivatedPlugin()
	}
	return nil
}

// AudioProcessor is a tagged value over the Started and Stopped processing
// capabilities. The third, poisoned state exists only transiently while a
// transition runs a foreign call: the transition takes ownership of the
// current value, leaves poison in its place, and writes the new state back.
// If foreign-adjacent code panics mid-transition, poison is what remains,
// and every later observation fails loudly instead of touching a
// half-transitioned instance.
//
// Only the holder of the AudioProcessor value may transition it.
type AudioProcessor[S, M, P any] struct {
	started *StartedProcessor[S, M, P]
	stopped *StoppedProcessor[S, M, P]
}

// FromStopped wraps a Stopped capability in the tagged form.
func FromStopped[S, M, P any](s *StoppedProcessor[S, M, P]) AudioProcessor[S, M, P] {
	return AudioProcessor[S, M, P]{stopped: s}
}

// FromStarted wraps a Started capability in the tagged form.
func FromStarted[S, M, P any](s *StartedProcessor[S, M, P]) AudioProcessor[S, M, P] {
	return AudioProcessor[S, M, P]{started: s}
}

func (p *AudioProcessor[S, M, P]) poisoned() {
	panic("clap-runtime/host: audio processor is poisoned; a previous transition panicked")
}

// IsStarted reports whether processing is currently started.
func (p *AudioProcessor[S, M, P]) IsStarted() bool {
	return p.started != nil
}

// AsStarted returns the Started capability, or ProcessingStopped.
func (p *AudioProcessor[S, M, P]) AsStarted() (*StartedProcessor[S, M, P], error) {
	switch {
	case p.started != nil:
		return p.started, nil
	case p.stopped != nil:
		return nil, errors.ProcessingStopped()
	default:
		p.poisoned()
		return nil, nil
	}
}

// AsStopped returns the Stopped capability, or ProcessingStarted.
func (p *AudioProcessor[S, M, P]) AsStopped() (*StoppedProcessor[S, M, P], error) {
	switch {
	case p.stopped != nil:
		return p.stopped, nil
	case p.started != nil:
		return nil, errors.ProcessingStarted()
	default:
		p.poisoned()
		return nil, nil
	}
}

// StartProcessing transitions Stopped to Started. Calling it on an
// already-Started value reports ProcessingStarted without invoking the
// foreign start function again; a failed foreign start restores Stopped.
func (p *AudioProcessor[S, M, P]) StartProcessing() error {
	switch {
	case p.started != nil:
		return errors.ProcessingStarted()
	case p.stopped != nil:
		stopped := p.stopped
		p.stopped = nil // poisoned while the foreign call runs
		started, err := stopped.StartProcessing()
		if err != nil {
			p.stopped = stopped
			return err
		}
		p.started = started
		return nil
	default:
		p.poisoned()
		return nil
	}
}

// EnsureStarted is the idempotent form of StartProcessing: a no-op success
// when already Started.
func (p *AudioProcessor[S, M, P]) EnsureStarted() error {
	if p.started != nil {
		return nil
	}
	return p.StartProcessing()
}

// StopProcessing transitions Started to Stopped. Calling it on an
// already-Stopped value reports ProcessingStopped.
func (p *AudioProcessor[S, M, P]) StopProcessing() error {
	switch {
	case p.stopped != nil:
		return errors.ProcessingStopped()
	case p.started != nil:
		started := p.started
		p.started = nil // poisoned while the foreign call runs
		p.stopped = started.StopProcessing()
		return nil
	default:
		p.poisoned()
		return nil
	}
}

// EnsureStopped is the idempotent form of StopProcessing: a no-op when
// already Stopped.
func (p *AudioProcessor[S, M, P]) EnsureStopped() {
	if p.stopped != nil {
		return
	}
	_ = p.StopProcessing()
}

// Process runs one cycle; legal only while Started. A Stopped processor
// reports ProcessingStopped without ever reaching the foreign process
// function.
func (p *AudioProcessor[S, M, P]) Process(
	audioIn, audioOut *AudioPorts,
	eventsIn abi.InputEvents,
	eventsOut abi.OutputEvents,
	steadyTime abi.SteadyTime,
	transport *abi.Transport,
) (abi.ProcessStatus, error) {
	started, err := p.AsStarted()
	if err != nil {
		return abi.ProcessError, err
	}
	return started.Process(audioIn, audioOut, eventsIn, eventsOut, steadyTime, transport)
}

// Reset forwards the foreign reset entry; legal in either state.
func (p *AudioProcessor[S, M, P]) Reset() {
	switch {
	case p.started != nil:
		p.started.Reset()
	case p.stopped != nil:
		p.stopped.Reset()
	default:
		p.poisoned()
	}
}

// Matches reports whether the held capability was derived from instance.
func (p *AudioProcessor[S, M, P]) Matches(instance *Instance[S, M, P]) bool {
	switch {
	case p.started != nil:
		return p.started.Matches(instance)
	case p.stopped != nil:
		return p.stopped.Matches(instance)
	default:
		p.poisoned()
		return false
	}
}

// IntoStarted consumes the tagged value and returns the Started capability.
// On a failed start the error is returned and the value remains Stopped, so
// the capability is never lost.
func (p *AudioProcessor[S, M, P]) IntoStarted() (*StartedProcessor[S, M, P], error) {
	if err := p.EnsureStarted(); err != nil {
		return nil, err
	}
	started := p.started
	p.started = nil
	return started, nil
}

// IntoStopped consumes the tagged value and returns the Stopped capability,
// stopping first if needed.
func (p *AudioProcessor[S, M, P]) IntoStopped() *StoppedProcessor[S, M, P] {
	p.EnsureStopped()
	stopped := p.stopped
	p.stopped = nil
	return stopped
}
