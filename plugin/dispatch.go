package plugin

import (
	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
	"github.com/cadenza-audio/clap-runtime/internal/handles"
)

// instances maps the opaque data word embedded in each raw instance to its
// live Wrapper. The data word is the only link the foreign side holds, so
// a destroyed or corrupted instance resolves to nothing here instead of to
// freed memory.
var instances = handles.NewTable()

// InstanceCount returns the number of live hosted instances.
func InstanceCount() int {
	return instances.Len()
}

// dispatch is the single entry point every foreign call passes through.
//
// It null-checks the raw instance pointer, checks the embedded data word
// still resolves to a live instance of the right type, runs fn with panics
// and domain errors contained, and on any failure logs through the host
// (or the fallback stream) and reports absence. Callers at the boundary
// must treat ok == false as "do nothing further"; no failure may cross the
// boundary as a panic.
func dispatch[S, M, P, T any](raw *abi.Plugin, fn func(w *Wrapper[S, M, P]) (T, error)) (result T, ok bool) {
	w, err := fromRaw[S, M, P](raw)
	if err == nil {
		result, err = guard(w, fn)
	}
	if err != nil {
		var host *abi.Host
		if w != nil {
			host = w.host
		}
		reportFailure(host, err)
		var zero T
		return zero, false
	}
	return result, true
}

// fromRaw resolves a raw instance pointer to its Wrapper.
func fromRaw[S, M, P any](raw *abi.Plugin) (*Wrapper[S, M, P], *errors.Error) {
	if raw == nil {
		return nil, errors.NullPluginInstance()
	}
	if raw.Data == 0 {
		return nil, errors.AlreadyDestroyed()
	}

	value, found := instances.Get(raw.Data)
	if !found {
		return nil, errors.AlreadyDestroyed()
	}

	w, isWrapper := value.(*Wrapper[S, M, P])
	if !isWrapper {
		return nil, errors.InvalidParameter(errors.PhaseDispatch, "instance data")
	}
	return w, nil
}

// guard runs fn with panic isolation and converts its failure to the
// structured form.
func guard[S, M, P, T any](w *Wrapper[S, M, P], fn func(w *Wrapper[S, M, P]) (T, error)) (result T, err *errors.Error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(r)
		}
	}()

	result, plainErr := fn(w)
	if plainErr != nil {
		if structured, isStructured := plainErr.(*errors.Error); isStructured {
			return result, structured
		}
		return result, errors.PluginInternal(plainErr)
	}
	return result, nil
}

// instantiate binds a fresh Wrapper for t into a raw instance table.
func (t *Template[S, M, P]) instantiate(host *abi.Host) *abi.Plugin {
	w := &Wrapper[S, M, P]{template: t, host: host}

	descriptor := t.Descriptor
	raw := &abi.Plugin{
		Descriptor: &descriptor,
		Data:       instances.Insert(w),
	}

	raw.Init = func(p *abi.Plugin) bool {
		_, ok := dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			return struct{}{}, w.init()
		})
		return ok
	}

	raw.Destroy = func(p *abi.Plugin) {
		destroy[S, M, P](p)
	}

	raw.Activate = func(p *abi.Plugin, sampleRate float64, minFrames, maxFrames uint32) bool {
		_, ok := dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			if err := w.ready(); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, w.activate(abi.AudioConfig{
				SampleRate: sampleRate,
				MinFrames:  minFrames,
				MaxFrames:  maxFrames,
			})
		})
		return ok
	}

	raw.Deactivate = func(p *abi.Plugin) {
		dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			if err := w.ready(); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, w.deactivate()
		})
	}

	raw.StartProcessing = func(p *abi.Plugin) bool {
		_, ok := dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			if err := w.ready(); err != nil {
				return struct{}{}, err
			}
			proc, err := w.AudioProcessor()
			if err != nil {
				return struct{}{}, err
			}
			if t.StartProcessing != nil {
				return struct{}{}, t.StartProcessing(proc)
			}
			return struct{}{}, nil
		})
		return ok
	}

	raw.StopProcessing = func(p *abi.Plugin) {
		dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			if err := w.ready(); err != nil {
				return struct{}{}, err
			}
			proc, err := w.AudioProcessor()
			if err != nil {
				return struct{}{}, err
			}
			if t.StopProcessing != nil {
				t.StopProcessing(proc)
			}
			return struct{}{}, nil
		})
	}

	raw.Reset = func(p *abi.Plugin) {
		dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			if err := w.ready(); err != nil {
				return struct{}{}, err
			}
			proc, err := w.AudioProcessor()
			if err != nil {
				return struct{}{}, err
			}
			if t.Reset != nil {
				t.Reset(proc)
			}
			return struct{}{}, nil
		})
	}

	raw.Process = func(p *abi.Plugin, data *abi.ProcessData) abi.ProcessStatus {
		status, ok := dispatch(p, func(w *Wrapper[S, M, P]) (abi.ProcessStatus, error) {
			if err := w.ready(); err != nil {
				return abi.ProcessError, err
			}
			if data == nil {
				return abi.ProcessError, errors.NullPointer(errors.PhaseDispatch, "process data")
			}
			proc, err := w.AudioProcessor()
			if err != nil {
				return abi.ProcessError, err
			}
			return t.Process(proc, &w.shared, data)
		})
		if !ok {
			return abi.ProcessError
		}
		return status
	}

	raw.OnMainThread = func(p *abi.Plugin) {
		dispatch(p, func(w *Wrapper[S, M, P]) (struct{}, error) {
			if err := w.ready(); err != nil {
				return struct{}{}, err
			}
			if t.OnMainThread != nil {
				t.OnMainThread(&w.main)
			}
			return struct{}{}, nil
		})
	}

	return raw
}

// destroy runs the teardown path: deactivate if the host neglected to,
// mark the wrapper destroying, and unlink the data word so any later call
// resolves to AlreadyDestroyed instead of freed state.
func destroy[S, M, P any](raw *abi.Plugin) {
	_, ok := dispatch(raw, func(w *Wrapper[S, M, P]) (struct{}, error) {
		if w.phase() == lifeDestroying {
			return struct{}{}, errors.Destroying()
		}
		w.state.Store(int32(lifeDestroying))
		if w.IsActive() {
			_ = w.deactivate()
		}
		return struct{}{}, nil
	})
	if !ok {
		return
	}

	instances.Remove(raw.Data)
	raw.Data = 0
}
