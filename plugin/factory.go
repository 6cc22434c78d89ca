package plugin

import (
	"sync"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

// registeredType erases a Template's facet type parameters so one factory
// can expose plugin types with different facets.
type registeredType interface {
	pluginDescriptor() *abi.PluginDescriptor
	newInstance(host *abi.Host) *abi.Plugin
}

func (t *Template[S, M, P]) pluginDescriptor() *abi.PluginDescriptor {
	return &t.Descriptor
}

func (t *Template[S, M, P]) newInstance(host *abi.Host) *abi.Plugin {
	return t.instantiate(host)
}

// Factory exposes registered plugin types to a foreign host. It implements
// abi.Factory. The zero value is an empty factory.
type Factory struct {
	mu    sync.RWMutex
	types []registeredType
}

// Register adds t to the factory. It fails with InvalidParameter when the
// template is missing a required handler or reuses a registered ID.
func Register[S, M, P any](f *Factory, t *Template[S, M, P]) error {
	if !t.complete() {
		return errors.InvalidParameter(errors.PhaseFactory, "template")
	}
	if t.Descriptor.ID == "" {
		return errors.InvalidParameter(errors.PhaseFactory, "descriptor.id")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.types {
		if existing.pluginDescriptor().ID == t.Descriptor.ID {
			return errors.InvalidParameter(errors.PhaseFactory, "descriptor.id")
		}
	}
	f.types = append(f.types, t)
	return nil
}

func (f *Factory) PluginCount() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint32(len(f.types))
}

func (f *Factory) PluginDescriptor(index uint32) *abi.PluginDescriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if index >= uint32(len(f.types)) {
		return nil
	}
	return f.types[index].pluginDescriptor()
}

// CreatePlugin instantiates the registered type matching pluginID. A nil
// host descriptor or unknown ID is reported through the fallback log and
// yields no instance; the foreign caller sees a null result, never a
// panic.
func (f *Factory) CreatePlugin(host *abi.Host, pluginID string) *abi.Plugin {
	if host == nil {
		reportFailure(nil, errors.NullPointer(errors.PhaseFactory, "host descriptor"))
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, t := range f.types {
		if t.pluginDescriptor().ID == pluginID {
			return t.newInstance(host)
		}
	}
	return nil
}
