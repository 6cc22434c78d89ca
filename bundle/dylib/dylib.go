//go:build darwin || linux

// Package dylib loads native shared-library plugin bundles and adapts their
// C function tables to the in-process ABI. It uses libdl directly through
// purego, so no cgo is involved; the loaded code still runs in this process
// and a misbehaving binary can take the process down with it.
package dylib

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

const (
	entrySymbol   = "clap_entry"
	factoryTypeID = "clap.plugin-factory"
)

// Library is one loaded shared-library bundle. It implements bundle.Bundle.
type Library struct {
	path   string
	handle uintptr

	deinit     func()
	getFactory func(id string) uintptr

	factory *Factory
}

// Open loads the shared library at path, resolves its entry point and runs
// the bundle's init function. The caller owns the returned Library and must
// Close it after every instance created from it is gone.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, errors.Load("opening library "+path, err)
	}

	sym, err := purego.Dlsym(handle, entrySymbol)
	if err != nil {
		purego.Dlclose(handle)
		return nil, errors.Load("resolving "+entrySymbol+" in "+path, err)
	}

	entry := (*clapPluginEntry)(unsafe.Pointer(sym))
	if entry.Version.Major < 1 {
		purego.Dlclose(handle)
		return nil, errors.Load("unsupported entry version in "+path, nil)
	}

	lib := &Library{path: path, handle: handle}

	var entryInit func(path string) bool
	purego.RegisterFunc(&entryInit, entry.Init)
	purego.RegisterFunc(&lib.deinit, entry.Deinit)
	purego.RegisterFunc(&lib.getFactory, entry.GetFactory)

	if !entryInit(path) {
		purego.Dlclose(handle)
		return nil, errors.Load("entry init refused for "+path, nil)
	}

	if raw := lib.getFactory(factoryTypeID); raw != 0 {
		lib.factory = newFactory(raw)
	}
	return lib, nil
}

// Path returns the filesystem path the library was loaded from.
func (l *Library) Path() string { return l.path }

func (l *Library) Factory() abi.Factory {
	if l.factory == nil {
		return nil
	}
	return l.factory
}

// Close runs the bundle's deinit function and unloads the library.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	l.deinit()
	err := purego.Dlclose(l.handle)
	l.handle = 0
	if err != nil {
		return errors.Load("closing library "+l.path, err)
	}
	return nil
}

// Factory adapts the library's C plugin factory.
type Factory struct {
	raw uintptr

	pluginCount      func(factory uintptr) uint32
	pluginDescriptor func(factory uintptr, index uint32) uintptr
	createPlugin     func(factory, host uintptr, pluginID string) uintptr
}

func newFactory(raw uintptr) *Factory {
	c := (*clapPluginFactory)(unsafe.Pointer(raw))
	f := &Factory{raw: raw}
	purego.RegisterFunc(&f.pluginCount, c.GetPluginCount)
	purego.RegisterFunc(&f.pluginDescriptor, c.GetPluginDescriptor)
	purego.RegisterFunc(&f.createPlugin, c.CreatePlugin)
	return f
}

func (f *Factory) PluginCount() uint32 {
	return f.pluginCount(f.raw)
}

func (f *Factory) PluginDescriptor(index uint32) *abi.PluginDescriptor {
	raw := f.pluginDescriptor(f.raw, index)
	if raw == 0 {
		return nil
	}
	return decodeDescriptor(raw)
}

// CreatePlugin instantiates a plugin from the native factory. The host
// descriptor is mirrored into a pinned C block that stays valid until the
// instance's Destroy entry runs.
func (f *Factory) CreatePlugin(host *abi.Host, pluginID string) *abi.Plugin {
	if host == nil {
		return nil
	}
	block := pinHost(host)
	raw := f.createPlugin(f.raw, block.ptr(), pluginID)
	if raw == 0 {
		block.release()
		return nil
	}
	return bindPlugin(raw, block)
}

func decodeDescriptor(raw uintptr) *abi.PluginDescriptor {
	d := (*clapPluginDescriptor)(unsafe.Pointer(raw))
	return &abi.PluginDescriptor{
		ID:          goString(d.ID),
		Name:        goString(d.Name),
		Vendor:      goString(d.Vendor),
		URL:         goString(d.URL),
		Version:     goString(d.VersionStr),
		Description: goString(d.Description),
		Features:    goStringList(d.Features),
	}
}
