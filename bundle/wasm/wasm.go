// Package wasm loads WebAssembly plugin bundles with wazero and adapts a
// flat guest export surface to the in-process ABI. Unlike native loading the
// guest is fully sandboxed: it only sees linear memory, so process payloads
// are copied through a serialized block instead of shared pointers.
//
// Guest contract: one module exports clap_plugin_count, clap_plugin_descriptor
// (packed pointer/length of a JSON descriptor), clap_alloc and the per-handle
// lifecycle entries (clap_create .. clap_destroy). Host callbacks are imported
// from the "clap_host" module.
package wasm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
	"github.com/cadenza-audio/clap-runtime/internal/handles"
)

const hostModuleName = "clap_host"

const (
	expPluginCount      = "clap_plugin_count"
	expPluginDescriptor = "clap_plugin_descriptor"
	expAlloc            = "clap_alloc"
	expFree             = "clap_free"
	expCreate           = "clap_create"
	expDestroy          = "clap_destroy"
	expInit             = "clap_init"
	expActivate         = "clap_activate"
	expDeactivate       = "clap_deactivate"
	expStartProcessing  = "clap_start_processing"
	expStopProcessing   = "clap_stop_processing"
	expReset            = "clap_reset"
	expProcess          = "clap_process"
)

// Config holds loader configuration.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KB pages. 0 means the wazero
	// default.
	MemoryLimitPages uint32
}

// Library is one loaded wasm plugin bundle. It implements bundle.Bundle.
//
// All guest calls go through the single module instance, which is not
// reentrant; the caller's thread contract already serializes them per
// instance, and distinct plugin instances from the same Library must not
// process concurrently.
type Library struct {
	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module

	funcs map[string]api.Function
	hosts *handles.Table

	factory *Factory
}

// Open compiles and instantiates a wasm plugin bundle from its binary.
func Open(ctx context.Context, wasmBytes []byte, cfg *Config) (*Library, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	lib := &Library{
		ctx:     ctx,
		runtime: runtime,
		funcs:   make(map[string]api.Function),
		hosts:   handles.NewTable(),
	}

	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)
	if err := lib.instantiateHostModule(ctx); err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Load("compiling wasm bundle", err)
	}

	module, err := runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(""))
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Load("instantiating wasm bundle", err)
	}
	lib.module = module

	if module.Memory() == nil {
		runtime.Close(ctx)
		return nil, errors.Load("wasm bundle exports no memory", nil)
	}

	if lib.export(expPluginCount) != nil && lib.export(expCreate) != nil {
		lib.factory = &Factory{lib: lib}
	}
	return lib, nil
}

// OpenFile loads a wasm plugin bundle from disk.
func OpenFile(ctx context.Context, path string, cfg *Config) (*Library, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("reading wasm bundle "+path, err)
	}
	return Open(ctx, wasmBytes, cfg)
}

func (l *Library) Factory() abi.Factory {
	if l.factory == nil {
		return nil
	}
	return l.factory
}

// Close tears the runtime down, taking every guest instance with it.
func (l *Library) Close() error {
	return l.runtime.Close(l.ctx)
}

func (l *Library) export(name string) api.Function {
	if fn, ok := l.funcs[name]; ok {
		return fn
	}
	fn := l.module.ExportedFunction(name)
	if fn != nil {
		l.funcs[name] = fn
	}
	return fn
}

// call invokes a guest export, returning its first result.
func (l *Library) call(name string, args ...uint64) (uint64, error) {
	fn := l.export(name)
	if fn == nil {
		return 0, errors.Load("missing guest export "+name, nil)
	}
	results, err := fn.Call(l.ctx, args...)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// writeString copies s into guest memory via the guest allocator and returns
// its pointer and length.
func (l *Library) writeString(s string) (uint32, uint32, error) {
	if len(s) == 0 {
		return 0, 0, nil
	}
	ptr, err := l.call(expAlloc, uint64(len(s)))
	if err != nil {
		return 0, 0, err
	}
	if !l.module.Memory().Write(uint32(ptr), []byte(s)) {
		return 0, 0, errors.Load("guest memory write out of bounds", nil)
	}
	return uint32(ptr), uint32(len(s)), nil
}

func (l *Library) free(ptr, size uint32) {
	if ptr == 0 || l.export(expFree) == nil {
		return
	}
	if _, err := l.call(expFree, uint64(ptr), uint64(size)); err != nil {
		Logger().Warn("guest free failed", zap.Error(err))
	}
}

func (l *Library) instantiateHostModule(ctx context.Context) error {
	builder := l.runtime.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
			h := l.hostFor(uint32(stack[0]))
			if h == nil || h.Log == nil {
				return
			}
			msg, ok := m.Memory().Read(uint32(stack[2]), uint32(stack[3]))
			if !ok {
				return
			}
			h.Log(h, abi.LogSeverity(int32(uint32(stack[1]))), string(msg))
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("log")

	notify := func(pick func(*abi.Host) func(*abi.Host)) api.GoModuleFunc {
		return func(_ context.Context, _ api.Module, stack []uint64) {
			h := l.hostFor(uint32(stack[0]))
			if h == nil {
				return
			}
			if fn := pick(h); fn != nil {
				fn(h)
			}
		}
	}
	builder.NewFunctionBuilder().
		WithGoModuleFunction(notify(func(h *abi.Host) func(*abi.Host) { return h.RequestRestart }),
			[]api.ValueType{api.ValueTypeI32}, nil).
		Export("request_restart")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(notify(func(h *abi.Host) func(*abi.Host) { return h.RequestProcess }),
			[]api.ValueType{api.ValueTypeI32}, nil).
		Export("request_process")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(notify(func(h *abi.Host) func(*abi.Host) { return h.RequestCallback }),
			[]api.ValueType{api.ValueTypeI32}, nil).
		Export("request_callback")

	_, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.Load("instantiating host module", err)
	}
	return nil
}

func (l *Library) hostFor(handle uint32) *abi.Host {
	v, ok := l.hosts.Get(uintptr(handle))
	if !ok {
		return nil
	}
	h, _ := v.(*abi.Host)
	return h
}

// Factory adapts the guest's plugin factory exports.
type Factory struct {
	lib *Library
}

// descriptorJSON is the guest-side descriptor encoding.
type descriptorJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Vendor      string   `json:"vendor"`
	URL         string   `json:"url"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

func (f *Factory) PluginCount() uint32 {
	n, err := f.lib.call(expPluginCount)
	if err != nil {
		Logger().Warn("plugin count query failed", zap.Error(err))
		return 0
	}
	return uint32(n)
}

func (f *Factory) PluginDescriptor(index uint32) *abi.PluginDescriptor {
	packed, err := f.lib.call(expPluginDescriptor, uint64(index))
	if err != nil || packed == 0 {
		return nil
	}
	ptr := uint32(packed >> 32)
	length := uint32(packed)
	raw, ok := f.lib.module.Memory().Read(ptr, length)
	if !ok {
		Logger().Warn("descriptor read out of bounds",
			zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return nil
	}

	var d descriptorJSON
	if err := json.Unmarshal(raw, &d); err != nil {
		Logger().Warn("malformed descriptor", zap.Uint32("index", index), zap.Error(err))
		return nil
	}
	return &abi.PluginDescriptor{
		ID:          d.ID,
		Name:        d.Name,
		Vendor:      d.Vendor,
		URL:         d.URL,
		Version:     d.Version,
		Description: d.Description,
		Features:    d.Features,
	}
}

func (f *Factory) CreatePlugin(host *abi.Host, pluginID string) *abi.Plugin {
	if host == nil {
		return nil
	}
	lib := f.lib

	idPtr, idLen, err := lib.writeString(pluginID)
	if err != nil {
		Logger().Warn("plugin id transfer failed", zap.Error(err))
		return nil
	}
	defer lib.free(idPtr, idLen)

	hostHandle := lib.hosts.Insert(host)
	guest, err := lib.call(expCreate, uint64(hostHandle), uint64(idPtr), uint64(idLen))
	if err != nil || guest == 0 {
		lib.hosts.Remove(hostHandle)
		if err != nil {
			Logger().Warn("guest create failed", zap.String("plugin_id", pluginID), zap.Error(err))
		}
		return nil
	}

	var desc *abi.PluginDescriptor
	for i := uint32(0); i < f.PluginCount(); i++ {
		if d := f.PluginDescriptor(i); d != nil && d.ID == pluginID {
			desc = d
			break
		}
	}
	return bindGuest(lib, uint32(guest), hostHandle, desc)
}
