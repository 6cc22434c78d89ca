package wasm

import (
	"math"

	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/abi"
)

// guestPlugin is one live guest instance, addressed by the handle the guest
// returned from its create export.
type guestPlugin struct {
	lib        *Library
	handle     uint32
	hostHandle uintptr
}

// bindGuest wraps a guest instance handle as an abi.Plugin. Exports the
// guest does not provide stay nil, so the hosting layer treats them as
// optional entries.
func bindGuest(lib *Library, handle uint32, hostHandle uintptr, desc *abi.PluginDescriptor) *abi.Plugin {
	g := &guestPlugin{lib: lib, handle: handle, hostHandle: hostHandle}

	p := &abi.Plugin{
		Descriptor: desc,
		Data:       uintptr(handle),
	}

	if lib.export(expInit) != nil {
		p.Init = func(*abi.Plugin) bool { return g.callBool(expInit) }
	}
	p.Destroy = func(pl *abi.Plugin) {
		g.callVoid(expDestroy)
		lib.hosts.Remove(g.hostHandle)
		pl.Data = 0
	}
	if lib.export(expActivate) != nil {
		p.Activate = func(_ *abi.Plugin, sampleRate float64, minFrames, maxFrames uint32) bool {
			res, err := lib.call(expActivate, uint64(g.handle),
				math.Float64bits(sampleRate), uint64(minFrames), uint64(maxFrames))
			if err != nil {
				Logger().Warn("guest activate trapped", zap.Uint32("handle", g.handle), zap.Error(err))
				return false
			}
			return uint32(res) != 0
		}
	}
	if lib.export(expDeactivate) != nil {
		p.Deactivate = func(*abi.Plugin) { g.callVoid(expDeactivate) }
	}
	if lib.export(expStartProcessing) != nil {
		p.StartProcessing = func(*abi.Plugin) bool { return g.callBool(expStartProcessing) }
	}
	if lib.export(expStopProcessing) != nil {
		p.StopProcessing = func(*abi.Plugin) { g.callVoid(expStopProcessing) }
	}
	if lib.export(expReset) != nil {
		p.Reset = func(*abi.Plugin) { g.callVoid(expReset) }
	}
	if lib.export(expProcess) != nil {
		p.Process = func(_ *abi.Plugin, data *abi.ProcessData) abi.ProcessStatus {
			return g.process(data)
		}
	}
	return p
}

func (g *guestPlugin) callBool(name string) bool {
	res, err := g.lib.call(name, uint64(g.handle))
	if err != nil {
		Logger().Warn("guest call trapped",
			zap.String("export", name), zap.Uint32("handle", g.handle), zap.Error(err))
		return false
	}
	return uint32(res) != 0
}

func (g *guestPlugin) callVoid(name string) {
	if _, err := g.lib.call(name, uint64(g.handle)); err != nil {
		Logger().Warn("guest call trapped",
			zap.String("export", name), zap.Uint32("handle", g.handle), zap.Error(err))
	}
}

// process copies the payload into guest memory, runs the guest's process
// export and copies outputs back. A trap or transfer failure is reported as
// a failed cycle, never as a Go panic.
func (g *guestPlugin) process(data *abi.ProcessData) abi.ProcessStatus {
	lib := g.lib
	blk := encodeBlock(data)

	ptr, err := lib.call(expAlloc, uint64(len(blk.buf)))
	if err != nil || ptr == 0 {
		Logger().Warn("process block alloc failed", zap.Error(err))
		return abi.ProcessError
	}
	defer lib.free(uint32(ptr), uint32(len(blk.buf)))

	mem := lib.module.Memory()
	if !mem.Write(uint32(ptr), blk.buf) {
		Logger().Warn("process block write out of bounds", zap.Uint32("ptr", uint32(ptr)))
		return abi.ProcessError
	}

	res, err := lib.call(expProcess, uint64(g.handle), ptr, uint64(len(blk.buf)))
	if err != nil {
		Logger().Warn("guest process trapped", zap.Uint32("handle", g.handle), zap.Error(err))
		return abi.ProcessError
	}

	back, ok := mem.Read(uint32(ptr), uint32(len(blk.buf)))
	if !ok {
		return abi.ProcessError
	}
	blk.buf = back
	blk.decodeOutputs(data)

	return abi.ProcessStatus(int32(uint32(res)))
}
