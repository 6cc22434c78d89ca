//go:build darwin || linux

package dylib

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/internal/handles"
)

// hostTable maps the data word planted in each pinned C host block back to
// its Go descriptor. The plugin may call back at any time while the instance
// lives, so entries survive until the instance's destroy entry runs.
var hostTable = handles.NewTable()

// hostBlock is the C mirror of one abi.Host, pinned for the life of the
// instance it was created for.
type hostBlock struct {
	host   *abi.Host
	block  *clapHost
	pinner runtime.Pinner
	handle uintptr

	// strings keeps the NUL-terminated descriptor fields reachable.
	strings [][]byte
}

func pinHost(host *abi.Host) *hostBlock {
	ensureHostCallbacks()

	b := &hostBlock{host: host}
	b.handle = hostTable.Insert(host)

	name := cString(host.Name)
	vendor := cString(host.Vendor)
	url := cString(host.URL)
	version := cString(host.Version)
	b.strings = [][]byte{name, vendor, url, version}

	b.block = &clapHost{
		Version:  hostVersion,
		HostData: b.handle,
		Name:     bytePtr(name),
		Vendor:   bytePtr(vendor),
		URL:      bytePtr(url),
		VerStr:   bytePtr(version),

		GetExtension:    cbHostGetExtension,
		RequestRestart:  cbHostRequestRestart,
		RequestProcess:  cbHostRequestProcess,
		RequestCallback: cbHostRequestCallback,
	}

	b.pinner.Pin(b.block)
	for _, s := range b.strings {
		b.pinner.Pin(&s[0])
	}
	return b
}

func (b *hostBlock) ptr() uintptr {
	return uintptr(unsafe.Pointer(b.block))
}

func (b *hostBlock) release() {
	hostTable.Remove(b.handle)
	b.pinner.Unpin()
}

var (
	hostCallbacksOnce sync.Once

	cbHostGetExtension    uintptr
	cbHostRequestRestart  uintptr
	cbHostRequestProcess  uintptr
	cbHostRequestCallback uintptr
)

// absorb keeps a host-callback panic from unwinding into foreign frames.
func absorb() {
	if r := recover(); r != nil {
		Logger().Error("host callback panicked", zap.Any("panic", r))
	}
}

// The trampolines run on whatever native thread the plugin calls from.
func ensureHostCallbacks() {
	hostCallbacksOnce.Do(func() {
		cbHostGetExtension = purego.NewCallback(func(raw uintptr, id uintptr) uintptr {
			defer absorb()
			// Host extensions are Go values with no C representation; a
			// native plugin cannot consume them.
			_ = hostFromRaw(raw)
			_ = goString(id)
			return 0
		})
		cbHostRequestRestart = purego.NewCallback(func(raw uintptr) uintptr {
			defer absorb()
			if h := hostFromRaw(raw); h != nil && h.RequestRestart != nil {
				h.RequestRestart(h)
			}
			return 0
		})
		cbHostRequestProcess = purego.NewCallback(func(raw uintptr) uintptr {
			defer absorb()
			if h := hostFromRaw(raw); h != nil && h.RequestProcess != nil {
				h.RequestProcess(h)
			}
			return 0
		})
		cbHostRequestCallback = purego.NewCallback(func(raw uintptr) uintptr {
			defer absorb()
			if h := hostFromRaw(raw); h != nil && h.RequestCallback != nil {
				h.RequestCallback(h)
			}
			return 0
		})
	})
}

func hostFromRaw(raw uintptr) *abi.Host {
	if raw == 0 {
		return nil
	}
	data := (*clapHost)(unsafe.Pointer(raw)).HostData
	v, ok := hostTable.Get(data)
	if !ok {
		return nil
	}
	h, _ := v.(*abi.Host)
	return h
}

// boundPlugin owns one native instance: the raw C plugin pointer, the typed
// bindings of its table entries and the pinned host block it was created
// against.
type boundPlugin struct {
	raw  uintptr
	host *hostBlock

	init            func(plugin uintptr) bool
	destroy         func(plugin uintptr)
	activate        func(plugin uintptr, sampleRate float64, minFrames, maxFrames uint32) bool
	deactivate      func(plugin uintptr)
	startProcessing func(plugin uintptr) bool
	stopProcessing  func(plugin uintptr)
	reset           func(plugin uintptr)
	process         func(plugin, data uintptr) int32
	onMainThread    func(plugin uintptr)
}

func bindMember(fn any, cfn uintptr) bool {
	if cfn == 0 {
		return false
	}
	purego.RegisterFunc(fn, cfn)
	return true
}

// bindPlugin wraps a raw C instance as an abi.Plugin. Absent table entries
// stay nil so the hosting layer applies its own optional-entry semantics.
func bindPlugin(raw uintptr, host *hostBlock) *abi.Plugin {
	c := (*clapPlugin)(unsafe.Pointer(raw))
	b := &boundPlugin{raw: raw, host: host}

	p := &abi.Plugin{Data: raw}
	if c.Desc != 0 {
		p.Descriptor = decodeDescriptor(c.Desc)
	}

	if bindMember(&b.init, c.Init) {
		p.Init = func(*abi.Plugin) bool { return b.init(b.raw) }
	}
	if bindMember(&b.destroy, c.Destroy) {
		p.Destroy = func(pl *abi.Plugin) {
			b.destroy(b.raw)
			b.host.release()
			pl.Data = 0
		}
	} else {
		p.Destroy = func(pl *abi.Plugin) {
			b.host.release()
			pl.Data = 0
		}
	}
	if bindMember(&b.activate, c.Activate) {
		p.Activate = func(_ *abi.Plugin, sampleRate float64, minFrames, maxFrames uint32) bool {
			return b.activate(b.raw, sampleRate, minFrames, maxFrames)
		}
	}
	if bindMember(&b.deactivate, c.Deactivate) {
		p.Deactivate = func(*abi.Plugin) { b.deactivate(b.raw) }
	}
	if bindMember(&b.startProcessing, c.StartProcessing) {
		p.StartProcessing = func(*abi.Plugin) bool { return b.startProcessing(b.raw) }
	}
	if bindMember(&b.stopProcessing, c.StopProcessing) {
		p.StopProcessing = func(*abi.Plugin) { b.stopProcessing(b.raw) }
	}
	if bindMember(&b.reset, c.Reset) {
		p.Reset = func(*abi.Plugin) { b.reset(b.raw) }
	}
	if bindMember(&b.process, c.Process) {
		p.Process = func(_ *abi.Plugin, data *abi.ProcessData) abi.ProcessStatus {
			return b.runProcess(data)
		}
	}
	if bindMember(&b.onMainThread, c.OnMainThread) {
		p.OnMainThread = func(*abi.Plugin) { b.onMainThread(b.raw) }
	}
	return p
}
