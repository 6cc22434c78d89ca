//go:build darwin || linux

package dylib

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/internal/handles"
)

const eventTransport uint16 = 9

// queueTable maps event-queue context words to their Go-side queues for the
// duration of one process call.
var queueTable = handles.NewTable()

// runProcess marshals one process payload into its C representation, calls
// the native process entry and lets the plugin write straight into the Go
// channel buffers. Everything the native side may touch is pinned for the
// duration of the call.
func (b *boundPlugin) runProcess(data *abi.ProcessData) abi.ProcessStatus {
	ensureQueueCallbacks()

	var pin runtime.Pinner
	defer pin.Unpin()

	proc := &clapProcess{
		SteadyTime:        data.SteadyTime,
		FramesCount:       data.FramesCount,
		AudioInputsCount:  uint32(len(data.AudioInputs)),
		AudioOutputsCount: uint32(len(data.AudioOutputs)),
	}
	pin.Pin(proc)

	if data.Transport != nil {
		t := encodeTransport(data.Transport)
		pin.Pin(t)
		proc.Transport = uintptr(unsafe.Pointer(t))
	}

	proc.AudioInputs = marshalAudio(&pin, data.AudioInputs)
	proc.AudioOutputs = marshalAudio(&pin, data.AudioOutputs)

	blk := encodeInputEvents(data.InEvents)
	inHandle := queueTable.Insert(blk)
	defer queueTable.Remove(inHandle)
	if len(blk.words) > 0 {
		pin.Pin(&blk.words[0])
	}
	inVT := &clapInputEvents{Ctx: inHandle, Size: cbQueueSize, Get: cbQueueGet}
	pin.Pin(inVT)
	proc.InEvents = uintptr(unsafe.Pointer(inVT))

	outVT := &clapOutputEvents{TryPush: cbQueuePush}
	if data.OutEvents != nil {
		outHandle := queueTable.Insert(data.OutEvents)
		defer queueTable.Remove(outHandle)
		outVT.Ctx = outHandle
	}
	pin.Pin(outVT)
	proc.OutEvents = uintptr(unsafe.Pointer(outVT))

	status := b.process(b.raw, uintptr(unsafe.Pointer(proc)))
	return abi.ProcessStatus(status)
}

// marshalAudio lays the port list out as C audio buffer structs with
// channel-pointer arrays into the original Go sample slices.
func marshalAudio(pin *runtime.Pinner, ports []abi.AudioBuffer) uintptr {
	if len(ports) == 0 {
		return 0
	}
	cports := make([]clapAudioBuffer, len(ports))
	for i := range ports {
		p := &ports[i]
		cports[i] = clapAudioBuffer{
			ChannelCount: p.ChannelCount(),
			Latency:      p.Latency,
			ConstantMask: p.ConstantMask,
		}
		if len(p.Data32) > 0 {
			ptrs := make([]uintptr, len(p.Data32))
			for c, ch := range p.Data32 {
				if len(ch) > 0 {
					pin.Pin(&ch[0])
					ptrs[c] = uintptr(unsafe.Pointer(&ch[0]))
				}
			}
			pin.Pin(&ptrs[0])
			cports[i].Data32 = uintptr(unsafe.Pointer(&ptrs[0]))
		}
		if len(p.Data64) > 0 {
			ptrs := make([]uintptr, len(p.Data64))
			for c, ch := range p.Data64 {
				if len(ch) > 0 {
					pin.Pin(&ch[0])
					ptrs[c] = uintptr(unsafe.Pointer(&ch[0]))
				}
			}
			pin.Pin(&ptrs[0])
			cports[i].Data64 = uintptr(unsafe.Pointer(&ptrs[0]))
		}
	}
	pin.Pin(&cports[0])
	return uintptr(unsafe.Pointer(&cports[0]))
}

func encodeTransport(t *abi.Transport) *clapEventTransport {
	ev := &clapEventTransport{
		Header: clapEventHeader{
			Size:    uint32(unsafe.Sizeof(clapEventTransport{})),
			SpaceID: coreEventSpaceID,
			Type:    eventTransport,
		},
		Flags: transportHasTempo | transportHasBeatsTimeline |
			transportHasSecondsTimeline | transportHasTimeSignature,

		SongPosBeats:   int64(t.SongPosBeats * fixedPointFactor),
		SongPosSeconds: int64(t.SongPosSeconds * fixedPointFactor),
		Tempo:          t.Tempo,
		BarStart:       int64(t.BarStart * fixedPointFactor),
		BarNumber:      t.BarNumber,
		TimeSigNum:     t.TimeSigNum,
		TimeSigDenom:   t.TimeSigDenom,
	}
	if t.IsPlaying {
		ev.Flags |= transportIsPlaying
	}
	if t.IsRecording {
		ev.Flags |= transportIsRecording
	}
	if t.IsLoopActive {
		ev.Flags |= transportIsLoopActive
		ev.LoopStartBeats = int64(t.LoopStartBeats * fixedPointFactor)
		ev.LoopEndBeats = int64(t.LoopEndBeats * fixedPointFactor)
	}
	return ev
}

// inEventBlock is one process call's input queue, pre-encoded to wire events
// packed in a word slice so every event sits at an 8-aligned offset.
type inEventBlock struct {
	words   []uint64
	offsets []uint32
}

func (b *inEventBlock) push(p unsafe.Pointer, size uintptr) {
	b.offsets = append(b.offsets, uint32(len(b.words))*8)
	b.words = append(b.words, unsafe.Slice((*uint64)(p), size/8)...)
}

func (b *inEventBlock) at(i uint32) uintptr {
	if i >= uint32(len(b.offsets)) {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.words[0])) + uintptr(b.offsets[i])
}

func encodeInputEvents(in abi.InputEvents) *inEventBlock {
	blk := &inEventBlock{}
	if in == nil {
		return blk
	}
	for i := uint32(0); i < in.Len(); i++ {
		ev, ok := in.At(i)
		if !ok {
			continue
		}
		switch ev.Type {
		case abi.EventNoteOn, abi.EventNoteOff:
			typ := eventNoteOn
			if ev.Type == abi.EventNoteOff {
				typ = eventNoteOff
			}
			n := clapEventNote{
				Header: clapEventHeader{
					Size:    uint32(unsafe.Sizeof(clapEventNote{})),
					Time:    ev.Time,
					SpaceID: coreEventSpaceID,
					Type:    typ,
				},
				NoteID:    -1,
				PortIndex: ev.PortIndex,
				Channel:   ev.Channel,
				Key:       ev.Key,
				Velocity:  ev.Velocity,
			}
			blk.push(unsafe.Pointer(&n), unsafe.Sizeof(n))
		case abi.EventParamValue:
			v := clapEventParamValue{
				Header: clapEventHeader{
					Size:    uint32(unsafe.Sizeof(clapEventParamValue{})),
					Time:    ev.Time,
					SpaceID: coreEventSpaceID,
					Type:    eventParamValue,
				},
				ParamID:   ev.ParamID,
				NoteID:    -1,
				PortIndex: ev.PortIndex,
				Channel:   ev.Channel,
				Key:       ev.Key,
				Value:     ev.ParamValue,
			}
			blk.push(unsafe.Pointer(&v), unsafe.Sizeof(v))
		}
	}
	return blk
}

// decodeEvent maps a wire event back to its Go form. Events outside the core
// space or of an unmapped type are dropped.
func decodeEvent(raw uintptr) (abi.Event, bool) {
	h := (*clapEventHeader)(unsafe.Pointer(raw))
	if h.SpaceID != coreEventSpaceID {
		return abi.Event{}, false
	}
	switch h.Type {
	case eventNoteOn, eventNoteOff:
		n := (*clapEventNote)(unsafe.Pointer(raw))
		typ := abi.EventNoteOn
		if h.Type == eventNoteOff {
			typ = abi.EventNoteOff
		}
		return abi.Event{
			Time:      h.Time,
			Type:      typ,
			PortIndex: n.PortIndex,
			Channel:   n.Channel,
			Key:       n.Key,
			Velocity:  n.Velocity,
		}, true
	case eventParamValue:
		v := (*clapEventParamValue)(unsafe.Pointer(raw))
		return abi.Event{
			Time:       h.Time,
			Type:       abi.EventParamValue,
			PortIndex:  v.PortIndex,
			Channel:    v.Channel,
			Key:        v.Key,
			ParamID:    v.ParamID,
			ParamValue: v.Value,
		}, true
	}
	return abi.Event{}, false
}

var (
	queueCallbacksOnce sync.Once

	cbQueueSize uintptr
	cbQueueGet  uintptr
	cbQueuePush uintptr
)

func ensureQueueCallbacks() {
	queueCallbacksOnce.Do(func() {
		cbQueueSize = purego.NewCallback(func(list uintptr) uint32 {
			blk := inBlockFromRaw(list)
			if blk == nil {
				return 0
			}
			return uint32(len(blk.offsets))
		})
		cbQueueGet = purego.NewCallback(func(list uintptr, index uint32) uintptr {
			blk := inBlockFromRaw(list)
			if blk == nil {
				return 0
			}
			return blk.at(index)
		})
		cbQueuePush = purego.NewCallback(func(list uintptr, raw uintptr) uintptr {
			if list == 0 || raw == 0 {
				return 0
			}
			ctx := (*clapOutputEvents)(unsafe.Pointer(list)).Ctx
			v, ok := queueTable.Get(ctx)
			if !ok {
				return 0
			}
			out, ok := v.(abi.OutputEvents)
			if !ok {
				return 0
			}
			ev, ok := decodeEvent(raw)
			if !ok {
				// Unknown event types are acknowledged, not failed; failing
				// would make plugins retry forever.
				return 1
			}
			if out.TryPush(ev) {
				return 1
			}
			return 0
		})
	})
}

func inBlockFromRaw(list uintptr) *inEventBlock {
	if list == 0 {
		return nil
	}
	ctx := (*clapInputEvents)(unsafe.Pointer(list)).Ctx
	v, ok := queueTable.Get(ctx)
	if !ok {
		return nil
	}
	blk, _ := v.(*inEventBlock)
	return blk
}
