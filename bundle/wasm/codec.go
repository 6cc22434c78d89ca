package wasm

import (
	"encoding/binary"
	"math"

	"github.com/cadenza-audio/clap-runtime/abi"
)

// Process payloads cross into guest memory as one little-endian block the
// host writes before the call and reads back after it:
//
//	header        steady_time i64, frames u32, in/out port counts u32,
//	              in event count u32, out event capacity u32, out event
//	              count u32 (guest-written)
//	input ports   channel count u32, then channel-major f32 samples
//	output ports  channel count u32, then channel-major f32 samples
//	              (guest-written)
//	input events  fixed 32-byte records
//	output events capacity * 32 bytes (guest-written)
//
// The guest mutates the block in place, so one allocation serves the whole
// round trip.

const (
	headerSize    = 32
	eventRecSize  = 32
	outEventLimit = 256
)

const (
	offSteadyTime  = 0
	offFrames      = 8
	offInPorts     = 12
	offOutPorts    = 16
	offInEvents    = 20
	offOutEventCap = 24
	offOutEvents   = 28
)

type processBlock struct {
	buf []byte

	outPortsOff  int
	outEventsOff int
}

func blockSize(data *abi.ProcessData) int {
	size := headerSize
	for i := range data.AudioInputs {
		size += 4 + len(data.AudioInputs[i].Data32)*int(data.FramesCount)*4
	}
	for i := range data.AudioOutputs {
		size += 4 + len(data.AudioOutputs[i].Data32)*int(data.FramesCount)*4
	}
	if data.InEvents != nil {
		size += int(data.InEvents.Len()) * eventRecSize
	}
	size += outEventLimit * eventRecSize
	return size
}

// encodeBlock serializes the payload. Only 32-bit sample data crosses the
// boundary; 64-bit ports are not part of the guest ABI.
func encodeBlock(data *abi.ProcessData) *processBlock {
	b := &processBlock{buf: make([]byte, blockSize(data))}
	le := binary.LittleEndian

	le.PutUint64(b.buf[offSteadyTime:], uint64(data.SteadyTime))
	le.PutUint32(b.buf[offFrames:], data.FramesCount)
	le.PutUint32(b.buf[offInPorts:], uint32(len(data.AudioInputs)))
	le.PutUint32(b.buf[offOutPorts:], uint32(len(data.AudioOutputs)))
	le.PutUint32(b.buf[offOutEventCap:], outEventLimit)

	off := headerSize
	for i := range data.AudioInputs {
		off = encodePort(b.buf, off, &data.AudioInputs[i], data.FramesCount, true)
	}
	b.outPortsOff = off
	for i := range data.AudioOutputs {
		off = encodePort(b.buf, off, &data.AudioOutputs[i], data.FramesCount, false)
	}

	inCount := uint32(0)
	if data.InEvents != nil {
		for i := uint32(0); i < data.InEvents.Len(); i++ {
			ev, ok := data.InEvents.At(i)
			if !ok {
				continue
			}
			encodeEvent(b.buf[off:], ev)
			off += eventRecSize
			inCount++
		}
	}
	le.PutUint32(b.buf[offInEvents:], inCount)
	b.outEventsOff = off
	return b
}

func encodePort(buf []byte, off int, port *abi.AudioBuffer, frames uint32, copySamples bool) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(port.Data32)))
	off += 4
	for _, ch := range port.Data32 {
		if copySamples {
			for i := uint32(0); i < frames && int(i) < len(ch); i++ {
				binary.LittleEndian.PutUint32(buf[off+int(i)*4:], math.Float32bits(ch[i]))
			}
		}
		off += int(frames) * 4
	}
	return off
}

// decodeOutputs copies guest-written samples and events back into the
// caller's buffers.
func (b *processBlock) decodeOutputs(data *abi.ProcessData) {
	le := binary.LittleEndian

	off := b.outPortsOff
	for p := range data.AudioOutputs {
		port := &data.AudioOutputs[p]
		off += 4
		for _, ch := range port.Data32 {
			for i := 0; i < int(data.FramesCount) && i < len(ch); i++ {
				ch[i] = math.Float32frombits(le.Uint32(b.buf[off+i*4:]))
			}
			off += int(data.FramesCount) * 4
		}
	}

	if data.OutEvents == nil {
		return
	}
	count := le.Uint32(b.buf[offOutEvents:])
	if count > outEventLimit {
		count = outEventLimit
	}
	for i := uint32(0); i < count; i++ {
		ev := decodeEvent(b.buf[b.outEventsOff+int(i)*eventRecSize:])
		data.OutEvents.TryPush(ev)
	}
}

func encodeEvent(buf []byte, ev abi.Event) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], ev.Time)
	le.PutUint16(buf[4:], uint16(ev.Type))
	le.PutUint16(buf[6:], uint16(ev.PortIndex))
	le.PutUint16(buf[8:], uint16(ev.Channel))
	le.PutUint16(buf[10:], uint16(ev.Key))
	le.PutUint32(buf[12:], ev.ParamID)
	le.PutUint64(buf[16:], math.Float64bits(ev.Velocity))
	le.PutUint64(buf[24:], math.Float64bits(ev.ParamValue))
}

func decodeEvent(buf []byte) abi.Event {
	le := binary.LittleEndian
	return abi.Event{
		Time:       le.Uint32(buf[0:]),
		Type:       abi.EventType(le.Uint16(buf[4:])),
		PortIndex:  int16(le.Uint16(buf[6:])),
		Channel:    int16(le.Uint16(buf[8:])),
		Key:        int16(le.Uint16(buf[10:])),
		ParamID:    le.Uint32(buf[12:]),
		Velocity:   math.Float64frombits(le.Uint64(buf[16:])),
		ParamValue: math.Float64frombits(le.Uint64(buf[24:])),
	}
}
