package abi

import "math"

// ProcessStatus is the closed set of continuation codes a plugin returns
// from one process cycle.
type ProcessStatus int32

const (
	// ProcessError reports that processing failed; the output buffers must
	// be discarded.
	ProcessError ProcessStatus = 0
	// ProcessContinue asks the host to keep processing.
	ProcessContinue ProcessStatus = 1
	// ProcessContinueIfNotQuiet asks the host to keep processing only while
	// any input is live.
	ProcessContinueIfNotQuiet ProcessStatus = 2
	// ProcessTail asks the host to keep processing until the plugin's tail
	// has rung out.
	ProcessTail ProcessStatus = 3
	// ProcessSleep tells the host no further processing is required until
	// the next event or variation in audio input.
	ProcessSleep ProcessStatus = 4
)

// Known reports whether s is a member of the closed status set.
// ProcessError is a known status; it is still a failed cycle.
func (s ProcessStatus) Known() bool {
	return s >= ProcessError && s <= ProcessSleep
}

func (s ProcessStatus) String() string {
	switch s {
	case ProcessError:
		return "error"
	case ProcessContinue:
		return "continue"
	case ProcessContinueIfNotQuiet:
		return "continue-if-not-quiet"
	case ProcessTail:
		return "tail"
	case ProcessSleep:
		return "sleep"
	}
	return "unknown"
}

// SteadyTimeUnknown is the payload sentinel for an absent steady-time
// counter. The sentinel is reserved exclusively for "absent": a supplied
// counter value is saturated to the positive range and can never collide
// with it.
const SteadyTimeUnknown int64 = -1

// SteadyTime is an optional monotonic sample counter. The zero value is
// "absent".
type SteadyTime struct {
	Value uint64
	Known bool
}

// SteadyTimeAt returns a known steady time of v samples.
func SteadyTimeAt(v uint64) SteadyTime {
	return SteadyTime{Value: v, Known: true}
}

// Encode converts the counter to its payload representation: the negative
// sentinel when absent, otherwise the value saturated to int64 range.
func (t SteadyTime) Encode() int64 {
	if !t.Known {
		return SteadyTimeUnknown
	}
	if t.Value > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(t.Value)
}

// DecodeSteadyTime is the inverse of Encode. Any negative payload value
// decodes as absent.
func DecodeSteadyTime(raw int64) SteadyTime {
	if raw < 0 {
		return SteadyTime{}
	}
	return SteadyTime{Value: uint64(raw), Known: true}
}

// Transport is a snapshot of the host's transport and tempo state, passed
// by nullable pointer in the process payload. Nil means free-running.
type Transport struct {
	SongPosSeconds float64
	SongPosBeats   float64
	Tempo          float64
	BarStart       float64
	BarNumber      int32
	TimeSigNum     uint16
	TimeSigDenom   uint16
	IsPlaying      bool
	IsRecording    bool
	IsLoopActive   bool
	LoopStartBeats float64
	LoopEndBeats   float64
}

// AudioBuffer is one audio port's channel data for a single process cycle.
// Exactly one of Data32/Data64 is populated; both are channel-major.
type AudioBuffer struct {
	Data32 [][]float32
	Data64 [][]float64

	// Latency is this port's latency in samples.
	Latency uint32

	// ConstantMask has bit c set when channel c holds a constant value for
	// the whole cycle.
	ConstantMask uint64
}

// ChannelCount returns the number of channels on the port.
func (b *AudioBuffer) ChannelCount() uint32 {
	if b.Data64 != nil {
		return uint32(len(b.Data64))
	}
	return uint32(len(b.Data32))
}

// ProcessData is the per-cycle payload exchanged on every process call.
// It is constructed fresh for each call and must not be retained by either
// side beyond the call.
type ProcessData struct {
	// SteadyTime is the monotonic sample counter, or a negative sentinel
	// when the host does not provide one.
	SteadyTime int64

	// FramesCount is the number of frames to process this cycle.
	FramesCount uint32

	// Transport is nil when the host is free-running.
	Transport *Transport

	AudioInputs  []AudioBuffer
	AudioOutputs []AudioBuffer

	InEvents  InputEvents
	OutEvents OutputEvents
}
