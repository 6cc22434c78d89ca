package host

import "github.com/cadenza-audio/clap-runtime/abi"

// AudioPorts is one side's (input or output) audio buffer view for a
// process cycle. Each side carries its own frame count, which may be
// unknown for a side with no ports.
type AudioPorts struct {
	ports  []abi.AudioBuffer
	frames int64 // -1 when unknown
}

// NewAudioPorts builds a view over ports with a known frame count.
func NewAudioPorts(ports []abi.AudioBuffer, frames uint32) *AudioPorts {
	return &AudioPorts{ports: ports, frames: int64(frames)}
}

// EmptyAudioPorts returns a portless view with no frame count.
func EmptyAudioPorts() *AudioPorts {
	return &AudioPorts{frames: -1}
}

// PortFrom32 builds a single-port view over channel-major float32 data.
// The frame count is taken from the first channel.
func PortFrom32(channels [][]float32) *AudioPorts {
	frames := uint32(0)
	if len(channels) > 0 {
		frames = uint32(len(channels[0]))
	}
	return NewAudioPorts([]abi.AudioBuffer{{Data32: channels}}, frames)
}

// FramesCount returns the side's frame count, if known.
func (p *AudioPorts) FramesCount() (uint32, bool) {
	if p == nil || p.frames < 0 {
		return 0, false
	}
	return uint32(p.frames), true
}

// Raw returns the underlying port buffers for payload construction.
func (p *AudioPorts) Raw() []abi.AudioBuffer {
	if p == nil {
		return nil
	}
	return p.ports
}

// resolveFramesCount computes the effective frame count of one cycle: the
// minimum of both sides when both are known, the known side when only one
// is, zero when neither is.
func resolveFramesCount(in, out *AudioPorts) uint32 {
	inFrames, inOK := in.FramesCount()
	outFrames, outOK := out.FramesCount()

	switch {
	case inOK && outOK:
		return min(inFrames, outFrames)
	case inOK:
		return inFrames
	case outOK:
		return outFrames
	default:
		return 0
	}
}
