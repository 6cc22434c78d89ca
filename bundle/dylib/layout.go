//go:build darwin || linux

package dylib

import "unsafe"

// C-layout mirrors of the plugin binary's wire structs. Field order and
// widths must match the 64-bit C ABI exactly; Go's natural alignment rules
// produce the same padding the C compiler does, so no explicit pad fields
// are needed.

type clapVersion struct {
	Major    uint32
	Minor    uint32
	Revision uint32
}

var hostVersion = clapVersion{Major: 1, Minor: 2, Revision: 2}

type clapPluginEntry struct {
	Version    clapVersion
	Init       uintptr // bool (*)(const char *plugin_path)
	Deinit     uintptr // void (*)(void)
	GetFactory uintptr // const void *(*)(const char *factory_id)
}

type clapPluginFactory struct {
	GetPluginCount      uintptr // uint32_t (*)(factory)
	GetPluginDescriptor uintptr // const descriptor *(*)(factory, uint32_t)
	CreatePlugin        uintptr // const plugin *(*)(factory, host, const char *id)
}

type clapPluginDescriptor struct {
	Version     clapVersion
	ID          uintptr
	Name        uintptr
	Vendor      uintptr
	URL         uintptr
	ManualURL   uintptr
	SupportURL  uintptr
	VersionStr  uintptr
	Description uintptr
	Features    uintptr // const char *const *, NULL-terminated
}

type clapHost struct {
	Version  clapVersion
	HostData uintptr
	Name     uintptr
	Vendor   uintptr
	URL      uintptr
	VerStr   uintptr

	GetExtension    uintptr // const void *(*)(host, const char *id)
	RequestRestart  uintptr // void (*)(host)
	RequestProcess  uintptr // void (*)(host)
	RequestCallback uintptr // void (*)(host)
}

type clapPlugin struct {
	Desc       uintptr
	PluginData uintptr

	Init            uintptr
	Destroy         uintptr
	Activate        uintptr
	Deactivate      uintptr
	StartProcessing uintptr
	StopProcessing  uintptr
	Reset           uintptr
	Process         uintptr
	GetExtension    uintptr
	OnMainThread    uintptr
}

type clapAudioBuffer struct {
	Data32       uintptr // float ** (channel-major)
	Data64       uintptr // double **
	ChannelCount uint32
	Latency      uint32
	ConstantMask uint64
}

type clapInputEvents struct {
	Ctx  uintptr
	Size uintptr // uint32_t (*)(const list *)
	Get  uintptr // const header *(*)(const list *, uint32_t)
}

type clapOutputEvents struct {
	Ctx     uintptr
	TryPush uintptr // bool (*)(const list *, const header *)
}

type clapProcess struct {
	SteadyTime        int64
	FramesCount       uint32
	Transport         uintptr // const clap_event_transport *, nullable
	AudioInputs       uintptr // const clap_audio_buffer *
	AudioOutputs      uintptr
	AudioInputsCount  uint32
	AudioOutputsCount uint32
	InEvents          uintptr
	OutEvents         uintptr
}

const coreEventSpaceID uint16 = 0

const (
	eventNoteOn     uint16 = 0
	eventNoteOff    uint16 = 1
	eventParamValue uint16 = 5
)

type clapEventHeader struct {
	Size    uint32
	Time    uint32
	SpaceID uint16
	Type    uint16
	Flags   uint32
}

type clapEventNote struct {
	Header    clapEventHeader
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16
	Velocity  float64
}

type clapEventParamValue struct {
	Header    clapEventHeader
	ParamID   uint32
	Cookie    uintptr
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16
	Value     float64
}

// Transport positions are fixed point on the wire, with a 31-bit fraction.
const fixedPointFactor = float64(int64(1) << 31)

const (
	transportHasTempo           uint32 = 1 << 0
	transportHasBeatsTimeline   uint32 = 1 << 1
	transportHasSecondsTimeline uint32 = 1 << 2
	transportHasTimeSignature   uint32 = 1 << 3
	transportIsPlaying          uint32 = 1 << 4
	transportIsRecording        uint32 = 1 << 5
	transportIsLoopActive       uint32 = 1 << 6
)

type clapEventTransport struct {
	Header clapEventHeader
	Flags  uint32

	SongPosBeats   int64
	SongPosSeconds int64

	Tempo    float64
	TempoInc float64

	LoopStartBeats   int64
	LoopEndBeats     int64
	LoopStartSeconds int64
	LoopEndSeconds   int64

	BarStart  int64
	BarNumber int32

	TimeSigNum   uint16
	TimeSigDenom uint16
}

// goString copies a NUL-terminated C string into a Go string.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// goStringList walks a NULL-terminated char* array.
func goStringList(p uintptr) []string {
	if p == 0 {
		return nil
	}
	var out []string
	for i := 0; ; i++ {
		sp := *(*uintptr)(unsafe.Pointer(p + uintptr(i)*unsafe.Sizeof(uintptr(0))))
		if sp == 0 {
			return out
		}
		out = append(out, goString(sp))
	}
}

// cString returns s as a NUL-terminated byte slice. The caller must pin the
// slice for as long as foreign code may read it.
func cString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

func bytePtr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}
