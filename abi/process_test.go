package abi

import (
	"math"
	"testing"
)

func TestSteadyTimeEncode(t *testing.T) {
	tests := []struct {
		name string
		in   SteadyTime
		want int64
	}{
		{"absent", SteadyTime{}, SteadyTimeUnknown},
		{"zero is not the sentinel", SteadyTimeAt(0), 0},
		{"plain value", SteadyTimeAt(48000), 48000},
		{"max representable", SteadyTimeAt(math.MaxInt64), math.MaxInt64},
		{"saturates instead of wrapping", SteadyTimeAt(math.MaxUint64), math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Encode()
			if got != tt.want {
				t.Errorf("Encode() = %d, want %d", got, tt.want)
			}
			if tt.in.Known && got == SteadyTimeUnknown {
				t.Errorf("known value %d collided with the absent sentinel", tt.in.Value)
			}
		})
	}
}

func TestSteadyTimeRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 44100, math.MaxInt64} {
		got := DecodeSteadyTime(SteadyTimeAt(v).Encode())
		if !got.Known || got.Value != v {
			t.Errorf("round trip of %d = %+v", v, got)
		}
	}

	if got := DecodeSteadyTime(SteadyTimeUnknown); got.Known {
		t.Errorf("sentinel decoded as known value %d", got.Value)
	}
	if got := DecodeSteadyTime(-42); got.Known {
		t.Errorf("negative payload decoded as known value %d", got.Value)
	}
}

func TestProcessStatusKnown(t *testing.T) {
	for s := ProcessError; s <= ProcessSleep; s++ {
		if !s.Known() {
			t.Errorf("status %d should be known", s)
		}
		if s.String() == "unknown" {
			t.Errorf("status %d has no name", s)
		}
	}

	for _, s := range []ProcessStatus{-1, 5, 100} {
		if s.Known() {
			t.Errorf("status %d should not be known", s)
		}
	}
}

func TestAudioBufferChannelCount(t *testing.T) {
	b32 := AudioBuffer{Data32: make([][]float32, 2)}
	if got := b32.ChannelCount(); got != 2 {
		t.Errorf("ChannelCount() = %d, want 2", got)
	}

	b64 := AudioBuffer{Data64: make([][]float64, 6)}
	if got := b64.ChannelCount(); got != 6 {
		t.Errorf("ChannelCount() = %d, want 6", got)
	}

	var empty AudioBuffer
	if got := empty.ChannelCount(); got != 0 {
		t.Errorf("ChannelCount() = %d, want 0", got)
	}
}

func TestEventList(t *testing.T) {
	l := NewEventList(4)
	if l.Len() != 0 {
		t.Fatalf("new list has %d events", l.Len())
	}

	l.TryPush(Event{Time: 0, Type: EventNoteOn, Key: 60, Velocity: 0.5})
	l.TryPush(Event{Time: 32, Type: EventParamValue, ParamID: 7, ParamValue: 0.25})

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	ev, ok := l.At(1)
	if !ok || ev.Type != EventParamValue || ev.ParamID != 7 {
		t.Errorf("At(1) = %+v, %v", ev, ok)
	}

	if _, ok := l.At(2); ok {
		t.Error("At(2) should be out of range")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Errorf("Len() after Clear = %d", l.Len())
	}
}
