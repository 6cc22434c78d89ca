package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/cadenza-audio/clap-runtime/abi"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "full error",
			err:      New(PhaseActivate, KindActivationFailed).Detail("plugin %q said no", "gain").Build(),
			contains: []string{"[activate]", "activation_failed", `plugin "gain" said no`},
		},
		{
			name:     "minimal error",
			err:      &Error{Phase: PhaseProcess, Kind: KindProcessingStopped},
			contains: []string{"[process]", "processing_stopped"},
		},
		{
			name:     "error with cause",
			err:      Load("dlopen", errors.New("no such file")),
			contains: []string{"[load]", "load_failed", "dlopen", "caused by", "no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := StartProcessingFailed()

	if !errors.Is(err, &Error{Phase: PhaseProcess, Kind: KindStartProcessingFailed}) {
		t.Error("errors with same phase and kind should match")
	}
	if errors.Is(err, ProcessingStopped()) {
		t.Error("errors with different kinds should not match")
	}
	if errors.Is(err, errors.New("other")) {
		t.Error("non-structured errors should not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := PluginInternal(cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable through errors.Is")
	}
}

func TestError_Severity(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want abi.LogSeverity
	}{
		{"panic is plugin-misbehaving", Panic("boom"), abi.LogPluginMisbehaving},
		{"null instance is host-misbehaving", NullPluginInstance(), abi.LogHostMisbehaving},
		{"destroyed is host-misbehaving", AlreadyDestroyed(), abi.LogHostMisbehaving},
		{"domain failure is plain error", PluginInternal(errors.New("x")), abi.LogError},
		{"foreign activation failure is plain error", ActivationFailed(), abi.LogError},
		{
			name: "explicit severity wins",
			err:  New(PhaseDispatch, KindPluginInternal).Severity(abi.LogWarning).Build(),
			want: abi.LogWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Severity(); got != tt.want {
				t.Errorf("Severity() = %v, want %v", got, tt.want)
			}
		})
	}
}
