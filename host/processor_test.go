package host

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

func activateFake(t *testing.T) (*fakePlugin, *testInstance, *StoppedProcessor[testShared, testMain, testProc]) {
	t.Helper()

	fp, inst, err := newFake()
	require.NoError(t, err)
	t.Cleanup(inst.Destroy)

	proc, err := inst.Activate(defaultConfig, newProcInit())
	require.NoError(t, err)
	return fp, inst, proc
}

func TestProcessOnStoppedNeverReachesPlugin(t *testing.T) {
	fp, _, stopped := activateFake(t)
	proc := FromStopped(stopped)

	_, err := proc.Process(EmptyAudioPorts(), EmptyAudioPorts(), nil, nil, abi.SteadyTime{}, nil)
	assert.ErrorIs(t, err, errors.ProcessingStopped())
	assert.Zero(t, fp.count("process"), "a stopped processor must never invoke the foreign process function")
}

func TestStartProcessingStrictVsEnsure(t *testing.T) {
	fp, _, stopped := activateFake(t)
	proc := FromStopped(stopped)

	require.NoError(t, proc.StartProcessing())
	assert.True(t, proc.IsStarted())

	// Strict form errors on a started processor; the idempotent form is a
	// no-op success. Neither may invoke the foreign start function again.
	assert.ErrorIs(t, proc.StartProcessing(), errors.ProcessingStarted())
	assert.NoError(t, proc.EnsureStarted())
	assert.Equal(t, 1, fp.count("start_processing"))
}

func TestStartProcessingFailureRestoresStopped(t *testing.T) {
	fp, inst, stopped := activateFake(t)
	fp.failStart = true
	proc := FromStopped(stopped)

	err := proc.StartProcessing()
	assert.ErrorIs(t, err, errors.StartProcessingFailed())

	// The stopped capability must survive the failed start.
	assert.False(t, proc.IsStarted())
	s, err := proc.AsStopped()
	require.NoError(t, err)
	assert.True(t, s.Matches(inst))
}

func TestStopProcessingStrictVsEnsure(t *testing.T) {
	fp, _, stopped := activateFake(t)
	proc := FromStopped(stopped)

	assert.ErrorIs(t, proc.StopProcessing(), errors.ProcessingStopped())

	require.NoError(t, proc.StartProcessing())
	require.NoError(t, proc.StopProcessing())
	assert.Equal(t, 1, fp.count("stop_processing"))

	proc.EnsureStopped() // no-op on stopped
	assert.Equal(t, 1, fp.count("stop_processing"))
}

func TestProcessFrameCountResolution(t *testing.T) {
	tests := []struct {
		name string
		in   *AudioPorts
		out  *AudioPorts
		want uint32
	}{
		{
			name: "min of both sides",
			in:   NewAudioPorts(nil, 64),
			out:  NewAudioPorts(nil, 128),
			want: 64,
		},
		{
			name: "only output known",
			in:   EmptyAudioPorts(),
			out:  NewAudioPorts(nil, 100),
			want: 100,
		},
		{
			name: "only input known",
			in:   NewAudioPorts(nil, 32),
			out:  EmptyAudioPorts(),
			want: 32,
		},
		{
			name: "neither known",
			in:   EmptyAudioPorts(),
			out:  EmptyAudioPorts(),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, _, stopped := activateFake(t)
			started, err := stopped.StartProcessing()
			require.NoError(t, err)

			_, err = started.Process(tt.in, tt.out, nil, nil, abi.SteadyTime{}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fp.lastData.FramesCount)
		})
	}
}

func TestProcessSteadyTimeEncoding(t *testing.T) {
	fp, _, stopped := activateFake(t)
	started, err := stopped.StartProcessing()
	require.NoError(t, err)

	run := func(st abi.SteadyTime) int64 {
		t.Helper()
		_, err := started.Process(EmptyAudioPorts(), EmptyAudioPorts(), nil, nil, st, nil)
		require.NoError(t, err)
		return fp.lastData.SteadyTime
	}

	assert.Equal(t, abi.SteadyTimeUnknown, run(abi.SteadyTime{}))
	assert.Equal(t, int64(0), run(abi.SteadyTimeAt(0)))
	assert.Equal(t, int64(96000), run(abi.SteadyTimeAt(96000)))
	assert.Equal(t, int64(math.MaxInt64), run(abi.SteadyTimeAt(math.MaxUint64)))
}

func TestProcessStatusDecoding(t *testing.T) {
	fp, _, stopped := activateFake(t)
	started, err := stopped.StartProcessing()
	require.NoError(t, err)

	fp.processStatus = abi.ProcessSleep
	status, err := started.Process(EmptyAudioPorts(), EmptyAudioPorts(), nil, nil, abi.SteadyTime{}, nil)
	require.NoError(t, err)
	assert.Equal(t, abi.ProcessSleep, status)

	fp.processStatus = abi.ProcessError
	_, err = started.Process(EmptyAudioPorts(), EmptyAudioPorts(), nil, nil, abi.SteadyTime{}, nil)
	assert.ErrorIs(t, err, errors.ProcessingFailed(0))

	fp.processStatus = 99 // outside the closed set
	_, err = started.Process(EmptyAudioPorts(), EmptyAudioPorts(), nil, nil, abi.SteadyTime{}, nil)
	assert.ErrorIs(t, err, errors.ProcessingFailed(99))
}

func TestProcessNullProcessFunction(t *testing.T) {
	// The flag must be set before creation; the fake decides whether to
	// install a process entry when the plugin table is built.
	fp := &fakePlugin{processStatus: abi.ProcessContinue, nilProcess: true}
	inst, err := newFakeFrom(fp)
	require.NoError(t, err)
	t.Cleanup(inst.Destroy)

	stopped, err := inst.Activate(defaultConfig, newProcInit())
	require.NoError(t, err)
	started, err := stopped.StartProcessing()
	require.NoError(t, err)

	_, err = started.Process(EmptyAudioPorts(), EmptyAudioPorts(), nil, nil, abi.SteadyTime{}, nil)
	assert.ErrorIs(t, err, errors.NullProcessFunction())
	assert.Zero(t, fp.count("process"))
}

func TestProcessPayloadTransportAndEvents(t *testing.T) {
	fp, _, stopped := activateFake(t)
	started, err := stopped.StartProcessing()
	require.NoError(t, err)

	in := abi.NewEventList(4)
	in.TryPush(abi.Event{Time: 0, Type: abi.EventNoteOn, Key: 64, Velocity: 1})
	out := abi.NewEventList(4)
	transport := &abi.Transport{Tempo: 120, IsPlaying: true}

	_, err = started.Process(
		PortFrom32([][]float32{make([]float32, 16), make([]float32, 16)}),
		PortFrom32([][]float32{make([]float32, 16), make([]float32, 16)}),
		in, out, abi.SteadyTimeAt(1024), transport)
	require.NoError(t, err)

	assert.Equal(t, uint32(16), fp.lastData.FramesCount)
	assert.Same(t, transport, fp.lastData.Transport)
	assert.Equal(t, uint32(1), fp.lastData.InEvents.Len())
	assert.Len(t, fp.lastData.AudioInputs, 1)
	assert.Len(t, fp.lastData.AudioOutputs, 1)
}

func TestMatches(t *testing.T) {
	_, inst, stopped := activateFake(t)
	_, other, otherStopped := activateFake(t)

	proc := FromStopped(stopped)
	assert.True(t, proc.Matches(inst))
	assert.False(t, proc.Matches(other))

	require.NoError(t, proc.StartProcessing())
	assert.True(t, proc.Matches(inst), "matches must hold for a started processor")

	require.NoError(t, proc.StopProcessing())
	assert.True(t, proc.Matches(inst), "matches must hold after a start/stop round-trip")

	otherProc := FromStopped(otherStopped)
	assert.True(t, otherProc.Matches(other))
}

func TestIntoStartedIntoStopped(t *testing.T) {
	fp, _, stopped := activateFake(t)

	proc := FromStopped(stopped)
	started, err := proc.IntoStarted()
	require.NoError(t, err)
	require.NotNil(t, started)

	proc2 := FromStarted(started)
	s := proc2.IntoStopped()
	require.NotNil(t, s)
	assert.Equal(t, 1, fp.count("start_processing"))
	assert.Equal(t, 1, fp.count("stop_processing"))
}

func TestIntoStartedFailureRetainsStopped(t *testing.T) {
	fp, inst, stopped := activateFake(t)
	fp.failStart = true

	proc := FromStopped(stopped)
	_, err := proc.IntoStarted()
	assert.ErrorIs(t, err, errors.StartProcessingFailed())

	// The capability is retained in Stopped form.
	s, err := proc.AsStopped()
	require.NoError(t, err)
	assert.True(t, s.Matches(inst))
}

func TestResetLegalInBothStates(t *testing.T) {
	fp, _, stopped := activateFake(t)
	proc := FromStopped(stopped)

	proc.Reset()
	require.NoError(t, proc.StartProcessing())
	proc.Reset()
	assert.Equal(t, 2, fp.count("reset"))
}

func TestStaleProcessorAfterDeactivate(t *testing.T) {
	fp, inst, stopped := activateFake(t)

	require.NoError(t, inst.Deactivate(nil))

	_, err := stopped.StartProcessing()
	assert.ErrorIs(t, err, errors.DeactivatedPlugin())
	assert.Zero(t, fp.count("start_processing"))
	assert.Nil(t, stopped.Handler())
}

func TestPanicDuringTransitionPoisons(t *testing.T) {
	fp, _, stopped := activateFake(t)
	fp.panicOnStart = true
	proc := FromStopped(stopped)

	require.Panics(t, func() { _ = proc.StartProcessing() })

	// The mid-transition placeholder is what remains; any observation must
	// fail loudly rather than act as a fourth state.
	assert.Panics(t, func() { _, _ = proc.AsStarted() })
	assert.Panics(t, func() { _ = proc.StartProcessing() })
	assert.Panics(t, func() { proc.Reset() })
}

func TestHandlerFacetAccess(t *testing.T) {
	_, inst, err := newFake()
	require.NoError(t, err)
	t.Cleanup(inst.Destroy)

	stopped, err := inst.Activate(defaultConfig,
		func(h ProcessorHandle, shared *testShared, main *testMain) (testProc, error) {
			require.Equal(t, "test.fake", h.Descriptor().ID)
			require.NotNil(t, shared)
			require.NotNil(t, main)
			return testProc{}, nil
		})
	require.NoError(t, err)

	require.NotNil(t, stopped.Handler())
	require.NoError(t, inst.Deactivate(func(p testProc, m *testMain) {}))
	assert.Nil(t, stopped.Handler(), "facet must be gone after deactivation")
}
