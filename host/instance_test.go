package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/bundle"
	"github.com/cadenza-audio/clap-runtime/errors"
)

func TestNewInstanceMissingFactory(t *testing.T) {
	_, err := NewInstance[testShared, testMain, testProc](
		bundle.FromFactory(nil),
		"test.fake",
		HostInfo{},
		func() testShared { return testShared{} },
		func(s *testShared) testMain { return testMain{shared: s} },
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.MissingFactory())
}

func TestNewInstanceInstantiationFailed(t *testing.T) {
	b := bundle.FromFactory(&fakeFactory{plugin: &fakePlugin{}, failNew: true})

	_, err := NewInstance[testShared, testMain, testProc](
		b, "test.fake", HostInfo{},
		func() testShared { return testShared{} },
		func(s *testShared) testMain { return testMain{shared: s} },
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.InstantiationFailed("test.fake"))
}

func TestNewInstanceUnknownID(t *testing.T) {
	b := bundle.FromFactory(&fakeFactory{plugin: &fakePlugin{}})

	_, err := NewInstance[testShared, testMain, testProc](
		b, "test.unknown", HostInfo{},
		func() testShared { return testShared{} },
		func(s *testShared) testMain { return testMain{shared: s} },
	)

	assert.ErrorIs(t, err, errors.InstantiationFailed("test.unknown"))
}

func TestNewInstanceInitFailureDestroys(t *testing.T) {
	fp := &fakePlugin{}
	b := bundle.FromFactory(&fakeFactory{plugin: fp, failInit: true})

	_, err := NewInstance[testShared, testMain, testProc](
		b, "test.fake", HostInfo{},
		func() testShared { return testShared{} },
		func(s *testShared) testMain { return testMain{shared: s} },
	)

	require.Error(t, err)
	assert.Equal(t, 1, fp.count("destroy"), "failed init must destroy the instance")
}

func TestNewInstanceNotifiesSharedFacet(t *testing.T) {
	_, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	assert.True(t, inst.Shared().instantiated,
		"shared facet must learn the instance pointer after creation")
	assert.Equal(t, "test.fake", inst.Descriptor().ID)
}

func TestActivateDeactivateCycle(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	// The cycle must be repeatable: activate must succeed again after a
	// deactivate.
	for i := 0; i < 3; i++ {
		proc, err := inst.Activate(defaultConfig, newProcInit())
		require.NoError(t, err, "cycle %d", i)
		require.NotNil(t, proc)
		assert.True(t, inst.IsActive())

		tornDown := false
		require.NoError(t, inst.Deactivate(func(p testProc, m *testMain) {
			tornDown = true
		}))
		assert.True(t, tornDown, "teardown closure must run")
		assert.False(t, inst.IsActive())
	}

	assert.Equal(t, 3, fp.count("activate"))
	assert.Equal(t, 3, fp.count("deactivate"))
}

func TestActivateWhileActive(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	_, err = inst.Activate(defaultConfig, newProcInit())
	require.NoError(t, err)

	_, err = inst.Activate(defaultConfig, newProcInit())
	assert.ErrorIs(t, err, errors.ActivatedPlugin())
	assert.Equal(t, 1, fp.count("activate"))
}

func TestActivateInvalidConfig(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	for _, cfg := range []AudioConfig{
		{SampleRate: 0, MinFrames: 1, MaxFrames: 64},
		{SampleRate: -44100, MinFrames: 1, MaxFrames: 64},
		{SampleRate: 48000, MinFrames: 128, MaxFrames: 64},
	} {
		_, err := inst.Activate(cfg, newProcInit())
		assert.Error(t, err, "config %+v", cfg)
	}
	assert.Zero(t, fp.count("activate"), "invalid configs must not reach the plugin")
}

func TestActivateForeignFailureTearsDownFacet(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	fp.failActivate = true
	_, err = inst.Activate(defaultConfig, newProcInit())
	assert.ErrorIs(t, err, errors.ActivationFailed())
	assert.False(t, inst.IsActive(), "failed activation must discard the fresh facet")

	// A later attempt must be able to succeed.
	fp.failActivate = false
	_, err = inst.Activate(defaultConfig, newProcInit())
	assert.NoError(t, err)
}

func TestActivateProcessorInitError(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	initErr := errors.New(errors.PhaseActivate, errors.KindActivationFailed).
		Detail("no memory for voices").Build()
	_, err = inst.Activate(defaultConfig,
		func(ProcessorHandle, *testShared, *testMain) (testProc, error) {
			return testProc{}, initErr
		})

	assert.ErrorIs(t, err, initErr)
	assert.Zero(t, fp.count("activate"), "a failed facet init must not reach the plugin")
	assert.False(t, inst.IsActive())
}

func TestDeactivateWhileInactive(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	err = inst.Deactivate(nil)
	assert.ErrorIs(t, err, errors.DeactivatedPlugin())
	assert.Zero(t, fp.count("deactivate"), "no foreign call on an inactive instance")
}

func TestDestroyWhileActive(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)

	_, err = inst.Activate(defaultConfig, newProcInit())
	require.NoError(t, err)

	inst.Destroy()

	assert.Equal(t, 1, fp.count("deactivate"))
	assert.Equal(t, 1, fp.count("destroy"))
	order := fp.callOrder()
	assert.Equal(t, []string{"deactivate", "destroy"}, order[len(order)-2:],
		"destruction must deactivate first, then destroy, in that order")
}

func TestDestroyIdempotent(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)

	inst.Destroy()
	inst.Destroy()

	assert.Equal(t, 1, fp.count("destroy"))
}

func TestActivateAfterDestroy(t *testing.T) {
	_, inst, err := newFake()
	require.NoError(t, err)

	inst.Destroy()

	_, err = inst.Activate(defaultConfig, newProcInit())
	assert.ErrorIs(t, err, errors.AlreadyDestroyed())
}

func TestAccessorsAfterDestroy(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)

	inst.Destroy()

	// Post-destroy observation must degrade gracefully, matching the
	// treatment the lifecycle methods give a destroyed wrapper.
	assert.Nil(t, inst.Descriptor())
	assert.NotPanics(t, inst.OnMainThread)
	assert.Zero(t, fp.count("on_main_thread"))
}

func TestOnMainThread(t *testing.T) {
	fp, inst, err := newFake()
	require.NoError(t, err)
	defer inst.Destroy()

	inst.OnMainThread()
	assert.Equal(t, 1, fp.count("on_main_thread"))
}

func TestOptionalEntriesAbsent(t *testing.T) {
	// Only the required entries are populated; every optional entry absent
	// must behave as automatic success / no-op.
	fp := &fakePlugin{processStatus: abi.ProcessContinue}

	factory := &bareFactory{}
	b := bundle.FromFactory(factory)

	inst, err := NewInstance[testShared, testMain, testProc](
		b, "test.bare", HostInfo{},
		func() testShared { return testShared{} },
		func(s *testShared) testMain { return testMain{shared: s} },
	)
	require.NoError(t, err)

	proc, err := inst.Activate(defaultConfig, newProcInit())
	require.NoError(t, err)

	started, err := proc.StartProcessing()
	require.NoError(t, err, "absent start_processing is automatic success")

	stopped := started.StopProcessing()
	require.NotNil(t, stopped)
	stopped.Reset()

	inst.OnMainThread()

	require.NoError(t, inst.Deactivate(nil))
	inst.Destroy()
	_ = fp
}

type bareFactory struct{}

func (f *bareFactory) PluginCount() uint32 { return 1 }

func (f *bareFactory) PluginDescriptor(index uint32) *abi.PluginDescriptor {
	return &abi.PluginDescriptor{ID: "test.bare"}
}

func (f *bareFactory) CreatePlugin(_ *abi.Host, pluginID string) *abi.Plugin {
	return &abi.Plugin{
		Descriptor: &abi.PluginDescriptor{ID: "test.bare"},
		Data:       1,
		Activate:   func(*abi.Plugin, float64, uint32, uint32) bool { return true },
		Process: func(*abi.Plugin, *abi.ProcessData) abi.ProcessStatus {
			return abi.ProcessContinue
		},
	}
}
