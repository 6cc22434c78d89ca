package host

import (
	"sync"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/bundle"
)

// fakePlugin counts foreign calls and records the last process payload, so
// tests can assert which table entries were reached and in what order.
type fakePlugin struct {
	mu    sync.Mutex
	calls []string

	failActivate bool
	failStart    bool
	panicOnStart bool

	processStatus abi.ProcessStatus
	nilProcess    bool
	lastData      abi.ProcessData
}

func (f *fakePlugin) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakePlugin) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakePlugin) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var fakeDescriptor = &abi.PluginDescriptor{
	ID:      "test.fake",
	Name:    "Fake",
	Vendor:  "clap-runtime tests",
	Version: "1.0.0",
}

type fakeFactory struct {
	plugin   *fakePlugin
	failNew  bool
	failInit bool
}

func (f *fakeFactory) PluginCount() uint32 { return 1 }

func (f *fakeFactory) PluginDescriptor(index uint32) *abi.PluginDescriptor {
	if index != 0 {
		return nil
	}
	return fakeDescriptor
}

func (f *fakeFactory) CreatePlugin(_ *abi.Host, pluginID string) *abi.Plugin {
	if f.failNew || pluginID != fakeDescriptor.ID {
		return nil
	}

	fp := f.plugin
	p := &abi.Plugin{Descriptor: fakeDescriptor, Data: 1}

	p.Init = func(*abi.Plugin) bool {
		fp.record("init")
		return !f.failInit
	}
	p.Destroy = func(*abi.Plugin) { fp.record("destroy") }
	p.Activate = func(_ *abi.Plugin, _ float64, _, _ uint32) bool {
		fp.record("activate")
		return !fp.failActivate
	}
	p.Deactivate = func(*abi.Plugin) { fp.record("deactivate") }
	p.StartProcessing = func(*abi.Plugin) bool {
		if fp.panicOnStart {
			panic("start blew up")
		}
		fp.record("start_processing")
		return !fp.failStart
	}
	p.StopProcessing = func(*abi.Plugin) { fp.record("stop_processing") }
	p.Reset = func(*abi.Plugin) { fp.record("reset") }
	p.OnMainThread = func(*abi.Plugin) { fp.record("on_main_thread") }

	if !fp.nilProcess {
		p.Process = func(_ *abi.Plugin, data *abi.ProcessData) abi.ProcessStatus {
			fp.record("process")
			fp.mu.Lock()
			fp.lastData = *data
			fp.mu.Unlock()
			return fp.processStatus
		}
	}

	return p
}

type testShared struct {
	mu           sync.Mutex
	instantiated bool
	logged       []string
}

func (s *testShared) Instantiated(SharedPluginHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instantiated = true
}

func (s *testShared) Log(_ abi.LogSeverity, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logged = append(s.logged, msg)
}

type testMain struct {
	shared *testShared
}

type testProc struct {
	tornDown bool
}

type testInstance = Instance[testShared, testMain, testProc]

func newFake() (*fakePlugin, *testInstance, error) {
	fp := &fakePlugin{processStatus: abi.ProcessContinue}
	inst, err := newFakeFrom(fp)
	return fp, inst, err
}

// newFakeFrom instantiates around a caller-built fake, for tests that must
// shape the plugin table (a fake flag read at creation time) before creation.
func newFakeFrom(fp *fakePlugin) (*testInstance, error) {
	b := bundle.FromFactory(&fakeFactory{plugin: fp})

	return NewInstance[testShared, testMain, testProc](
		b,
		fakeDescriptor.ID,
		HostInfo{Name: "test host", Version: "0.0.1"},
		func() testShared { return testShared{} },
		func(s *testShared) testMain { return testMain{shared: s} },
	)
}

var defaultConfig = AudioConfig{SampleRate: 48000, MinFrames: 1, MaxFrames: 512}

func newProcInit() func(ProcessorHandle, *testShared, *testMain) (testProc, error) {
	return func(ProcessorHandle, *testShared, *testMain) (testProc, error) {
		return testProc{}, nil
	}
}
