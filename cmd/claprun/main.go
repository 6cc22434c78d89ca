package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/bundle"
	"github.com/cadenza-audio/clap-runtime/bundle/wasm"
	"github.com/cadenza-audio/clap-runtime/host"
	"github.com/cadenza-audio/clap-runtime/plugin"
)

func main() {
	var (
		bundlePath  = flag.String("bundle", "", "Path to plugin bundle (.so/.dylib/.wasm)")
		pluginID    = flag.String("plugin", "", "Plugin ID to instantiate (optional, defaults to first)")
		sampleRate  = flag.Float64("rate", 48000, "Sample rate in Hz")
		frames      = flag.Uint("frames", 256, "Frames per process cycle")
		cycles      = flag.Uint("cycles", 8, "Number of process cycles to run")
		list        = flag.Bool("list", false, "List plugin descriptors and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *bundlePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: claprun -bundle <plugin.so|plugin.wasm> [-plugin id] [-rate hz] [-cycles n]")
		fmt.Fprintln(os.Stderr, "       claprun -bundle <plugin> -list")
		fmt.Fprintln(os.Stderr, "       claprun -bundle <plugin> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			host.SetLogger(logger)
			plugin.SetLogger(logger)
			wasm.SetLogger(logger)
			setNativeLogger(logger)
		}
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*bundlePath, *pluginID, *sampleRate, uint32(*frames)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*bundlePath, *pluginID, *sampleRate, uint32(*frames), uint32(*cycles), *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openBundle picks the loader from the file extension.
func openBundle(ctx context.Context, path string) (bundle.Bundle, error) {
	if strings.HasSuffix(path, ".wasm") {
		return wasm.OpenFile(ctx, path, nil)
	}
	return openNative(path)
}

// cliShared is the Shared facet of CLI-hosted instances; it prints plugin
// log messages and transport requests as they arrive.
type cliShared struct{}

func (*cliShared) Log(severity abi.LogSeverity, msg string) {
	fmt.Printf("[plugin %s] %s\n", severity, msg)
}

func (*cliShared) RequestRestart()  { fmt.Println("[plugin] requested restart") }
func (*cliShared) RequestProcess()  { fmt.Println("[plugin] requested processing") }
func (*cliShared) RequestCallback() { fmt.Println("[plugin] requested main-thread callback") }

type cliMain struct{}
type cliProc struct{}

type cliInstance = host.Instance[cliShared, cliMain, cliProc]

func newInstance(b bundle.Bundle, pluginID string) (*cliInstance, error) {
	return host.NewInstance[cliShared, cliMain, cliProc](
		b, pluginID,
		host.HostInfo{
			Name:    "claprun",
			Vendor:  "cadenza",
			URL:     "https://github.com/cadenza-audio/clap-runtime",
			Version: "1.0.0",
		},
		func() cliShared { return cliShared{} },
		func(*cliShared) cliMain { return cliMain{} },
	)
}

func run(bundlePath, pluginID string, sampleRate float64, frames, cycles uint32, listOnly bool) error {
	ctx := context.Background()

	lib, err := openBundle(ctx, bundlePath)
	if err != nil {
		return err
	}
	defer lib.Close()

	factory := lib.Factory()
	if factory == nil {
		return fmt.Errorf("bundle %s exposes no plugin factory", bundlePath)
	}

	count := factory.PluginCount()
	fmt.Printf("Bundle: %s\n", bundlePath)
	fmt.Printf("Plugins: %d\n", count)
	for i := uint32(0); i < count; i++ {
		d := factory.PluginDescriptor(i)
		if d == nil {
			continue
		}
		fmt.Printf("  %s  %s %s (%s)\n", d.ID, d.Name, d.Version, d.Vendor)
		if pluginID == "" {
			pluginID = d.ID
		}
	}
	if listOnly {
		return nil
	}
	if pluginID == "" {
		return fmt.Errorf("bundle has no plugins")
	}

	inst, err := newInstance(lib, pluginID)
	if err != nil {
		return err
	}
	defer inst.Destroy()

	cfg := host.AudioConfig{SampleRate: sampleRate, MinFrames: 1, MaxFrames: frames}
	stopped, err := inst.Activate(cfg,
		func(host.ProcessorHandle, *cliShared, *cliMain) (cliProc, error) {
			return cliProc{}, nil
		})
	if err != nil {
		return fmt.Errorf("activate %s: %w", pluginID, err)
	}

	started, err := stopped.StartProcessing()
	if err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	input := [][]float32{make([]float32, frames), make([]float32, frames)}
	output := [][]float32{make([]float32, frames), make([]float32, frames)}

	fmt.Printf("\nProcessing %d cycles of %d frames at %.0f Hz...\n", cycles, frames, sampleRate)
	phase := 0.0
	for c := uint32(0); c < cycles; c++ {
		phase = fillSine(input, phase, 440, sampleRate)

		status, err := started.Process(
			host.PortFrom32(input),
			host.PortFrom32(output),
			abi.NewEventList(0), abi.NewEventList(16),
			abi.SteadyTimeAt(uint64(c)*uint64(frames)), nil)
		if err != nil {
			return fmt.Errorf("process cycle %d: %w", c, err)
		}
		fmt.Printf("  cycle %d: status=%s peak=%.4f\n", c, status, peak(output))
	}

	started.StopProcessing()
	if err := inst.Deactivate(nil); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	fmt.Println("\nDone.")
	return nil
}

// fillSine writes a test tone into every channel and returns the phase to
// continue from.
func fillSine(channels [][]float32, phase, freq, sampleRate float64) float64 {
	step := 2 * math.Pi * freq / sampleRate
	end := phase
	for _, ch := range channels {
		p := phase
		for i := range ch {
			ch[i] = float32(0.5 * math.Sin(p))
			p += step
		}
		end = p
	}
	return math.Mod(end, 2*math.Pi)
}

func peak(channels [][]float32) float64 {
	max := 0.0
	for _, ch := range channels {
		for _, s := range ch {
			if v := math.Abs(float64(s)); v > max {
				max = v
			}
		}
	}
	return max
}
