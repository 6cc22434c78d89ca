// Package bundle defines the loaded-plugin-binary collaborator consumed by
// the host side, and an in-process implementation for Go-native plugins.
//
// Loading mechanisms live in subpackages: dylib loads native shared
// libraries, wasm loads WebAssembly plugin modules. A host.Instance keeps
// its Bundle reachable for its whole life so the underlying binary stays
// resident while foreign code may still run.
package bundle

import "github.com/cadenza-audio/clap-runtime/abi"

// Bundle is one loaded plugin binary.
type Bundle interface {
	// Factory returns the binary's plugin factory, or nil if it exposes none.
	Factory() abi.Factory

	// Close releases the binary. The caller must guarantee no instance
	// created from this bundle is still alive.
	Close() error
}

type localBundle struct {
	factory abi.Factory
}

// FromFactory wraps an in-process factory as a Bundle. It is how Go-native
// plugins (and tests) are hosted without crossing a binary boundary.
func FromFactory(f abi.Factory) Bundle {
	return &localBundle{factory: f}
}

func (b *localBundle) Factory() abi.Factory { return b.factory }

func (b *localBundle) Close() error { return nil }
