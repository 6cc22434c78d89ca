//go:build darwin || linux

package main

import (
	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/bundle"
	"github.com/cadenza-audio/clap-runtime/bundle/dylib"
)

func openNative(path string) (bundle.Bundle, error) {
	return dylib.Open(path)
}

func setNativeLogger(l *zap.Logger) {
	dylib.SetLogger(l)
}
