//go:build !darwin && !linux

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/bundle"
)

func openNative(path string) (bundle.Bundle, error) {
	return nil, fmt.Errorf("native bundles are not supported on this platform (%s)", path)
}

func setNativeLogger(*zap.Logger) {}
