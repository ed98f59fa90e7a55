package bridge

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/guest"
)

// DefaultMaxLabelBytes bounds the label accepted by MakeDemo.
const DefaultMaxLabelBytes = 4096

// Config holds configuration for opening a Bridge
type Config struct {
	// Stdout receives the output of the driver and of the print-r callback.
	// nil means os.Stdout.
	Stdout io.Writer

	// Logger overrides the package logger for this bridge.
	Logger *zap.Logger

	// Module replaces the assembled guest binary. It must satisfy the
	// declarations returned by Declare.
	Module []byte

	// Guest controls how the guest is assembled when Module is nil.
	Guest guest.Options

	// MemoryLimitPages caps guest memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// MaxLabelBytes bounds the label accepted by MakeDemo.
	// 0 means DefaultMaxLabelBytes.
	MaxLabelBytes int
}

func (c Config) withDefaults() Config {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = Logger()
	}
	if c.MaxLabelBytes <= 0 {
		c.MaxLabelBytes = DefaultMaxLabelBytes
	}
	return c
}
