package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/bridge"
)

func main() {
	var (
		label       = flag.String("label", bridge.DefaultLabel, "Name given to the demo object")
		z           = flag.Int64("z", 222, "Value of shared-thing.z (s32)")
		r           = flag.Uint64("r", 333, "Value carried by thing-r")
		verbose     = flag.Bool("v", false, "Log bridge calls to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *z < math.MinInt32 || *z > math.MaxInt32 {
		fmt.Fprintf(os.Stderr, "Error: -z %d does not fit in s32\n", *z)
		os.Exit(1)
	}
	script := bridge.Script{Label: *label, Z: int32(*z), R: *r}

	cfg := bridge.Config{Stdout: os.Stdout}
	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		cfg.Logger = logger
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, script); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := bridge.RunScript(context.Background(), cfg, script); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
