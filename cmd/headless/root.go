package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// ErrUnknownModuleKind is returned for files that are neither WASM modules
// nor JavaScript sources.
var ErrUnknownModuleKind = errors.New("unknown module kind")

type moduleKind int

const (
	kindWasm moduleKind = iota
	kindScript
)

func (k moduleKind) String() string {
	switch k {
	case kindWasm:
		return "wasm"
	case kindScript:
		return "script"
	default:
		return "unknown"
	}
}

// exitError carries a guest's non-zero exit status out of cobra without
// printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "headless",
		Short: "Run browser-targeted modules without a browser",
		Long: `headless - Run WebAssembly modules and JavaScript scripts that expect a
browser host, from the command line.

The module sees a fixed 1280x720 window, an inert document and screen, its
command-line arguments through Module.arguments, and standard input as a
queue of lines it can poll without blocking.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "Log format: text, json")
	root.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")

	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func detectKind(path string) (moduleKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wasm":
		return kindWasm, nil
	case ".js", ".mjs":
		return kindScript, nil
	default:
		return 0, fmt.Errorf("%s: %w (expected .wasm, .js or .mjs)", path, ErrUnknownModuleKind)
	}
}
