package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/caffeineduck/headless/executor"
	"github.com/caffeineduck/headless/hostfunc"
	"github.com/caffeineduck/headless/internal/config"
	"github.com/caffeineduck/headless/internal/logging"
	"github.com/caffeineduck/headless/jsrun"
	"github.com/caffeineduck/headless/shim"
	"github.com/caffeineduck/headless/stdinbridge"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <module.wasm|script.js> [args...]",
		Short: "Run a module headlessly",
		Long: `Run a WebAssembly module or a JavaScript script.

Arguments after the module path are passed through untouched and show up
in Module.arguments:
  headless run game.wasm --seed 7
  echo 'move e2e4' | headless run engine.js

Standard input is read in the background and handed to the module one line
at a time.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
	// Everything after the module path belongs to the module.
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().Duration("timeout", 0, "Execution timeout (0 = no limit)")
	cmd.Flags().String("memory", "", "Memory limit for WASM modules, e.g. 64MiB")
	cmd.Flags().Int("frame-rate", 0, "Frame callbacks per second for scripts (default 60)")
	cmd.Flags().String("frame-func", "", "Global function driven once per frame (default __frame)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	path := args[0]
	kind, err := detectKind(path)
	if err != nil {
		return err
	}

	argv := append([]string{"headless", path}, args[1:]...)
	env := shim.NewEnvironment(argv)
	bridge := stdinbridge.New(stdinbridge.WithLogger(logger))
	stdin := cmd.InOrStdin()
	if isTerminal(stdin) {
		logger.Info("reading lines from the terminal; end input with Ctrl-D")
	}
	bridge.Listen(stdin)

	timeout, _ := cfg.Runtime.TimeoutDuration()
	logger.Debug("running module", "path", path, "kind", kind, "args", env.Args.Args(), "timeout", timeout)

	switch kind {
	case kindWasm:
		return runWasm(cmd, cfg, logger, path, env, bridge)
	default:
		return runScript(cmd, cfg, logger, path, env, bridge)
	}
}

func runWasm(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, path string, env *shim.Environment, bridge *stdinbridge.Bridge) error {
	mod, err := executor.LoadModule(path)
	if err != nil {
		return err
	}

	execOpts := []executor.ExecutorOption{executor.WithLogger(logger)}
	if cfg.Runtime.DiskCache {
		execOpts = append(execOpts, executor.WithDiskCache(cfg.Runtime.CacheDir))
	}
	limit, _ := cfg.Runtime.MemoryLimitBytes()
	if pages := executor.MemoryLimitPages(limit); pages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(pages))
	}

	exec, err := executor.New(hostfunc.NewRegistry(), execOpts...)
	if err != nil {
		return err
	}
	defer exec.Close()

	timeout, _ := cfg.Runtime.TimeoutDuration()
	result := exec.Run(cmd.Context(), mod,
		executor.WithTimeout(timeout),
		executor.WithEnvironment(env),
		executor.WithStdinBridge(bridge),
		executor.WithStdout(cmd.OutOrStdout()),
		executor.WithStderr(cmd.ErrOrStderr()),
	)
	logger.Debug("module finished", "exit_code", result.ExitCode, "duration", result.Duration)

	if result.ExitCode != 0 {
		return &exitError{code: int(result.ExitCode)}
	}
	return result.Error
}

func runScript(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, path string, env *shim.Environment, bridge *stdinbridge.Bridge) error {
	ctx := cmd.Context()
	if timeout, _ := cfg.Runtime.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runner := jsrun.New(env, bridge,
		jsrun.WithStdout(cmd.OutOrStdout()),
		jsrun.WithStderr(cmd.ErrOrStderr()),
		jsrun.WithFrameFunc(cfg.Script.FrameFunc),
		jsrun.WithFrameInterval(cfg.Script.FrameInterval()),
		jsrun.WithLogger(logger),
	)
	res, err := runner.RunFile(ctx, path)
	logger.Debug("script finished", "frames", res.Frames, "duration", res.Duration)
	return err
}

// loadConfig reads --config (or the defaults) and layers explicitly set
// flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("no-cache") {
		noCache, _ := flags.GetBool("no-cache")
		cfg.Runtime.DiskCache = !noCache
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Runtime.Timeout = durationString(d)
	}
	if flags.Changed("memory") {
		cfg.Runtime.MemoryLimit, _ = flags.GetString("memory")
	}
	if flags.Changed("frame-rate") {
		cfg.Script.FrameRate, _ = flags.GetInt("frame-rate")
	}
	if flags.Changed("frame-func") {
		cfg.Script.FrameFunc, _ = flags.GetString("frame-func")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func durationString(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return d.String()
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
