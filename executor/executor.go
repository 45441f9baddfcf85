package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/headless/hostfunc"
	"github.com/caffeineduck/headless/shim"
	"github.com/caffeineduck/headless/stdinbridge"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Result holds the output and metadata from a module run.
type Result struct {
	Output   string
	ExitCode uint32
	Duration time.Duration
	Error    error
}

// Executor manages the WASM runtime and compiled module caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	registry *hostfunc.Registry
	logger   *slog.Logger
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor with the given host function registry.
func New(registry *hostfunc.Registry, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	closeAll := func() {
		rt.Close(ctx)
		if cache != nil {
			cache.Close(ctx)
		}
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		closeAll()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	if err := instantiateHostModule(ctx, rt); err != nil {
		closeAll()
		return nil, fmt.Errorf("instantiate %s host module: %w", HostModuleName, err)
	}

	if registry == nil {
		registry = hostfunc.NewRegistry()
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		registry: registry,
		logger:   cfg.logger,
	}

	for _, mod := range cfg.precompile {
		if _, err := e.getCompiled(ctx, mod); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", mod.Name(), err)
		}
	}

	return e, nil
}

// Run instantiates mod and runs its start function to completion. The guest
// polls stdin through the headless host module or the call protocol; its
// own WASI stdin carries protocol responses only.
func (e *Executor) Run(ctx context.Context, mod Module, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	compiled, err := e.getCompiled(ctx, mod)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	env := cfg.env
	if env == nil {
		env = shim.NewEnvironment([]string{"headless", mod.Name()})
	}
	bridge := cfg.bridge
	if bridge == nil {
		// Nothing to read: the guest sees an already finished stream.
		bridge = stdinbridge.New()
		bridge.OnEnd()
	}
	ctx = withRunState(ctx, &runState{env: env, bridge: bridge})

	registry := e.registry.Clone()
	registry.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	hostfunc.NewStdin(bridge).Register(registry)
	hostfunc.NewEnv(env).Register(registry)

	var captured bytes.Buffer
	stdout, stderr := cfg.stdout, cfg.stderr
	if stdout == nil {
		stdout = &lockedWriter{w: &captured}
	}
	if stderr == nil {
		stderr = stdout
	}

	stdinReader, stdinWriter := io.Pipe()
	protocol := newProtocolHandler(ctx, registry, stdinWriter, stderr)

	argv := append([]string{mod.Name()}, env.Args.Args()...)
	moduleConfig := wazero.NewModuleConfig().
		WithStdout(stdout).
		WithStderr(protocol).
		WithStdin(stdinReader).
		WithArgs(argv...).
		WithSysWalltime().
		WithSysNanotime().
		WithName("")

	for k, v := range cfg.envVars {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	e.logger.Debug("module start", "module", mod.Name(), "args", argv[1:])

	errCh := make(chan error, 1)
	go func() {
		instance, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if instance != nil {
			instance.Close(context.Background())
		}
		stdinWriter.Close()
		errCh <- err
	}()

	err = <-errCh
	protocol.Flush()

	result := Result{
		Output:   captured.String(),
		Duration: time.Since(start),
	}

	var exitErr *sys.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 0:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Error = fmt.Errorf("timeout after %v", cfg.timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		result.Error = fmt.Errorf("execution canceled: %w", ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Error = fmt.Errorf("module exited with code %d", exitErr.ExitCode())
	default:
		result.Error = fmt.Errorf("execution failed: %w", err)
	}

	e.logger.Debug("module finished", "module", mod.Name(), "duration", result.Duration, "error", result.Error)
	return result
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Executor) getCompiled(ctx context.Context, mod Module) (wazero.CompiledModule, error) {
	name := mod.Name()

	e.mu.RLock()
	if compiled, ok := e.compiled[name]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, mod.Binary())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	e.logger.Debug("module compiled", "module", name)
	e.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ErrClosed is returned when running on a closed Executor.
var ErrClosed = errors.New("executor closed")

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "headless")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "headless")
	}
	return filepath.Join(os.TempDir(), "headless-cache")
}
