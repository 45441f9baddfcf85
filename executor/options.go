package executor

import (
	"io"
	"log/slog"
	"time"

	"github.com/caffeineduck/headless/internal/logging"
	"github.com/caffeineduck/headless/shim"
	"github.com/caffeineduck/headless/stdinbridge"
)

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	timeout time.Duration
	env     *shim.Environment
	bridge  *stdinbridge.Bridge
	stdout  io.Writer
	stderr  io.Writer
	envVars map[string]string
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 30 * time.Second,
		envVars: make(map[string]string),
	}
}

// WithTimeout sets the maximum execution time. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithEnvironment sets the stand-ins and argument view the guest sees.
// Without it the guest gets a fresh environment with no arguments.
func WithEnvironment(env *shim.Environment) Option {
	return func(c *runConfig) {
		c.env = env
	}
}

// WithStdinBridge sets the bridge the guest polls for input lines. Without
// it the guest sees an empty, finished stream.
func WithStdinBridge(b *stdinbridge.Bridge) Option {
	return func(c *runConfig) {
		c.bridge = b
	}
}

// WithStdout streams guest stdout to w instead of capturing it in
// Result.Output.
func WithStdout(w io.Writer) Option {
	return func(c *runConfig) {
		c.stdout = w
	}
}

// WithStderr sends guest stderr (minus protocol messages) to w. It defaults
// to wherever stdout goes.
func WithStderr(w io.Writer) Option {
	return func(c *runConfig) {
		c.stderr = w
	}
}

// WithEnv sets an environment variable visible to the guest.
func WithEnv(key, value string) Option {
	return func(c *runConfig) {
		c.envVars[key] = value
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Module // Modules to precompile at startup
	memoryLimitPages uint32   // Max memory pages (each page = 64KB), 0 = default (4GB)
	logger           *slog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
		logger:           logging.Discard(),
	}
}

// WithDiskCache enables persistent compilation cache for faster CLI startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/headless or XDG_CACHE_HOME/headless.
//
// Examples:
//
//	executor.New(registry, executor.WithDiskCache())            // default dir
//	executor.New(registry, executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given modules at Executor creation time.
// This moves the compilation cost to startup rather than first execution.
func WithPrecompile(mods ...Module) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = mods
	}
}

// WithMemoryLimit sets the maximum memory available to WASM modules.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithLogger sets the logger for compile and run diagnostics.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// PageSize is the size of one WASM memory page.
const PageSize = 64 * 1024

// MemoryLimitPages converts a byte count to whole pages, rounding up.
// Zero stays zero (no limit); anything past the 4GB address space is
// capped at 65536 pages.
func MemoryLimitPages(bytes int64) uint32 {
	if bytes <= 0 {
		return 0
	}
	pages := (bytes + PageSize - 1) / PageSize
	if pages > 65536 {
		pages = 65536
	}
	return uint32(pages)
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)
