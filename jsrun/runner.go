// Package jsrun runs JavaScript guests under goja with the headless
// environment installed.
//
// Besides window, document, screen and Module.arguments, a script sees
// a __stdin object for polling standard input and a console that writes to
// the runner's stdout and stderr:
//
//	for (;;) {
//	    const done = __stdin.isFinished();
//	    const r = __stdin.tryReadLine();
//	    if (r.ok) { console.log(r.line); continue; }
//	    if (done) break;
//	    // nothing yet; come back next frame
//	}
//
// Reading the finished flag before the queue matters: the flag is set only
// after the last line is queued, so an empty queue seen after it is final.
//
// Scripts that define the frame function (default "__frame") are driven
// once per tick after the top-level code finishes. The loop ends when the
// function returns false, when it is removed, or when the context is done.
package jsrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"

	"github.com/caffeineduck/headless/internal/logging"
	"github.com/caffeineduck/headless/shim"
	"github.com/caffeineduck/headless/stdinbridge"
)

const (
	DefaultFrameFunc     = "__frame"
	DefaultFrameInterval = time.Second / 60
)

// ErrNotScript is returned by RunFile for paths without a .js or .mjs extension.
var ErrNotScript = errors.New("not a javascript file")

// Result describes a finished script run.
type Result struct {
	Frames   int
	Duration time.Duration
}

type Runner struct {
	env    *shim.Environment
	bridge *stdinbridge.Bridge

	stdout        io.Writer
	stderr        io.Writer
	frameFunc     string
	frameInterval time.Duration
	logger        *slog.Logger
}

type Option func(*Runner)

func WithStdout(w io.Writer) Option {
	return func(r *Runner) { r.stdout = w }
}

func WithStderr(w io.Writer) Option {
	return func(r *Runner) { r.stderr = w }
}

// WithFrameFunc sets the global function name driven by the frame loop.
func WithFrameFunc(name string) Option {
	return func(r *Runner) { r.frameFunc = name }
}

// WithFrameInterval sets the delay between frames. Zero disables the loop.
func WithFrameInterval(d time.Duration) Option {
	return func(r *Runner) { r.frameInterval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New returns a runner bound to env and bridge. A nil bridge behaves like
// an input that has already ended.
func New(env *shim.Environment, bridge *stdinbridge.Bridge, opts ...Option) *Runner {
	r := &Runner{
		env:           env,
		bridge:        bridge,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		frameFunc:     DefaultFrameFunc,
		frameInterval: DefaultFrameInterval,
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.env == nil {
		r.env = shim.NewEnvironment(nil)
	}
	if r.bridge == nil {
		r.bridge = stdinbridge.New()
		r.bridge.OnEnd()
	}
	return r
}

// RunFile reads and runs the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) (Result, error) {
	switch filepath.Ext(path) {
	case ".js", ".mjs":
	default:
		return Result{}, fmt.Errorf("%s: %w", path, ErrNotScript)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read script: %w", err)
	}
	return r.Run(ctx, filepath.Base(path), string(src))
}

// Run evaluates source in a fresh runtime and then drives the frame loop.
func (r *Runner) Run(ctx context.Context, name, source string) (Result, error) {
	start := time.Now()
	res := Result{}

	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(context.Cause(ctx))
	})
	defer stop()

	if err := r.install(vm); err != nil {
		return res, err
	}

	prog, err := goja.Compile(name, source, false)
	if err != nil {
		return res, fmt.Errorf("compile %s: %w", name, err)
	}
	if _, err := vm.RunProgram(prog); err != nil {
		res.Duration = time.Since(start)
		return res, r.scriptError(ctx, name, err)
	}

	frames, err := r.frameLoop(ctx, vm, start)
	res.Frames = frames
	res.Duration = time.Since(start)
	if err != nil {
		return res, r.scriptError(ctx, name, err)
	}
	return res, nil
}

func (r *Runner) install(vm *goja.Runtime) error {
	installed, err := shim.Install(vm, r.env)
	if err != nil {
		return fmt.Errorf("install environment: %w", err)
	}
	if !installed {
		r.logger.Debug("interactive host detected, environment left untouched")
	}
	if err := installStdin(vm, r.bridge); err != nil {
		return fmt.Errorf("install stdin: %w", err)
	}
	if err := installConsole(vm, r.stdout, r.stderr); err != nil {
		return fmt.Errorf("install console: %w", err)
	}
	return nil
}

func (r *Runner) frameLoop(ctx context.Context, vm *goja.Runtime, start time.Time) (int, error) {
	if r.frameInterval <= 0 || r.frameFunc == "" {
		return 0, nil
	}

	ticker := time.NewTicker(r.frameInterval)
	defer ticker.Stop()

	frames := 0
	for {
		fn, ok := goja.AssertFunction(vm.Get(r.frameFunc))
		if !ok {
			if frames == 0 {
				r.logger.Debug("no frame function defined", "name", r.frameFunc)
			}
			return frames, nil
		}

		select {
		case <-ctx.Done():
			return frames, context.Cause(ctx)
		case <-ticker.C:
		}

		elapsed := float64(time.Since(start).Microseconds()) / 1000
		ret, err := fn(goja.Undefined(), vm.ToValue(elapsed))
		if err != nil {
			return frames, err
		}
		frames++
		if ret != nil && ret.StrictEquals(vm.ToValue(false)) {
			r.logger.Debug("frame loop finished", "frames", frames)
			return frames, nil
		}
	}
}

func (r *Runner) scriptError(ctx context.Context, name string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause := context.Cause(ctx); cause != nil {
			return fmt.Errorf("%s interrupted: %w", name, cause)
		}
		return fmt.Errorf("%s interrupted: %w", name, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s stopped: %w", name, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}
