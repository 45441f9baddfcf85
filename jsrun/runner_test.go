package jsrun

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/headless/shim"
	"github.com/caffeineduck/headless/stdinbridge"
)

func newTestRunner(t *testing.T, bridge *stdinbridge.Bridge, opts ...Option) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	env := shim.NewEnvironment([]string{"headless", "game.js", "--seed", "7"})
	opts = append([]Option{WithStdout(&stdout), WithStderr(&stderr), WithFrameInterval(time.Millisecond)}, opts...)
	return New(env, bridge, opts...), &stdout, &stderr
}

func TestRunSeesEnvironment(t *testing.T) {
	r, stdout, _ := newTestRunner(t, nil)

	_, err := r.Run(context.Background(), "env.js", `
		console.log(window.innerWidth, window.innerHeight, window.devicePixelRatio);
		console.log(screen.width, screen.height);
		console.log(JSON.stringify(Module.arguments));
		console.log(document.getElementById("canvas") === null);
	`)
	require.NoError(t, err)
	assert.Equal(t, "1280 720 1\n1280 720\n[\"--seed\",\"7\"]\ntrue\n", stdout.String())
}

func TestConsoleStreams(t *testing.T) {
	r, stdout, stderr := newTestRunner(t, nil)

	_, err := r.Run(context.Background(), "console.js", `
		console.log("out", 1);
		console.info("info");
		console.warn("careful");
		console.error("bad", undefined, null);
	`)
	require.NoError(t, err)
	assert.Equal(t, "out 1\ninfo\n", stdout.String())
	assert.Equal(t, "careful\nbad undefined null\n", stderr.String())
}

func TestStdinPolling(t *testing.T) {
	b := stdinbridge.New()
	b.OnChunk("alpha\nbe")
	b.OnChunk("ta\n")
	b.OnChunk("gamma")
	b.OnEnd()

	r, stdout, _ := newTestRunner(t, b)
	_, err := r.Run(context.Background(), "drain.js", `
		for (;;) {
			const r = __stdin.tryReadLine();
			if (r.ok) { console.log("[" + r.line + "]"); continue; }
			if (__stdin.isFinished()) break;
		}
		const after = __stdin.tryReadLine();
		console.log(after.ok, JSON.stringify(after.line));
	`)
	require.NoError(t, err)
	assert.Equal(t, "[alpha]\n[beta]\n[gamma]\nfalse \"\"\n", stdout.String())
}

func TestStdinNoLineIsNotFinished(t *testing.T) {
	b := stdinbridge.New()
	b.OnChunk("partial")

	r, stdout, _ := newTestRunner(t, b)
	_, err := r.Run(context.Background(), "empty.js", `
		const r = __stdin.tryReadLine();
		console.log(r.ok, __stdin.isFinished());
	`)
	require.NoError(t, err)
	assert.Equal(t, "false false\n", stdout.String())
}

func TestFrameLoopStopsOnFalse(t *testing.T) {
	r, stdout, _ := newTestRunner(t, nil)

	res, err := r.Run(context.Background(), "frames.js", `
		let n = 0;
		function __frame(ts) {
			if (typeof ts !== "number") throw new Error("no timestamp");
			n++;
			if (n === 3) { console.log("done", n); return false; }
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, "done 3\n", stdout.String())
}

func TestFrameLoopReadsLinesAsTheyArrive(t *testing.T) {
	b := stdinbridge.New()
	r, stdout, _ := newTestRunner(t, b)

	go func() {
		for _, chunk := range []string{"one\n", "two\nthr", "ee\n"} {
			time.Sleep(5 * time.Millisecond)
			b.OnChunk(chunk)
		}
		b.OnEnd()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.Run(ctx, "poll.js", `
		function __frame() {
			const done = __stdin.isFinished();
			for (let r = __stdin.tryReadLine(); r.ok; r = __stdin.tryReadLine()) {
				console.log(r.line);
			}
			return !done;
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "one\ntwo\nthree\n", stdout.String())
}

func TestFrameLoopCustomName(t *testing.T) {
	r, stdout, _ := newTestRunner(t, nil, WithFrameFunc("tick"))

	res, err := r.Run(context.Background(), "tick.js", `
		function __frame() { console.log("wrong"); return false; }
		function tick() { console.log("tick"); return false; }
	`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frames)
	assert.Equal(t, "tick\n", stdout.String())
}

func TestFrameLoopDisabled(t *testing.T) {
	r, stdout, _ := newTestRunner(t, nil, WithFrameInterval(0))

	res, err := r.Run(context.Background(), "noloop.js", `
		function __frame() { console.log("frame"); }
		console.log("top");
	`)
	require.NoError(t, err)
	assert.Zero(t, res.Frames)
	assert.Equal(t, "top\n", stdout.String())
}

func TestFrameLoopEndsWhenFunctionRemoved(t *testing.T) {
	r, _, _ := newTestRunner(t, nil)

	res, err := r.Run(context.Background(), "remove.js", `
		var __frame = function () { __frame = undefined; };
	`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frames)
}

func TestFrameLoopStopsOnContext(t *testing.T) {
	r, _, _ := newTestRunner(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx, "forever.js", `function __frame() {}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, res.Frames)
}

func TestBusyScriptIsInterrupted(t *testing.T) {
	r, _, _ := newTestRunner(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, "spin.js", `for (;;) {}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "interrupted")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScriptErrors(t *testing.T) {
	r, _, _ := newTestRunner(t, nil)

	_, err := r.Run(context.Background(), "syntax.js", `function (`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile syntax.js")

	_, err = r.Run(context.Background(), "throw.js", `throw new Error("boom")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = r.Run(context.Background(), "frame-throw.js", `function __frame() { throw new Error("frame boom") }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame boom")
}

func TestModuleArgumentsWriteIgnored(t *testing.T) {
	r, stdout, _ := newTestRunner(t, nil)

	_, err := r.Run(context.Background(), "args.js", `
		Module.arguments = ["x"];
		console.log(Module.arguments.join(" "));
	`)
	require.NoError(t, err)
	assert.Equal(t, "--seed 7\n", stdout.String())
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.js")
	require.NoError(t, os.WriteFile(path, []byte(`console.log("hello from file")`), 0644))

	r, stdout, _ := newTestRunner(t, nil)
	_, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello from file\n", stdout.String())

	_, err = r.RunFile(context.Background(), filepath.Join(dir, "hello.wasm"))
	assert.ErrorIs(t, err, ErrNotScript)

	_, err = r.RunFile(context.Background(), filepath.Join(dir, "missing.js"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "read script"))
}
