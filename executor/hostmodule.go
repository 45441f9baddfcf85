package executor

import (
	"context"
	"math"

	"github.com/caffeineduck/headless/shim"
	"github.com/caffeineduck/headless/stdinbridge"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HostModuleName is the import module guests use for the functions below.
const HostModuleName = "headless"

// Return codes for stdin_line_len and stdin_read_line.
const (
	ReadNone        int32 = -1 // no line buffered right now
	ReadShortBuffer int32 = -2 // front line longer than the buffer; left queued
	ReadOutOfRange  int32 = -3 // buffer outside guest memory
)

type runStateKey struct{}

// runState is the per-run environment host functions read from the call
// context. One host module serves every run on the runtime.
type runState struct {
	env    *shim.Environment
	bridge *stdinbridge.Bridge
}

func withRunState(ctx context.Context, st *runState) context.Context {
	return context.WithValue(ctx, runStateKey{}, st)
}

func runStateFrom(ctx context.Context) *runState {
	st, _ := ctx.Value(runStateKey{}).(*runState)
	return st
}

func instantiateHostModule(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().WithFunc(stdinLineLen).Export("stdin_line_len").
		NewFunctionBuilder().WithFunc(stdinReadLine).Export("stdin_read_line").
		NewFunctionBuilder().WithFunc(stdinFinished).Export("stdin_finished").
		NewFunctionBuilder().WithFunc(windowInnerWidth).Export("window_inner_width").
		NewFunctionBuilder().WithFunc(windowInnerHeight).Export("window_inner_height").
		NewFunctionBuilder().WithFunc(windowDevicePixelRatio).Export("window_device_pixel_ratio").
		NewFunctionBuilder().WithFunc(screenWidth).Export("screen_width").
		NewFunctionBuilder().WithFunc(screenHeight).Export("screen_height").
		Instantiate(ctx)
	return err
}

func stdinLineLen(ctx context.Context) int32 {
	st := runStateFrom(ctx)
	if st == nil {
		return ReadNone
	}
	line, ok := st.bridge.PeekLine()
	if !ok {
		return ReadNone
	}
	return clampInt32(len(line))
}

func stdinReadLine(ctx context.Context, m api.Module, ptr, capacity uint32) int32 {
	st := runStateFrom(ctx)
	if st == nil {
		return ReadNone
	}
	return readLineInto(st.bridge, m.Memory(), ptr, capacity)
}

// readLineInto copies the front line into guest memory at ptr and removes
// it from the queue. The line is only removed once it is known to fit.
func readLineInto(bridge *stdinbridge.Bridge, mem api.Memory, ptr, capacity uint32) int32 {
	if mem == nil || uint64(ptr)+uint64(capacity) > uint64(mem.Size()) {
		return ReadOutOfRange
	}
	line, size, ok := bridge.TryReadLineN(int(capacity))
	switch {
	case size < 0:
		return ReadNone
	case !ok:
		return ReadShortBuffer
	}
	mem.Write(ptr, []byte(line))
	return clampInt32(size)
}

func stdinFinished(ctx context.Context) int32 {
	st := runStateFrom(ctx)
	if st == nil || st.bridge.IsFinished() {
		return 1
	}
	return 0
}

func windowInnerWidth(ctx context.Context) int32 {
	if st := runStateFrom(ctx); st != nil {
		return int32(st.env.Window.InnerWidth)
	}
	return shim.ViewportWidth
}

func windowInnerHeight(ctx context.Context) int32 {
	if st := runStateFrom(ctx); st != nil {
		return int32(st.env.Window.InnerHeight)
	}
	return shim.ViewportHeight
}

func windowDevicePixelRatio(ctx context.Context) float64 {
	if st := runStateFrom(ctx); st != nil {
		return st.env.Window.DevicePixelRatio
	}
	return shim.DevicePixelRatio
}

func screenWidth(ctx context.Context) int32 {
	if st := runStateFrom(ctx); st != nil {
		return int32(st.env.Screen.Width)
	}
	return shim.ViewportWidth
}

func screenHeight(ctx context.Context) int32 {
	if st := runStateFrom(ctx); st != nil {
		return int32(st.env.Screen.Height)
	}
	return shim.ViewportHeight
}

func clampInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
