package jsrun

import (
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"

	"github.com/caffeineduck/headless/stdinbridge"
)

// installStdin exposes the bridge as __stdin.tryReadLine() and
// __stdin.isFinished().
func installStdin(vm *goja.Runtime, bridge *stdinbridge.Bridge) error {
	obj := vm.NewObject()
	if err := obj.Set("tryReadLine", func(goja.FunctionCall) goja.Value {
		line, ok := bridge.TryReadLine()
		res := vm.NewObject()
		_ = res.Set("line", line)
		_ = res.Set("ok", ok)
		return res
	}); err != nil {
		return err
	}
	if err := obj.Set("isFinished", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(bridge.IsFinished())
	}); err != nil {
		return err
	}
	return vm.Set("__stdin", obj)
}

func installConsole(vm *goja.Runtime, stdout, stderr io.Writer) error {
	console := vm.NewObject()
	for name, w := range map[string]io.Writer{
		"log":   stdout,
		"info":  stdout,
		"warn":  stderr,
		"error": stderr,
	} {
		if err := console.Set(name, printer(w)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func printer(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fmt.Fprintln(w, joinArgs(call.Arguments))
		return goja.Undefined()
	}
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}
