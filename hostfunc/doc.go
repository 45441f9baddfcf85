// Package hostfunc provides host functions callable from headless guests.
//
// Host functions are Go functions a guest module invokes by name through the
// executor's call protocol. They are how a guest that cannot block or touch
// the process's standard streams reaches stdin and the environment
// stand-ins.
//
// # Registry
//
// The [Registry] manages available host functions. Register custom functions
// or use the built-in helpers:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("my_func", func(ctx context.Context, args map[string]any) (any, error) {
//	    return "result", nil
//	})
//
// # Built-in Functions
//
// Stdin: non-blocking line polling via [Stdin].
//
//	bridge := stdinbridge.New()
//	bridge.Listen(os.Stdin)
//	hostfunc.NewStdin(bridge).Register(registry)
//	// stdin_read_line -> {"line": "...", "ok": true}
//	// stdin_finished  -> false
//
// Environment: argument view and window geometry via [Env].
//
//	hostfunc.NewEnv(shim.NewEnvironment(nil)).Register(registry)
//	// env_args    -> ["--level", "4"]
//	// window_info -> {"inner_width": 1280, ...}
//
// See the executor package for the APIs that wire these up per run.
package hostfunc
