// Package executor runs WebAssembly modules headlessly under wazero.
//
// # Overview
//
// The executor manages WASM module compilation, caching, and execution.
// A module written for an interactive graphical host gets inert stand-ins
// for its window, document and screen probes and reads process stdin by
// polling instead of blocking.
//
// # Basic Usage
//
//	exec, err := executor.New(hostfunc.NewRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	env := shim.NewEnvironment(nil)
//	bridge := stdinbridge.New()
//	bridge.Listen(os.Stdin)
//
//	mod, _ := executor.LoadModule("game.wasm")
//	result := exec.Run(ctx, mod,
//	    executor.WithEnvironment(env),
//	    executor.WithStdinBridge(bridge),
//	    executor.WithStdout(os.Stdout))
//
// # Host Imports
//
// Guests import these from the "headless" module. None of them block.
//
//	stdin_line_len() i32                 front line length, -1 if none
//	stdin_read_line(ptr, cap u32) i32    copy and remove front line;
//	                                     -1 none, -2 buffer too small, -3 bad range
//	stdin_finished() i32                 1 once stdin has closed
//	window_inner_width() i32             1280
//	window_inner_height() i32            720
//	window_device_pixel_ratio() f64      1
//	screen_width() i32                   1280
//	screen_height() i32                  720
//
// A line that does not fit stays queued, so a guest can call
// stdin_line_len, grow its buffer and retry.
//
// # Call Protocol
//
// Guests without custom imports can call registry functions by writing
// \x00HEADLESS:{"fn":"stdin_read_line","args":{}}\x00 to stderr and reading
// one JSON line from stdin. Built-in functions are stdin_read_line,
// stdin_finished, env_args, window_info and time_now.
package executor
