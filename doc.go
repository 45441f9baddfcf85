// Package headless runs browser-targeted WebAssembly modules and JavaScript
// scripts without a browser.
//
// # Overview
//
// Guests compiled for the web probe window, document and screen at start-up,
// read their command line from Module.arguments and expect input to arrive as
// events. headless gives them inert stand-ins with a fixed 1280x720 viewport,
// a read-only argument view over the process arguments, and a stdin bridge
// that turns the host's standard input into a queue of lines the guest polls
// without blocking.
//
// # Basic Usage
//
//	env := shim.NewEnvironment(nil) // os.Args, minus program and script
//	bridge := stdinbridge.New()
//	bridge.Listen(os.Stdin)
//
//	// WebAssembly
//	exec, _ := executor.New(hostfunc.NewRegistry())
//	defer exec.Close()
//	mod, _ := executor.LoadModule("game.wasm")
//	result := exec.Run(ctx, mod,
//	    executor.WithEnvironment(env),
//	    executor.WithStdinBridge(bridge))
//
//	// JavaScript
//	runner := jsrun.New(env, bridge)
//	runner.RunFile(ctx, "game.js")
//
// A guest loop polls like this:
//
//	line, ok := bridge.TryReadLine()
//	switch {
//	case ok:
//	    handle(line)
//	case bridge.IsFinished():
//	    return
//	default:
//	    // nothing yet
//	}
//
// See the [shim], [stdinbridge], [executor], [hostfunc] and [jsrun]
// packages for detailed API documentation.
package headless
