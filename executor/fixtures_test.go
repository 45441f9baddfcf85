package executor

// Hand-assembled guests, small enough to read byte by byte.

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func wasm(sections ...[]byte) []byte {
	out := append([]byte{}, wasmHeader...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

// (module (memory (export "mem") 1))
var memoryOnlyWasm = wasm(
	// memory: min 1 page
	[]byte{0x05, 0x03, 0x01, 0x00, 0x01},
	// export "mem"
	[]byte{0x07, 0x07, 0x01, 0x03, 'm', 'e', 'm', 0x02, 0x00},
)

// (module (func (export "_start")))
var emptyStartWasm = wasm(
	// type () -> ()
	[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
	// func 0: type 0
	[]byte{0x03, 0x02, 0x01, 0x00},
	// export _start
	[]byte{0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00},
	// body: end
	[]byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b},
)

// (module (func (export "_start") (loop (br 0))))
var spinWasm = wasm(
	[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
	[]byte{0x03, 0x02, 0x01, 0x00},
	[]byte{0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00},
	[]byte{0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b},
)

// (module
//
//	(import "headless" "stdin_finished" (func $done (result i32)))
//	(func (export "_start") (loop (br_if 0 (i32.eqz (call $done))))))
var pollUntilFinishedWasm = wasm(
	[]byte{0x01, 0x08, 0x02, 0x60, 0x00, 0x01, 0x7f, 0x60, 0x00, 0x00},
	[]byte{0x02, 0x1b, 0x01,
		0x08, 'h', 'e', 'a', 'd', 'l', 'e', 's', 's',
		0x0e, 's', 't', 'd', 'i', 'n', '_', 'f', 'i', 'n', 'i', 's', 'h', 'e', 'd',
		0x00, 0x00},
	[]byte{0x03, 0x02, 0x01, 0x01},
	[]byte{0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01},
	[]byte{0x0a, 0x0c, 0x01, 0x0a, 0x00, 0x03, 0x40, 0x10, 0x00, 0x45, 0x0d, 0x00, 0x0b, 0x0b},
)

// Section builders for guests too long to count by hand.

func uleb(n uint32) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func vec(items ...[]byte) []byte {
	return concat(uleb(uint32(len(items))), concat(items...))
}

func wasmName(s string) []byte {
	return concat(uleb(uint32(len(s))), []byte(s))
}

func section(id byte, body []byte) []byte {
	return concat([]byte{id}, uleb(uint32(len(body))), body)
}

func funcBody(code ...byte) []byte {
	body := append([]byte{0x00}, code...) // no locals
	return concat(uleb(uint32(len(body))), body)
}

// hostImport is one import from the headless module and its type index in
// hostCallsWasm.
type hostImport struct {
	name string
	typ  byte
}

const (
	typeI32         = 0 // () -> i32
	typeF64         = 1 // () -> f64
	typeReadLine    = 2 // (i32, i32) -> i32
	hostCallsMemory = "memory"
)

var hostImports = []hostImport{
	{"stdin_line_len", typeI32},
	{"stdin_read_line", typeReadLine},
	{"stdin_finished", typeI32},
	{"window_inner_width", typeI32},
	{"window_inner_height", typeI32},
	{"window_device_pixel_ratio", typeF64},
	{"screen_width", typeI32},
	{"screen_height", typeI32},
}

// hostCallsWasm imports every headless function and re-exports each one
// under the same name through a wrapper that forwards its parameters, plus
// one page of memory exported as "memory".
var hostCallsWasm = func() []byte {
	types := section(0x01, vec(
		[]byte{0x60, 0x00, 0x01, 0x7f},
		[]byte{0x60, 0x00, 0x01, 0x7c},
		[]byte{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f},
	))

	var imports, funcs, exports, bodies [][]byte
	for i, imp := range hostImports {
		imports = append(imports, concat(wasmName(HostModuleName), wasmName(imp.name), []byte{0x00, imp.typ}))
		funcs = append(funcs, []byte{imp.typ})
		wrapper := uint32(len(hostImports) + i)
		exports = append(exports, concat(wasmName(imp.name), []byte{0x00}, uleb(wrapper)))

		var code []byte
		if imp.typ == typeReadLine {
			code = append(code, 0x20, 0x00, 0x20, 0x01) // local.get 0, local.get 1
		}
		code = append(code, 0x10)
		code = append(code, uleb(uint32(i))...) // call import i
		code = append(code, 0x0b)
		bodies = append(bodies, funcBody(code...))
	}
	exports = append(exports, concat(wasmName(hostCallsMemory), []byte{0x02, 0x00}))

	return wasm(
		types,
		section(0x02, vec(imports...)),
		section(0x03, vec(funcs...)),
		section(0x05, vec([]byte{0x00, 0x01})),
		section(0x07, vec(exports...)),
		section(0x0a, vec(bodies...)),
	)
}()
