package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Module is a WebAssembly guest the executor can run.
type Module interface {
	// Name returns a unique identifier for this module.
	// Used as the cache key for compiled modules and as the guest's argv[0].
	Name() string

	// Binary returns the WASM bytes.
	Binary() []byte
}

type bytesModule struct {
	name   string
	binary []byte
}

func (m *bytesModule) Name() string   { return m.name }
func (m *bytesModule) Binary() []byte { return m.binary }

// NewModule wraps an in-memory WASM binary.
func NewModule(name string, binary []byte) Module {
	return &bytesModule{name: name, binary: binary}
}

// LoadModule reads a .wasm file from disk. The module is named by its
// absolute path so two files with the same base name do not share a cache
// entry.
func LoadModule(path string) (Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if !strings.EqualFold(filepath.Ext(abs), ".wasm") {
		return nil, fmt.Errorf("%s: not a .wasm file", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return NewModule(abs, data), nil
}
