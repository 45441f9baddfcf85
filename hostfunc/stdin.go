package hostfunc

import (
	"context"

	"github.com/caffeineduck/headless/stdinbridge"
)

// Stdin exposes a stdin bridge to guests. Neither function blocks.
type Stdin struct {
	bridge *stdinbridge.Bridge
}

func NewStdin(bridge *stdinbridge.Bridge) *Stdin {
	return &Stdin{bridge: bridge}
}

// ReadLine pops the next buffered line. ok=false means nothing is buffered
// right now; Finished says whether anything more can arrive.
func (s *Stdin) ReadLine(ctx context.Context, args map[string]any) (any, error) {
	line, ok := s.bridge.TryReadLine()
	return StdinLine{Line: line, OK: ok}, nil
}

func (s *Stdin) Finished(ctx context.Context, args map[string]any) (any, error) {
	return s.bridge.IsFinished(), nil
}

// Register installs stdin_read_line and stdin_finished.
func (s *Stdin) Register(r *Registry) {
	r.Register("stdin_read_line", s.ReadLine)
	r.Register("stdin_finished", s.Finished)
}
