// Package stdinbridge turns a chunked input stream into lines that a
// separate execution context can poll without ever blocking.
//
// A single producer goroutine (started by [Bridge.Listen]) feeds chunks into
// the bridge. Any number of consumers call [Bridge.TryReadLine] and
// [Bridge.IsFinished]; neither call waits. "No line right now" and "input
// finished" are reported separately so a poller can tell a pause from the
// end of input.
//
//	b := stdinbridge.New()
//	b.Listen(os.Stdin)
//
//	// on the polling side
//	if line, ok := b.TryReadLine(); ok {
//	    handle(line)
//	} else if b.IsFinished() {
//	    // no more input, ever
//	}
package stdinbridge

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/caffeineduck/headless/internal/logging"
)

// State is the bridge's position in its lifecycle.
type State int

const (
	// Streaming accepts chunks; the end-of-stream flag is false.
	Streaming State = iota
	// Finished is terminal: no further lines will be produced, though
	// queued lines may still be unread.
	Finished
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Bridge holds the line queue, the partial buffer and the end-of-stream latch.
type Bridge struct {
	mu      sync.Mutex
	lines   []string
	head    int
	partial strings.Builder

	finished  atomic.Bool
	done      chan struct{}
	listening atomic.Bool

	logger *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New returns a bridge in the Streaming state with an empty queue.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		done:   make(chan struct{}),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChunk appends text to the partial buffer and moves every complete line
// to the tail of the queue. Chunks that arrive after OnEnd are dropped.
func (b *Bridge) OnChunk(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished.Load() {
		b.logger.Debug("stdin chunk after end of stream ignored", "bytes", len(text))
		return
	}

	for {
		idx := strings.IndexByte(text, '\n')
		if idx == -1 {
			break
		}
		b.partial.WriteString(text[:idx])
		b.lines = append(b.lines, b.partial.String())
		b.partial.Reset()
		text = text[idx+1:]
	}
	b.partial.WriteString(text)
}

// OnEnd flushes an unterminated final line and latches the end-of-stream
// flag. Calling it again has no effect.
func (b *Bridge) OnEnd() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished.Load() {
		return
	}
	if b.partial.Len() > 0 {
		b.lines = append(b.lines, b.partial.String())
		b.partial.Reset()
	}
	b.finished.Store(true)
	close(b.done)
	b.logger.Debug("stdin closed", "queued", len(b.lines)-b.head)
}

// TryReadLine removes and returns the front line. ok is false when no line
// is currently buffered, which says nothing about whether more will come;
// check IsFinished for that.
func (b *Bridge) TryReadLine() (line string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == len(b.lines) {
		return "", false
	}
	return b.popLocked(), true
}

// PeekLine returns the front line without removing it.
func (b *Bridge) PeekLine() (line string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == len(b.lines) {
		return "", false
	}
	return b.lines[b.head], true
}

// TryReadLineN removes the front line only if it is at most max bytes long.
// size is the front line's length, or -1 when no line is buffered; ok is
// true only when the line was removed.
func (b *Bridge) TryReadLineN(max int) (line string, size int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == len(b.lines) {
		return "", -1, false
	}
	size = len(b.lines[b.head])
	if size > max {
		return "", size, false
	}
	return b.popLocked(), size, true
}

func (b *Bridge) popLocked() string {
	line := b.lines[b.head]
	b.lines[b.head] = ""
	b.head++
	switch {
	case b.head == len(b.lines):
		b.lines = b.lines[:0]
		b.head = 0
	case b.head > len(b.lines)/2:
		// Drop the consumed prefix so a queue that never drains stays bounded.
		n := copy(b.lines, b.lines[b.head:])
		clear(b.lines[n:])
		b.lines = b.lines[:n]
		b.head = 0
	}
	return line
}

// IsFinished reports whether the input stream has closed. Once true it
// stays true; lines may still be queued.
func (b *Bridge) IsFinished() bool {
	return b.finished.Load()
}

// Len returns the number of queued, unread lines.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines) - b.head
}

// State returns Streaming until the stream closes, then Finished.
func (b *Bridge) State() State {
	if b.finished.Load() {
		return Finished
	}
	return Streaming
}

// Done returns a channel closed when the bridge reaches Finished. It is for
// hosts that want to wait; pollers should use IsFinished.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}
