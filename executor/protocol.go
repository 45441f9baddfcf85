package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/headless/hostfunc"
)

// Protocol constants - used by guests to call registry functions.
// Format: \x00HEADLESS:{json}\x00 on stderr; the JSON response arrives as
// one line on the guest's stdin.
const (
	protocolPrefix = "\x00HEADLESS:"
	protocolSuffix = "\x00"
)

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler intercepts stderr to handle host function calls.
// Regular stderr output passes through; protocol messages trigger host calls.
type protocolHandler struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter io.Writer
	stderr      io.Writer
	buf         bytes.Buffer
	mu          sync.Mutex
	writeMu     sync.Mutex
}

func newProtocolHandler(ctx context.Context, registry *hostfunc.Registry, stdinWriter, stderr io.Writer) *protocolHandler {
	return &protocolHandler{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
		stderr:      stderr,
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	var replies []callResponse
	for {
		content := p.buf.String()
		startIdx := strings.Index(content, protocolPrefix)
		if startIdx == -1 {
			// Hold back a tail that could be the start of a split prefix.
			keep := partialPrefixLen(content)
			p.stderr.Write([]byte(content[:len(content)-keep]))
			p.buf.Reset()
			p.buf.WriteString(content[len(content)-keep:])
			break
		}

		p.stderr.Write([]byte(content[:startIdx]))

		payloadStart := startIdx + len(protocolPrefix)
		endIdx := strings.Index(content[payloadStart:], protocolSuffix)
		if endIdx == -1 {
			p.buf.Reset()
			p.buf.WriteString(content[startIdx:])
			break
		}

		jsonStr := content[payloadStart : payloadStart+endIdx]
		p.buf.Reset()
		p.buf.WriteString(content[payloadStart+endIdx+len(protocolSuffix):])

		var req callRequest
		if err := json.Unmarshal([]byte(jsonStr), &req); err != nil {
			replies = append(replies, callResponse{Error: "invalid call format"})
			continue
		}
		replies = append(replies, p.handleCall(req))
	}

	// Respond off the write path: the guest reads replies only after this
	// Write returns. Replies to calls in one write keep their order.
	if len(replies) > 0 {
		go p.respond(replies...)
	}

	return len(data), nil
}

// partialPrefixLen returns how many trailing bytes of s are a proper prefix
// of protocolPrefix.
func partialPrefixLen(s string) int {
	for n := min(len(protocolPrefix)-1, len(s)); n > 0; n-- {
		if strings.HasPrefix(protocolPrefix, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

func (p *protocolHandler) respond(replies ...callResponse) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	for _, resp := range replies {
		data, err := json.Marshal(resp)
		if err != nil {
			data = []byte(`{"error":"internal: failed to marshal response"}`)
		}
		if _, err := p.stdinWriter.Write(append(data, '\n')); err != nil {
			return
		}
	}
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

// Flush writes any held-back stderr bytes.
func (p *protocolHandler) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() > 0 {
		p.stderr.Write(p.buf.Bytes())
		p.buf.Reset()
	}
}
