package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/caffeineduck/headless/hostfunc"
	"github.com/caffeineduck/headless/stdinbridge"
)

type protocolFixture struct {
	handler *protocolHandler
	stderr  *bytes.Buffer
	replies *bufio.Reader
}

func newProtocolFixture(t *testing.T, registry *hostfunc.Registry) *protocolFixture {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	stderr := &bytes.Buffer{}
	return &protocolFixture{
		handler: newProtocolHandler(context.Background(), registry, pw, stderr),
		stderr:  stderr,
		replies: bufio.NewReader(pr),
	}
}

func (f *protocolFixture) reply(t *testing.T) callResponse {
	t.Helper()
	type read struct {
		line string
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		line, err := f.replies.ReadString('\n')
		ch <- read{line, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read reply: %v", r.err)
		}
		var resp callResponse
		if err := json.Unmarshal([]byte(r.line), &resp); err != nil {
			t.Fatalf("decode reply %q: %v", r.line, err)
		}
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
		return callResponse{}
	}
}

func TestProtocolStdinCalls(t *testing.T) {
	bridge := stdinbridge.New()
	bridge.OnChunk("line one\n")

	registry := hostfunc.NewRegistry()
	hostfunc.NewStdin(bridge).Register(registry)
	f := newProtocolFixture(t, registry)

	f.handler.Write([]byte("before" + protocolPrefix + `{"fn":"stdin_read_line","args":{}}` + protocolSuffix + "after"))
	resp := f.reply(t)
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	data := resp.Data.(map[string]any)
	if data["line"] != "line one" || data["ok"] != true {
		t.Errorf("unexpected reply %+v", data)
	}

	f.handler.Write([]byte(protocolPrefix + `{"fn":"stdin_read_line"}` + protocolSuffix))
	data = f.reply(t).Data.(map[string]any)
	if data["ok"] != false {
		t.Errorf("expected ok=false on empty queue, got %+v", data)
	}

	f.handler.Write([]byte(protocolPrefix + `{"fn":"stdin_finished"}` + protocolSuffix))
	if got := f.reply(t).Data; got != false {
		t.Errorf("stdin_finished = %v, want false", got)
	}

	f.handler.Flush()
	if got := f.stderr.String(); got != "beforeafter" {
		t.Errorf("stderr passthrough = %q", got)
	}
}

func TestProtocolSplitAcrossWrites(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args["v"], nil
	})
	f := newProtocolFixture(t, registry)

	msg := "x" + protocolPrefix + `{"fn":"echo","args":{"v":"hi"}}` + protocolSuffix + "y"
	for i := 0; i < len(msg); i++ {
		f.handler.Write([]byte{msg[i]})
	}

	if got := f.reply(t).Data; got != "hi" {
		t.Errorf("echo = %v, want hi", got)
	}
	f.handler.Flush()
	if got := f.stderr.String(); got != "xy" {
		t.Errorf("stderr passthrough = %q, want xy", got)
	}
}

func TestProtocolRepliesKeepOrder(t *testing.T) {
	bridge := stdinbridge.New()
	bridge.OnChunk("a\nb\nc\n")

	registry := hostfunc.NewRegistry()
	hostfunc.NewStdin(bridge).Register(registry)
	f := newProtocolFixture(t, registry)

	call := protocolPrefix + `{"fn":"stdin_read_line"}` + protocolSuffix
	f.handler.Write([]byte(call + call + call))

	for _, want := range []string{"a", "b", "c"} {
		data := f.reply(t).Data.(map[string]any)
		if data["line"] != want {
			t.Errorf("line = %v, want %s", data["line"], want)
		}
	}
}

func TestProtocolErrors(t *testing.T) {
	f := newProtocolFixture(t, hostfunc.NewRegistry())

	f.handler.Write([]byte(protocolPrefix + `{"fn":"nope"}` + protocolSuffix))
	if got := f.reply(t).Error; got != "unknown function: nope" {
		t.Errorf("unexpected error %q", got)
	}

	f.handler.Write([]byte(protocolPrefix + `{invalid}` + protocolSuffix))
	if got := f.reply(t).Error; got != "invalid call format" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestPartialPrefixLen(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"plain", 0},
		{"text\x00", 1},
		{"text\x00HEAD", 5},
		{"\x00HEADLESS", 9},
		{"HEAD", 0},
	}
	for _, tc := range tests {
		if got := partialPrefixLen(tc.in); got != tc.want {
			t.Errorf("partialPrefixLen(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
