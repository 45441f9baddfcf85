package stdinbridge

import (
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const readSize = 32 * 1024

// Listen starts the producer goroutine that reads r until EOF, delivering
// each read as a chunk and then closing the stream. The input is decoded as
// UTF-8: a rune split across two reads is reassembled and invalid bytes
// become U+FFFD. Listen returns immediately; only the first call on a bridge
// has any effect.
func (b *Bridge) Listen(r io.Reader) {
	if !b.listening.CompareAndSwap(false, true) {
		b.logger.Warn("stdin bridge already listening")
		return
	}
	go b.pump(transform.NewReader(r, unicode.UTF8.NewDecoder()))
}

func (b *Bridge) pump(r io.Reader) {
	buf := make([]byte, readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b.OnChunk(string(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.logger.Warn("stdin read failed, treating as end of stream", "error", err)
			}
			b.OnEnd()
			return
		}
	}
}
