package process

import (
	"bytes"
	"io"
	"sync"
)

// prefixWriter prefixes every complete output line before forwarding it.
// Partial lines are buffered until their newline arrives; Flush emits any
// remainder with the prefix.
type prefixWriter struct {
	mu     sync.Mutex
	w      io.Writer
	prefix []byte
	buf    []byte
}

func newPrefixWriter(w io.Writer, prefix string) *prefixWriter {
	return &prefixWriter{w: w, prefix: []byte(prefix)}
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = append(p.buf, b...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := p.buf[:i+1]
		if _, err := p.w.Write(append(append([]byte(nil), p.prefix...), line...)); err != nil {
			return len(b), err
		}
		p.buf = p.buf[i+1:]
	}
	return len(b), nil
}

// Flush writes any buffered partial line, prefixed, with a trailing newline.
func (p *prefixWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	out := append(append([]byte(nil), p.prefix...), p.buf...)
	out = append(out, '\n')
	p.buf = nil
	_, err := p.w.Write(out)
	return err
}
