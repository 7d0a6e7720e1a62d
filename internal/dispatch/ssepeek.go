package dispatch

import (
	"io"
	"time"
)

// peekSSE reads from r with a bounded deadline, classifying the stream
// empty if no bytes arrive within ~150ms. On success it returns the bytes
// already read so the caller can prepend them ahead of the rest of the body.
func peekSSE(r io.Reader, deadline time.Duration) (first []byte, rest io.Reader, empty bool) {
	type result struct {
		buf []byte
		n   int
		err error
	}
	ch := make(chan result, 1)
	buf := make([]byte, 4096)

	go func() {
		n, err := r.Read(buf)
		ch <- result{buf: buf, n: n, err: err}
	}()

	select {
	case res := <-ch:
		if res.n == 0 {
			return nil, r, true
		}
		return append([]byte(nil), res.buf[:res.n]...), r, false
	case <-time.After(deadline):
		return nil, r, true
	}
}

// prependReader re-emits previously-read bytes before continuing to read
// from the underlying body, and closes the body on Close.
type prependReader struct {
	prefix []byte
	offset int
	rest   io.Reader
	closer io.Closer
}

func newPrependReader(prefix []byte, rest io.Reader, closer io.Closer) io.ReadCloser {
	return &prependReader{prefix: prefix, rest: rest, closer: closer}
}

func (p *prependReader) Read(b []byte) (int, error) {
	if p.offset < len(p.prefix) {
		n := copy(b, p.prefix[p.offset:])
		p.offset += n
		return n, nil
	}
	return p.rest.Read(b)
}

func (p *prependReader) Close() error {
	return p.closer.Close()
}
