package receiver

import (
	"io"
	"sync"
)

// ByteSource is the transport as the pipeline sees it: a non-blocking poll
// over whatever bytes have arrived. The underlying link (serial, BLE bridge)
// is a collaborator; only the byte stream crosses this boundary.
type ByteSource interface {
	// Poll copies up to len(p) available bytes into p. It never blocks;
	// (0, nil) means no bytes are currently available.
	Poll(p []byte) (int, error)
}

// Loopback is an in-memory ByteSource. The write side feeds bytes as a
// transport would; tests and the file bridge both use it.
type Loopback struct {
	mu  sync.Mutex
	buf []byte
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	return len(p), nil
}

func (l *Loopback) Poll(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) == 0 {
		return 0, nil
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

// Bridge pumps a blocking reader into a Loopback so the pipeline side stays
// non-blocking. It returns when the reader is exhausted or fails.
func Bridge(r io.Reader, l *Loopback) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = l.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
