package assembler

import (
	"errors"
	"time"
)

const (
	// DefaultCapacity bounds one in-flight frame. Exceeding it is an
	// overflow fault, never a silent truncation.
	DefaultCapacity = 256

	// MinFrameLen is the smallest frame that can possibly decode:
	// algorithm tag + largest nonce + one ciphertext byte.
	MinFrameLen = 18

	// DefaultInterByteTimeout delimits frames on the wire. The transport
	// has no framing of its own; a gap in the byte stream is the boundary.
	DefaultInterByteTimeout = 500 * time.Millisecond
)

var ErrInvalidCapacity = errors.New("assembler: capacity must be positive")

// IngestResult reports the outcome of feeding one byte.
type IngestResult uint8

const (
	IngestContinuing IngestResult = iota
	IngestOverflow
)

// FlushResult reports the outcome of a timeout check.
type FlushResult uint8

const (
	FlushNone FlushResult = iota
	FlushFrame
	FlushTooShort
)

// Limits constrains assembler memory use and timing.
type Limits struct {
	Capacity         int
	InterByteTimeout time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		Capacity:         DefaultCapacity,
		InterByteTimeout: DefaultInterByteTimeout,
	}
}

// Assembler accumulates raw transport bytes into one bounded frame.
// It owns its buffer until a flush hands the frame downstream.
type Assembler struct {
	limits   Limits
	buf      []byte
	lastByte time.Time
}

func New(limits Limits) (*Assembler, error) {
	if limits.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if limits.InterByteTimeout <= 0 {
		limits.InterByteTimeout = DefaultInterByteTimeout
	}
	return &Assembler{
		limits: limits,
		buf:    make([]byte, 0, limits.Capacity),
	}, nil
}

// Ingest appends one byte at the given instant. On overflow the in-flight
// frame is lost and the buffer resets; the caller decides how to report it.
func (a *Assembler) Ingest(b byte, now time.Time) IngestResult {
	if len(a.buf) >= a.limits.Capacity {
		a.Reset()
		return IngestOverflow
	}
	a.buf = append(a.buf, b)
	a.lastByte = now
	return IngestContinuing
}

// Flush is the time-driven half of framing: if the buffer is non-empty and
// the inter-byte timeout has elapsed, the buffered bytes are emitted as one
// completed frame and the buffer clears. Frames below MinFrameLen cannot
// decode and are dropped here rather than passed downstream.
func (a *Assembler) Flush(now time.Time) ([]byte, FlushResult) {
	if len(a.buf) == 0 {
		return nil, FlushNone
	}
	if now.Sub(a.lastByte) < a.limits.InterByteTimeout {
		return nil, FlushNone
	}
	frame := a.buf
	a.buf = make([]byte, 0, a.limits.Capacity)
	if len(frame) < MinFrameLen {
		return nil, FlushTooShort
	}
	return frame, FlushFrame
}

// Reset drops any in-flight bytes. This is the only abort primitive.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}

// Len reports the current in-flight byte count.
func (a *Assembler) Len() int {
	return len(a.buf)
}
