package assembler

import (
	"bytes"
	"testing"
	"time"
)

func mustNew(t *testing.T, limits Limits) *Assembler {
	t.Helper()
	a, err := New(limits)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	return a
}

func TestFlushEmitsFrameAfterTimeout(t *testing.T) {
	a := mustNew(t, DefaultLimits())
	start := time.Unix(100, 0)

	payload := bytes.Repeat([]byte{0xAB}, MinFrameLen)
	for i, b := range payload {
		if got := a.Ingest(b, start.Add(time.Duration(i)*time.Millisecond)); got != IngestContinuing {
			t.Fatalf("ingest byte %d: got %v", i, got)
		}
	}

	// Timeout not yet elapsed: nothing to flush.
	if _, res := a.Flush(start.Add(100 * time.Millisecond)); res != FlushNone {
		t.Fatalf("early flush: got %v, want FlushNone", res)
	}

	frame, res := a.Flush(start.Add(2 * time.Second))
	if res != FlushFrame {
		t.Fatalf("flush: got %v, want FlushFrame", res)
	}
	if !bytes.Equal(frame, payload) {
		t.Fatalf("frame mismatch: got %x want %x", frame, payload)
	}
	if a.Len() != 0 {
		t.Fatalf("buffer not cleared after flush: len=%d", a.Len())
	}
}

func TestFlushDropsShortFrame(t *testing.T) {
	a := mustNew(t, DefaultLimits())
	now := time.Unix(100, 0)

	// One byte below minimum viable size.
	for i := 0; i < MinFrameLen-1; i++ {
		a.Ingest(0x01, now)
	}
	frame, res := a.Flush(now.Add(2 * time.Second))
	if res != FlushTooShort {
		t.Fatalf("flush: got %v, want FlushTooShort", res)
	}
	if frame != nil {
		t.Fatalf("short frame must not be emitted, got %d bytes", len(frame))
	}
	if a.Len() != 0 {
		t.Fatalf("buffer not cleared after short drop: len=%d", a.Len())
	}
}

func TestOverflowRaisedOnceAndResets(t *testing.T) {
	a := mustNew(t, DefaultLimits())
	now := time.Unix(100, 0)

	overflows := 0
	for i := 0; i < DefaultCapacity+1; i++ {
		if a.Ingest(byte(i), now) == IngestOverflow {
			overflows++
		}
	}
	if overflows != 1 {
		t.Fatalf("overflow count: got %d, want 1", overflows)
	}
	if a.Len() != 0 {
		t.Fatalf("buffer length after overflow: got %d, want 0", a.Len())
	}
}

func TestIngestAfterOverflowStartsFresh(t *testing.T) {
	a := mustNew(t, Limits{Capacity: 4, InterByteTimeout: 100 * time.Millisecond})
	now := time.Unix(100, 0)

	for i := 0; i < 5; i++ {
		a.Ingest(byte(i), now)
	}
	if a.Len() != 0 {
		t.Fatalf("expected reset after overflow, len=%d", a.Len())
	}
	if got := a.Ingest(0xFF, now); got != IngestContinuing {
		t.Fatalf("ingest after overflow: got %v", got)
	}
	if a.Len() != 1 {
		t.Fatalf("len after fresh ingest: got %d, want 1", a.Len())
	}
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	if _, err := New(Limits{Capacity: 0}); err != ErrInvalidCapacity {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
}
