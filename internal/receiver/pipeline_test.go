package receiver

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/mfactl/internal/protocol/assembler"
	"github.com/danmuck/mfactl/internal/protocol/envelope"
	"github.com/danmuck/mfactl/internal/testutil/testlog"
)

func testKey() []byte {
	key := make([]byte, envelope.KeyLen)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newTestPipeline(t *testing.T, carry bool) *Pipeline {
	t.Helper()
	testlog.Start(t)
	p, err := NewPipeline(Options{
		Key:          testKey(),
		Limits:       assembler.DefaultLimits(),
		CarryPartial: carry,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

// sealFrame encrypts plaintext under tag 0x02 with a fixed IV.
func sealFrame(t *testing.T, plaintext []byte) []byte {
	t.Helper()
	iv := bytes.Repeat([]byte{0x33}, 16)
	ct, err := envelope.AES128CTR{}.Seal(testKey(), iv, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	frame := []byte{envelope.TagAES128}
	frame = append(frame, iv...)
	frame = append(frame, ct...)
	return frame
}

func feedFrame(p *Pipeline, frame []byte, start time.Time) time.Time {
	for i, b := range frame {
		p.OfferByte(b, start.Add(time.Duration(i)*time.Millisecond))
	}
	flushAt := start.Add(time.Duration(len(frame))*time.Millisecond + 2*time.Second)
	p.Tick(flushAt)
	return flushAt
}

func TestPipelineProcessesSingleEventFrame(t *testing.T) {
	p := newTestPipeline(t, false)
	feedFrame(p, sealFrame(t, []byte(`{"auth":"biometric"}`)), time.Unix(100, 0))

	r := p.Report()
	if r.State != "biometric_verified" {
		t.Fatalf("state: got %q", r.State)
	}
	if r.Total != 1 || r.Successful != 1 || r.Transitions != 1 {
		t.Fatalf("counters: %+v", r)
	}
}

func TestPipelineBackToBackObjectsInOrder(t *testing.T) {
	p := newTestPipeline(t, false)
	feedFrame(p, sealFrame(t, []byte(`{"auth":"biometric"}{"auth":"pin"}`)), time.Unix(100, 0))

	r := p.Report()
	// Second object processed last: the automaton must land on pin.
	if r.State != "pin_verified" {
		t.Fatalf("state: got %q", r.State)
	}
	if r.Transitions != 2 || r.Total != 2 {
		t.Fatalf("counters: %+v", r)
	}
}

func TestPipelineCountsDecryptFailure(t *testing.T) {
	p := newTestPipeline(t, false)
	// 18 bytes of zeros with a valid tag: transform succeeds, plaintext is
	// garbage, frame dropped and counted as a failed session.
	frame := make([]byte, 18)
	frame[0] = envelope.TagAES128
	feedFrame(p, frame, time.Unix(100, 0))

	r := p.Report()
	if r.Total != 1 || r.Successful != 0 {
		t.Fatalf("counters: %+v", r)
	}
	if r.State != "initial" {
		t.Fatalf("state moved on failure: %q", r.State)
	}
}

func TestPipelineDropsShortFrameSilently(t *testing.T) {
	p := newTestPipeline(t, false)
	frame := bytes.Repeat([]byte{0x01}, 17)
	feedFrame(p, frame, time.Unix(100, 0))

	r := p.Report()
	// Below minimum viable size: dropped before decryption, no session counted.
	if r.Total != 0 {
		t.Fatalf("short frame must not count a session: %+v", r)
	}
}

func TestPipelineUnknownMethodIsFailedSession(t *testing.T) {
	p := newTestPipeline(t, false)
	feedFrame(p, sealFrame(t, []byte(`{"auth":"voice"}`)), time.Unix(100, 0))

	r := p.Report()
	if r.Total != 1 || r.Successful != 0 || r.Transitions != 0 {
		t.Fatalf("counters: %+v", r)
	}
	if r.State != "initial" {
		t.Fatalf("state moved on unknown method: %q", r.State)
	}
}

func TestPipelineCarryPartialObjectAcrossFrames(t *testing.T) {
	p := newTestPipeline(t, true)
	at := feedFrame(p, sealFrame(t, []byte(`{"auth":"pin"}{"auth":"bio`)), time.Unix(100, 0))

	r := p.Report()
	if r.Total != 1 || r.Transitions != 1 {
		t.Fatalf("counters after first frame: %+v", r)
	}

	feedFrame(p, sealFrame(t, []byte(`metric"}`)), at.Add(time.Second))
	r = p.Report()
	if r.Total != 2 || r.Transitions != 2 {
		t.Fatalf("counters after continuation: %+v", r)
	}
	if r.State != "biometric_verified" {
		t.Fatalf("state: got %q", r.State)
	}
}

func TestPipelineRejectsOpenEndedPlaintextByDefault(t *testing.T) {
	p := newTestPipeline(t, false)
	// Without carry mode the trailing partial object fails the strict
	// plausibility check, so the whole frame counts as one failure.
	at := feedFrame(p, sealFrame(t, []byte(`{"auth":"pin"}{"auth":"bio`)), time.Unix(100, 0))
	feedFrame(p, sealFrame(t, []byte(`{"auth":"pin"}`)), at.Add(time.Second))

	r := p.Report()
	if r.Total != 2 || r.Successful != 1 || r.Transitions != 1 {
		t.Fatalf("counters: %+v", r)
	}
	if r.State != "pin_verified" {
		t.Fatalf("state: got %q", r.State)
	}
}

func TestPipelineDiscardsUnbalancedTrailingObject(t *testing.T) {
	p := newTestPipeline(t, false)
	// Ends with a close delimiter, so plausibility passes, but the second
	// object never balances and is discarded by the extractor.
	feedFrame(p, sealFrame(t, []byte(`{"auth":"pin"}{"nested":{"auth":"x"}`)), time.Unix(100, 0))

	r := p.Report()
	if r.Total != 1 || r.Transitions != 1 {
		t.Fatalf("counters: %+v", r)
	}
	if r.State != "pin_verified" {
		t.Fatalf("state: got %q", r.State)
	}
}

func TestPipelineReportIdempotentBetweenEvents(t *testing.T) {
	p := newTestPipeline(t, false)
	feedFrame(p, sealFrame(t, []byte(`{"auth":"biometric"}`)), time.Unix(100, 0))
	a := p.Report()
	b := p.Report()
	if a != b {
		t.Fatalf("reports differ with no intervening event: %+v vs %+v", a, b)
	}
}

func TestPipelineBaselineReportBeforeTraffic(t *testing.T) {
	p := newTestPipeline(t, false)
	r := p.Report()
	if r.DiversityEntropy != 1.58 {
		t.Fatalf("entropy baseline: got %v", r.DiversityEntropy)
	}
	if r.LinkStability != 0.85 {
		t.Fatalf("stability baseline: got %v", r.LinkStability)
	}
	want := 0.4*1.58 + 0.3*0.85 + 0.3*0.95
	if diff := r.CompositeIndex - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("composite baseline: got %v, want %v", r.CompositeIndex, want)
	}
}

func TestRunProcessesLoopbackBytes(t *testing.T) {
	testlog.Start(t)
	p, err := NewPipeline(Options{
		Key: testKey(),
		Limits: assembler.Limits{
			Capacity:         assembler.DefaultCapacity,
			InterByteTimeout: 20 * time.Millisecond,
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	src := NewLoopback()
	if _, err := src.Write(sealFrame(t, []byte(`{"auth":"pin"}`))); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err = p.Run(ctx, src, FixedSource(-60.0), LoopConfig{
		PollInterval:  2 * time.Millisecond,
		SignalRefresh: 50 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run: %v", err)
	}

	r := p.Report()
	if r.State != "pin_verified" || r.Transitions != 1 {
		t.Fatalf("report after run: %+v", r)
	}
}

func TestLoopbackPollDrains(t *testing.T) {
	l := NewLoopback()
	if _, err := l.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 2)
	n, err := l.Poll(buf)
	if err != nil || n != 2 {
		t.Fatalf("poll: n=%d err=%v", n, err)
	}
	n, err = l.Poll(buf)
	if err != nil || n != 1 {
		t.Fatalf("poll: n=%d err=%v", n, err)
	}
	n, err = l.Poll(buf)
	if err != nil || n != 0 {
		t.Fatalf("poll on empty: n=%d err=%v", n, err)
	}
}

func TestBridgePumpsReaderIntoLoopback(t *testing.T) {
	l := NewLoopback()
	if err := Bridge(bytes.NewReader([]byte("abc")), l); err != nil {
		t.Fatalf("bridge: %v", err)
	}
	buf := make([]byte, 8)
	n, _ := l.Poll(buf)
	if string(buf[:n]) != "abc" {
		t.Fatalf("poll after bridge: got %q", buf[:n])
	}
}

func TestSyntheticSourceIsDeterministicPerSeed(t *testing.T) {
	a := NewSyntheticSource(7)
	b := NewSyntheticSource(7)
	for i := 0; i < 20; i++ {
		sa, sb := a.Sample(), b.Sample()
		if sa != sb {
			t.Fatalf("sample %d diverged: %v vs %v", i, sa, sb)
		}
		if sa > -50.0 || sa < -66.0 {
			t.Fatalf("sample %d outside plausible dBm range: %v", i, sa)
		}
	}
}
