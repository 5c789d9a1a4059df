package receiver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/mfactl/internal/observability"
	"github.com/danmuck/mfactl/internal/protocol/assembler"
	"github.com/danmuck/mfactl/internal/protocol/envelope"
	"github.com/danmuck/mfactl/internal/protocol/event"
	"github.com/danmuck/mfactl/internal/session"
	"github.com/danmuck/mfactl/internal/trust"
)

// Frame processing outcomes, one logged per completed frame.
const (
	OutcomeOK            = "ok"
	OutcomeTooShort      = "too_short"
	OutcomeDecryptFailed = "decrypt_failed"
	OutcomeNoEvent       = "no_event"
	OutcomeOverflow      = "overflow"
	OutcomeCarried       = "carried"
)

// Options configures one Pipeline.
type Options struct {
	Key          []byte
	Limits       assembler.Limits
	Registry     *envelope.Registry
	CarryPartial bool
	Logger       zerolog.Logger
}

// Report is the externally observable metrics record exposed after each
// processed event.
type Report struct {
	State            string  `json:"state"`
	DiversityEntropy float64 `json:"d_ec"`
	LinkStability    float64 `json:"bsss"`
	CompositeIndex   float64 `json:"imsi"`
	Successful       uint64  `json:"successful_sessions"`
	Total            uint64  `json:"total_sessions"`
	Transitions      uint64  `json:"total_transitions"`
}

// Pipeline owns the whole receiver context: assembler, cipher registry,
// authenticator session, and sample window. One logical thread of control
// drives it; the mutex only serializes status reads against that thread.
type Pipeline struct {
	mu     sync.Mutex
	asm    *assembler.Assembler
	reg    *envelope.Registry
	key    []byte
	sess   *session.Session
	window *trust.Window
	logger zerolog.Logger

	carryEnabled bool
	carry        []byte
	carryMax     int

	latest trust.Snapshot
}

func NewPipeline(opts Options) (*Pipeline, error) {
	asm, err := assembler.New(opts.Limits)
	if err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = envelope.DefaultRegistry()
	}
	p := &Pipeline{
		asm:          asm,
		reg:          reg,
		key:          opts.Key,
		sess:         session.New(),
		window:       trust.NewWindow(),
		logger:       opts.Logger,
		carryEnabled: opts.CarryPartial,
		carryMax:     2 * opts.Limits.Capacity,
	}
	p.latest = trust.Compute(p.sess, p.window)
	return p, nil
}

// SeedWindow fills the sample window at startup so the stability score
// never runs on an empty window.
func (p *Pipeline) SeedWindow(src SignalSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.window.Seed(src.Sample)
	p.latest = trust.Compute(p.sess, p.window)
}

// RefreshSignal pushes one link-quality sample into the window.
func (p *Pipeline) RefreshSignal(sample float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.window.Push(sample)
}

// OfferByte feeds one transport byte into the assembler.
func (p *Pipeline) OfferByte(b byte, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.asm.Ingest(b, now) == assembler.IngestOverflow {
		p.logger.Warn().Str("outcome", OutcomeOverflow).Msg("frame dropped: buffer overflow")
		observability.RecordFrame(OutcomeOverflow)
	}
}

// Tick runs the time-driven framing check. A completed frame flows through
// the whole pipeline before Tick returns.
func (p *Pipeline) Tick(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame, res := p.asm.Flush(now)
	switch res {
	case assembler.FlushNone:
		return
	case assembler.FlushTooShort:
		p.logger.Debug().Str("outcome", OutcomeTooShort).Msg("frame dropped: below minimum size")
		observability.RecordFrame(OutcomeTooShort)
	case assembler.FlushFrame:
		p.processFrame(frame, now)
	}
}

// processFrame runs unwrap, extract, apply, and score for one frame.
// Every fault is local to the frame; the pipeline restarts at the next byte.
func (p *Pipeline) processFrame(frame []byte, now time.Time) {
	check := envelope.CheckStrict
	if p.carryEnabled {
		// Frames may split objects at arbitrary points in carry mode, so
		// the trailing-delimiter requirement cannot hold.
		check = envelope.CheckOpenOnly
		if len(p.carry) > 0 {
			check = envelope.CheckNone
		}
	}
	plaintext, err := envelope.UnwrapWithCheck(frame, p.key, p.reg, check)
	if err != nil {
		p.sess.RecordFailure()
		p.carry = nil
		p.logger.Warn().Err(err).Str("outcome", OutcomeDecryptFailed).
			Int("frame_len", len(frame)).Msg("frame dropped: unwrap failed")
		observability.RecordFrame(OutcomeDecryptFailed)
		return
	}

	if len(p.carry) > 0 {
		plaintext = append(p.carry, plaintext...)
		p.carry = nil
	}

	events, remainder := event.Extract(plaintext, now)
	if p.carryEnabled && len(remainder) > 0 {
		if len(remainder) > p.carryMax {
			p.logger.Warn().Int("carry_len", len(remainder)).
				Msg("carried object exceeds bound, dropped")
		} else {
			p.carry = append([]byte(nil), remainder...)
		}
	}

	if len(events) == 0 {
		if len(p.carry) > 0 {
			// The frame fed an in-flight object, not garbage.
			p.logger.Debug().Str("outcome", OutcomeCarried).
				Int("carry_len", len(p.carry)).Msg("frame carried partial object")
			observability.RecordFrame(OutcomeCarried)
			return
		}
		p.sess.RecordFailure()
		p.logger.Warn().Str("outcome", OutcomeNoEvent).Msg("frame dropped: no recognizable event")
		observability.RecordFrame(OutcomeNoEvent)
		return
	}

	for _, ev := range events {
		res := p.sess.Apply(ev)
		p.latest = trust.Compute(p.sess, p.window)
		observability.RecordEvent(ev.Method.String(), res.Transitioned)
		observability.RecordTrust(p.latest.DiversityEntropy, p.latest.LinkStability, p.latest.CompositeIndex)

		p.logger.Info().
			Str("method", ev.Method.String()).
			Str("state", p.sess.State().String()).
			Float64("d_ec", p.latest.DiversityEntropy).
			Float64("bsss", p.latest.LinkStability).
			Float64("imsi", p.latest.CompositeIndex).
			Uint64("transitions", p.sess.Transitions()).
			Msg("auth_event")
	}

	p.logger.Info().Str("outcome", OutcomeOK).Int("events", len(events)).Msg("frame processed")
	observability.RecordFrame(OutcomeOK)
}

// Report returns the current metrics record.
func (p *Pipeline) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.sess.Counters()
	return Report{
		State:            p.sess.State().String(),
		DiversityEntropy: p.latest.DiversityEntropy,
		LinkStability:    p.latest.LinkStability,
		CompositeIndex:   p.latest.CompositeIndex,
		Successful:       c.Successful,
		Total:            c.Total,
		Transitions:      p.sess.Transitions(),
	}
}

// LoopConfig times the cooperative poll loop.
type LoopConfig struct {
	PollInterval  time.Duration
	SignalRefresh time.Duration
}

// Run drives the pipeline until the context is cancelled. Two independent
// triggers feed one state machine: byte availability and elapsed time.
func (p *Pipeline) Run(ctx context.Context, src ByteSource, sig SignalSource, cfg LoopConfig) error {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.SignalRefresh <= 0 {
		cfg.SignalRefresh = time.Second
	}

	poll := time.NewTicker(cfg.PollInterval)
	defer poll.Stop()
	refresh := time.NewTicker(cfg.SignalRefresh)
	defer refresh.Stop()

	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			p.RefreshSignal(sig.Sample())
		case now := <-poll.C:
			n, err := src.Poll(buf)
			if err != nil {
				return err
			}
			for _, b := range buf[:n] {
				p.OfferByte(b, now)
			}
			p.Tick(now)
		}
	}
}
