// Package trust derives the rolling trust metrics from session history and
// link-quality samples.
package trust

import (
	"math"

	"github.com/danmuck/mfactl/internal/protocol"
	"github.com/danmuck/mfactl/internal/session"
)

const (
	// EntropyBaseline is the entropy of a uniform three-outcome
	// distribution, substituted whenever the measured value is
	// statistically meaningless.
	EntropyBaseline = 1.58

	// entropyColdStart is the minimum transition count before the
	// empirical distribution is trusted (three expected samples per state).
	entropyColdStart = 9

	// entropyLowSignal: a measured value below this is treated as
	// insufficient signal, not a legitimately low score.
	entropyLowSignal = 1.0

	entropyClampMax = 2.0

	// StabilityBaseline applies while the sample window is unseeded.
	StabilityBaseline = 0.85

	// stabilityMeanFloor keeps the coefficient of variation finite when
	// the window mean is near zero.
	stabilityMeanFloor = 0.1

	// SuccessBaseline applies before any session has completed.
	SuccessBaseline = 0.95

	weightEntropy   = 0.4
	weightStability = 0.3
	weightSuccess   = 0.3
)

// Snapshot is one recomputation of the three trust metrics. Derived on
// demand; it has no lifecycle beyond the call that produced it.
type Snapshot struct {
	DiversityEntropy float64 `json:"d_ec"`
	LinkStability    float64 `json:"bsss"`
	CompositeIndex   float64 `json:"imsi"`
}

// Compute derives a Snapshot from the current session and sample window.
// Given unchanged inputs the result is bit-identical across calls.
func Compute(s *session.Session, w *Window) Snapshot {
	dec := diversityEntropy(s.Histogram(), s.Transitions())
	bsss := linkStability(w)
	c := successRatio(s.Counters())
	return Snapshot{
		DiversityEntropy: dec,
		LinkStability:    bsss,
		CompositeIndex:   weightEntropy*dec + weightStability*bsss + weightSuccess*c,
	}
}

// diversityEntropy is the Shannon entropy of the empirical transition
// distribution across the three from-states, in bits. Below the cold-start
// threshold, or when the measurement lands under the low-signal floor, the
// uniform baseline is reported instead.
func diversityEntropy(hist [protocol.StateCount]uint64, total uint64) float64 {
	if total < entropyColdStart {
		return EntropyBaseline
	}
	var h float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		h -= p * math.Log2(p)
	}
	h = clamp(h, 0.0, entropyClampMax)
	if h < entropyLowSignal {
		return EntropyBaseline
	}
	return h
}

// linkStability is 1 minus the coefficient of variation of the sample
// window, clamped to [0, 1].
func linkStability(w *Window) float64 {
	if !w.Seeded() {
		return StabilityBaseline
	}
	mean := math.Abs(w.mean())
	if mean < stabilityMeanFloor {
		mean = stabilityMeanFloor
	}
	return clamp(1.0-w.stddev()/mean, 0.0, 1.0)
}

func successRatio(c session.Counters) float64 {
	if c.Total == 0 {
		return SuccessBaseline
	}
	return float64(c.Successful) / float64(c.Total)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
