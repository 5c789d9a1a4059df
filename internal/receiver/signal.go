package receiver

import "math/rand"

// SignalSource yields one link-quality sample per call, in dBm.
type SignalSource interface {
	Sample() float64
}

// SyntheticSource produces plausible dBm readings around a fixed center.
// It stands in for the radio's RSSI register, which is a collaborator; the
// deterministic seed keeps startup window contents reproducible.
type SyntheticSource struct {
	rng    *rand.Rand
	center float64
	spread float64
}

func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{
		rng:    rand.New(rand.NewSource(seed)),
		center: -58.0,
		spread: 4.0,
	}
}

func (s *SyntheticSource) Sample() float64 {
	return s.center + s.spread*(s.rng.Float64()*2-1)
}

// FixedSource always reports the same sample. Used in tests.
type FixedSource float64

func (f FixedSource) Sample() float64 {
	return float64(f)
}
