// Package session tracks authentication method history through a closed
// three-state automaton and the counters derived from it.
package session

import (
	"github.com/danmuck/mfactl/internal/protocol"
)

// Counters holds the monotonic session totals. Incremented once per
// processed event, success or failure; never reset while the process lives.
type Counters struct {
	Successful uint64
	Total      uint64
}

// ApplyResult describes what one event did to the automaton.
type ApplyResult struct {
	From         protocol.AuthState
	To           protocol.AuthState
	Transitioned bool
}

// Session is the owned authenticator context: current state, per-from-state
// transition histogram, and session counters. It is mutated by exactly one
// execution context; callers introducing concurrent ingestion must serialize
// around Apply.
type Session struct {
	state       protocol.AuthState
	histogram   [protocol.StateCount]uint64
	transitions uint64
	counters    Counters
}

func New() *Session {
	return &Session{state: protocol.StateInitial}
}

// Apply advances the automaton for one event. It is total over all method
// classifications: Unknown events count as failed sessions and leave the
// state and histogram untouched.
func (s *Session) Apply(ev protocol.AuthEvent) ApplyResult {
	s.counters.Total++
	from := s.state

	var next protocol.AuthState
	switch ev.Method {
	case protocol.MethodBiometric:
		next = protocol.StateBiometricVerified
	case protocol.MethodPin:
		next = protocol.StatePinVerified
	case protocol.MethodUnknown:
		return ApplyResult{From: from, To: from, Transitioned: false}
	default:
		return ApplyResult{From: from, To: from, Transitioned: false}
	}

	s.counters.Successful++
	s.histogram[from]++
	s.transitions++
	s.state = next
	return ApplyResult{From: from, To: next, Transitioned: true}
}

// RecordFailure counts a frame that produced no recognizable event.
func (s *Session) RecordFailure() {
	s.counters.Total++
}

func (s *Session) State() protocol.AuthState {
	return s.state
}

// Histogram returns per-from-state transition counts, indexed by AuthState.
func (s *Session) Histogram() [protocol.StateCount]uint64 {
	return s.histogram
}

func (s *Session) Transitions() uint64 {
	return s.transitions
}

func (s *Session) Counters() Counters {
	return s.counters
}
