package protocol

import "time"

// Method classifies the authentication method carried by one event.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodBiometric
	MethodPin
)

func (m Method) String() string {
	switch m {
	case MethodBiometric:
		return "biometric"
	case MethodPin:
		return "pin"
	default:
		return "unknown"
	}
}

// AuthState is the authenticator automaton state. The set is closed:
// adding a state requires touching every switch over it.
type AuthState uint8

const (
	StateInitial AuthState = iota
	StateBiometricVerified
	StatePinVerified

	// StateCount sizes histogram arrays indexed by AuthState.
	StateCount = 3
)

func (s AuthState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateBiometricVerified:
		return "biometric_verified"
	case StatePinVerified:
		return "pin_verified"
	default:
		return "invalid"
	}
}

// AuthEvent is one recognized authentication attempt. Immutable once
// created; consumed exactly once by the session tracker.
type AuthEvent struct {
	Method     Method
	ObservedAt time.Time
}
