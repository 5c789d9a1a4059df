package envelope

import (
	"errors"
	"fmt"
)

// Algorithm tags from the wire contract.
const (
	TagStreamA uint8 = 0x01 // stream cipher, 12-byte nonce
	TagAES128  uint8 = 0x02 // AES-128 class, 16-byte IV
)

var (
	ErrUnsupportedAlgorithm = errors.New("envelope: unsupported algorithm tag")
	ErrTruncated            = errors.New("envelope: frame shorter than tag+nonce")
	ErrImplausiblePlaintext = errors.New("envelope: plaintext fails delimiter plausibility check")
)

// Envelope is the {tag, nonce/IV, ciphertext} decomposition of one frame.
type Envelope struct {
	Tag        uint8
	Nonce      []byte
	Ciphertext []byte
}

// Parse splits a completed frame into its envelope parts using the cipher
// registered for the tag byte. The frame must carry at least one
// ciphertext byte beyond tag and nonce.
func Parse(frame []byte, reg *Registry) (Envelope, Cipher, error) {
	if len(frame) == 0 {
		return Envelope{}, nil, fmt.Errorf("%w: empty frame", ErrTruncated)
	}
	tag := frame[0]
	c, ok := reg.Resolve(tag)
	if !ok {
		return Envelope{}, nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedAlgorithm, tag)
	}
	nonceLen := c.NonceLen()
	if len(frame) < 1+nonceLen+1 {
		return Envelope{}, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, 1+nonceLen+1, len(frame))
	}
	return Envelope{
		Tag:        tag,
		Nonce:      frame[1 : 1+nonceLen],
		Ciphertext: frame[1+nonceLen:],
	}, c, nil
}

// Unwrap decrypts one frame and validates that the result is plausibly a
// structured payload. A wrong key or algorithm produces garbage that must
// never reach the parser, so plaintext not bounded by object delimiters is
// rejected even when the cipher transform itself succeeded.
func Unwrap(frame []byte, key []byte, reg *Registry) ([]byte, error) {
	return UnwrapWithCheck(frame, key, reg, CheckStrict)
}

// Check selects the plaintext plausibility contract applied after
// decryption. Strict requires object delimiters at both ends; the relaxed
// modes exist for carry-over operation, where a frame may legitimately
// begin or end mid-object.
type Check uint8

const (
	CheckStrict   Check = iota // delimiter-bounded at both ends
	CheckOpenOnly              // leading delimiter only
	CheckNone                  // continuation of a carried object
)

func UnwrapWithCheck(frame []byte, key []byte, reg *Registry, check Check) ([]byte, error) {
	env, c, err := Parse(frame, reg)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.Open(key, env.Nonce, env.Ciphertext)
	if err != nil {
		return nil, err
	}
	if !plausible(plaintext, check) {
		return nil, ErrImplausiblePlaintext
	}
	return plaintext, nil
}

func plausible(plaintext []byte, check Check) bool {
	switch check {
	case CheckStrict:
		return len(plaintext) >= 2 && plaintext[0] == '{' && plaintext[len(plaintext)-1] == '}'
	case CheckOpenOnly:
		return len(plaintext) >= 1 && plaintext[0] == '{'
	default:
		return len(plaintext) >= 1
	}
}
