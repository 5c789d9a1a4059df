package event

import (
	"bytes"
	"time"

	"github.com/danmuck/mfactl/internal/protocol"
)

// methodKey is the field carrying the authentication method.
const methodKey = `"auth"`

// Extract scans decrypted plaintext for back-to-back structured objects and
// yields one AuthEvent per complete object, in textual order. It holds no
// state between calls.
//
// The trailing bytes of an object with no matching close delimiter are
// returned as remainder; the caller chooses whether to carry them into the
// next frame or drop them.
func Extract(plaintext []byte, at time.Time) (events []protocol.AuthEvent, remainder []byte) {
	i := 0
	for i < len(plaintext) {
		if plaintext[i] != '{' {
			i++
			continue
		}
		end, ok := matchObject(plaintext[i:])
		if !ok {
			return events, plaintext[i:]
		}
		obj := plaintext[i : i+end]
		events = append(events, protocol.AuthEvent{
			Method:     Classify(methodValue(obj)),
			ObservedAt: at,
		})
		i += end
	}
	return events, nil
}

// matchObject returns the length of the balanced object starting at buf[0],
// which must be '{'. Delimiters inside quoted strings do not count.
func matchObject(buf []byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// methodValue locates the method field by textual key match and returns its
// quoted string value, or "" when absent or unquoted.
func methodValue(obj []byte) string {
	i := bytes.Index(obj, []byte(methodKey))
	if i < 0 {
		return ""
	}
	i += len(methodKey)
	i = skipSpace(obj, i)
	if i >= len(obj) || obj[i] != ':' {
		return ""
	}
	i = skipSpace(obj, i+1)
	if i >= len(obj) || obj[i] != '"' {
		return ""
	}
	i++
	start := i
	for i < len(obj) {
		if obj[i] == '\\' {
			i += 2
			continue
		}
		if obj[i] == '"' {
			return string(obj[start:i])
		}
		i++
	}
	return ""
}

// Classify maps a method value onto the closed vocabulary. Matching is
// case-sensitive; everything outside the vocabulary is Unknown.
func Classify(value string) protocol.Method {
	switch value {
	case "biometric":
		return protocol.MethodBiometric
	case "pin":
		return protocol.MethodPin
	default:
		return protocol.MethodUnknown
	}
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return i
}
