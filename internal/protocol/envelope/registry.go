package envelope

import (
	"errors"
	"fmt"
)

var (
	ErrCipherExists = errors.New("envelope: cipher tag already registered")
	ErrCipherNil    = errors.New("envelope: cipher is nil")
)

// Cipher is one reversible transform registered under an algorithm tag.
// The concrete cipher is a plug: any keystream or block transform keyed by
// the pre-shared symmetric key is acceptable. Key provisioning is a
// collaborator concern.
type Cipher interface {
	Tag() uint8
	NonceLen() int
	Open(key, nonce, ciphertext []byte) ([]byte, error)
	Seal(key, nonce, plaintext []byte) ([]byte, error)
}

// Registry stores ciphers by algorithm tag.
type Registry struct {
	items map[uint8]Cipher
}

// NewRegistry creates an empty cipher registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[uint8]Cipher)}
}

// Register adds a cipher to the registry.
func (r *Registry) Register(c Cipher) error {
	if c == nil {
		return ErrCipherNil
	}
	if _, ok := r.items[c.Tag()]; ok {
		return fmt.Errorf("%w: 0x%02x", ErrCipherExists, c.Tag())
	}
	r.items[c.Tag()] = c
	return nil
}

// Resolve returns a cipher by tag.
func (r *Registry) Resolve(tag uint8) (Cipher, bool) {
	c, ok := r.items[tag]
	return c, ok
}

// DefaultRegistry returns a registry with the wire contract's two tags.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(StreamA{})
	_ = r.Register(AES128CTR{})
	return r
}
