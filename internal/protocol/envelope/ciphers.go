package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

var ErrBadKey = errors.New("envelope: bad key length")

// KeyLen is the pre-shared key size. AES-128 uses the first 16 bytes.
const KeyLen = 32

// StreamA is algorithm tag 0x01: an unauthenticated ChaCha20 keystream
// with the contract's 12-byte nonce.
type StreamA struct{}

func (StreamA) Tag() uint8    { return TagStreamA }
func (StreamA) NonceLen() int { return chacha20.NonceSize }

func (StreamA) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	return chachaXOR(key, nonce, ciphertext)
}

func (StreamA) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	return chachaXOR(key, nonce, plaintext)
}

func chachaXOR(key, nonce, in []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrBadKey, KeyLen, len(key))
	}
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	c.XORKeyStream(out, in)
	return out, nil
}

// AES128CTR is algorithm tag 0x02: AES-128 in counter mode with the
// contract's 16-byte IV. Counter mode keeps the transform length-preserving,
// so a single-byte ciphertext is still well-formed on the wire.
type AES128CTR struct{}

func (AES128CTR) Tag() uint8    { return TagAES128 }
func (AES128CTR) NonceLen() int { return aes.BlockSize }

func (AES128CTR) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	return aesCTRXOR(key, nonce, ciphertext)
}

func (AES128CTR) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	return aesCTRXOR(key, nonce, plaintext)
}

func aesCTRXOR(key, iv, in []byte) ([]byte, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("%w: need at least 16, have %d", ErrBadKey, len(key))
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}
