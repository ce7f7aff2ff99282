// Package cryptox holds the symmetric primitives of the envelope protocol:
// an AES-256-GCM adapter and PBKDF2-based wrapping of content keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
)

// NewContentKey returns a fresh 256-bit content key.
func NewContentKey() []byte {
	return common.GenerateRandByteArray(common.ContentKeySize)
}

// NewNonce returns a fresh 96-bit GCM nonce.
func NewNonce() []byte {
	return common.GenerateRandByteArray(common.NonceSize)
}

// NewSalt returns a fresh 128-bit KDF salt.
func NewSalt() []byte {
	return common.GenerateRandByteArray(common.SaltSize)
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != common.ContentKeySize || len(nonce) != common.NonceSize {
		return nil, common.ErrMalformedKeyMaterial
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.Wrap(common.ErrMalformedKeyMaterial, err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM and returns ciphertext||tag.
//
// The key must be 32 bytes and the nonce 12 bytes; anything else fails with
// common.ErrMalformedKeyMaterial before the cipher is touched. No associated
// data is bound. A nonce must never be reused under the same key.
func Seal(plaintext, key, nonce []byte) ([]byte, error) {
	aead, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext||tag.
//
// A wrong key, wrong nonce or any modified byte fails with
// common.ErrIncorrectPassword; Open never returns unauthenticated plaintext.
func Open(ciphertext, key, nonce []byte) ([]byte, error) {
	aead, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.Wrap(common.ErrIncorrectPassword, err)
	}
	return plaintext, nil
}
