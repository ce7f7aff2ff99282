package cryptox

import (
	"crypto/sha256"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the work factor for password-derived wrapping keys.
const PBKDF2Iterations = 100_000

// DeriveKey stretches password with PBKDF2-HMAC-SHA256 into a 256-bit
// wrapping key. The salt must be 16 random bytes, fresh per file.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if len(salt) != common.SaltSize {
		return nil, common.ErrMalformedKeyMaterial
	}
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, common.ContentKeySize, sha256.New), nil
}

// WrapKey encrypts the raw content key under wrappingKey with a fresh nonce.
func WrapKey(contentKey, wrappingKey []byte) (wrapped, wrapNonce []byte, err error) {
	if len(contentKey) != common.ContentKeySize {
		return nil, nil, common.ErrMalformedKeyMaterial
	}
	wrapNonce = NewNonce()
	wrapped, err = Seal(contentKey, wrappingKey, wrapNonce)
	if err != nil {
		return nil, nil, err
	}
	return wrapped, wrapNonce, nil
}

// UnwrapKey recovers the content key. A wrong password shows up here as
// common.ErrIncorrectPassword.
func UnwrapKey(wrapped, wrappingKey, wrapNonce []byte) ([]byte, error) {
	key, err := Open(wrapped, wrappingKey, wrapNonce)
	if err != nil {
		return nil, err
	}
	if len(key) != common.ContentKeySize {
		common.WipeByteArray(key)
		return nil, common.ErrMalformedKeyMaterial
	}
	return key, nil
}
