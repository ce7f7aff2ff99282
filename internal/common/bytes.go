package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes from crypto/rand. It panics if the
// system randomness source fails, since no key or nonce can be produced then.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes b. Content keys, unwrapped keys and plaintext buffers
// are wiped once sealed or written out. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	clear(b)
}
