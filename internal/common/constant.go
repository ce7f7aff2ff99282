package common

// Size ceilings enforced before an upload body is accepted.
const (
	ShareMaxBytes int64 = 1 << 30
	DriveMaxBytes int64 = 10 << 30
)

// Key material sizes of the envelope protocol, in bytes.
const (
	ContentKeySize = 32
	NonceSize      = 12
	SaltSize       = 16
)

// ContentNonceHeader carries the base64 content nonce next to served ciphertext.
const ContentNonceHeader = "X-Content-Nonce"
