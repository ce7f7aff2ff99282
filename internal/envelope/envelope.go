// Package envelope builds and parses the key material that travels in the
// URL fragment of a share or request link. The fragment never reaches the
// server.
package envelope

import (
	"encoding/base64"
	"net/url"
	"sort"
	"strings"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/cryptox"
)

type Mode int

const (
	Simple Mode = iota + 1
	Password
)

func (m Mode) String() string {
	switch m {
	case Simple:
		return "simple"
	case Password:
		return "password"
	default:
		return "unknown"
	}
}

// Envelope holds either the raw content key (Simple) or the content key
// wrapped under a password-derived key (Password). ContentNonce is present
// in both.
type Envelope struct {
	Mode         Mode
	ContentKey   []byte
	ContentNonce []byte
	WrappedKey   []byte
	Salt         []byte
	WrapNonce    []byte
}

const (
	fieldKey          = "key"
	fieldIV           = "iv"
	fieldEncryptedKey = "encryptedKey"
	fieldSalt         = "salt"
	fieldWrapIV       = "wrapIv"
)

var (
	simpleShape   = []string{fieldIV, fieldKey}
	passwordShape = []string{fieldEncryptedKey, fieldIV, fieldSalt, fieldWrapIV}
)

// NewSimple returns an envelope carrying the content key in the clear.
func NewSimple(key, nonce []byte) (Envelope, error) {
	if len(key) != common.ContentKeySize || len(nonce) != common.NonceSize {
		return Envelope{}, common.ErrMalformedKeyMaterial
	}
	return Envelope{Mode: Simple, ContentKey: key, ContentNonce: nonce}, nil
}

// NewPassword wraps key under a key derived from password with a fresh salt
// and wrap nonce. Neither the password nor key end up in the envelope.
func NewPassword(key, nonce []byte, password string) (Envelope, error) {
	if password == "" {
		return Envelope{}, common.Invalid("password must not be empty")
	}
	if len(nonce) != common.NonceSize {
		return Envelope{}, common.ErrMalformedKeyMaterial
	}
	salt := cryptox.NewSalt()
	wk, err := cryptox.DeriveKey(password, salt)
	if err != nil {
		return Envelope{}, err
	}
	defer common.WipeByteArray(wk)

	wrapped, wrapNonce, err := cryptox.WrapKey(key, wk)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Mode:         Password,
		ContentNonce: nonce,
		WrappedKey:   wrapped,
		Salt:         salt,
		WrapNonce:    wrapNonce,
	}, nil
}

func enc(b []byte) string {
	return url.QueryEscape(base64.StdEncoding.EncodeToString(b))
}

// Fragment renders the envelope as URL fragment key/value pairs, without the
// leading '#'.
func (e Envelope) Fragment() string {
	switch e.Mode {
	case Simple:
		return fieldKey + "=" + enc(e.ContentKey) + "&" + fieldIV + "=" + enc(e.ContentNonce)
	case Password:
		return fieldEncryptedKey + "=" + enc(e.WrappedKey) +
			"&" + fieldSalt + "=" + enc(e.Salt) +
			"&" + fieldWrapIV + "=" + enc(e.WrapNonce) +
			"&" + fieldIV + "=" + enc(e.ContentNonce)
	default:
		return ""
	}
}

// Parse decodes a fragment produced by Fragment. Exactly the simple or the
// password field set is accepted; anything else is ErrMissingKeyMaterial.
// Field values are decoded and length-checked before use.
func Parse(fragment string) (Envelope, error) {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return Envelope{}, common.ErrMissingKeyMaterial
	}

	values, err := url.ParseQuery(fragment)
	if err != nil {
		return Envelope{}, common.Wrap(common.ErrMalformedKeyMaterial, err)
	}

	keys := make([]string, 0, len(values))
	for k, v := range values {
		if len(v) != 1 || v[0] == "" {
			return Envelope{}, common.ErrMissingKeyMaterial
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch {
	case equal(keys, simpleShape):
		key, err := decode(values.Get(fieldKey), common.ContentKeySize)
		if err != nil {
			return Envelope{}, err
		}
		iv, err := decode(values.Get(fieldIV), common.NonceSize)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Mode: Simple, ContentKey: key, ContentNonce: iv}, nil

	case equal(keys, passwordShape):
		// AES-GCM over a 32 byte key yields 32 bytes plus the 16 byte tag.
		wrapped, err := decode(values.Get(fieldEncryptedKey), common.ContentKeySize+16)
		if err != nil {
			return Envelope{}, err
		}
		salt, err := decode(values.Get(fieldSalt), common.SaltSize)
		if err != nil {
			return Envelope{}, err
		}
		wrapIV, err := decode(values.Get(fieldWrapIV), common.NonceSize)
		if err != nil {
			return Envelope{}, err
		}
		iv, err := decode(values.Get(fieldIV), common.NonceSize)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Mode: Password, WrappedKey: wrapped, Salt: salt, WrapNonce: wrapIV, ContentNonce: iv}, nil
	}

	return Envelope{}, common.ErrMissingKeyMaterial
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func decode(s string, size int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// tolerate links whose padding was stripped by a chat client
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, common.Wrap(common.ErrMalformedKeyMaterial, err)
		}
	}
	if len(b) != size {
		return nil, common.ErrMalformedKeyMaterial
	}
	return b, nil
}

// ContentKeyFor returns the content key, unwrapping it with password in
// Password mode. A wrong password yields common.ErrIncorrectPassword.
func (e Envelope) ContentKeyFor(password string) ([]byte, error) {
	switch e.Mode {
	case Simple:
		return e.ContentKey, nil
	case Password:
		if password == "" {
			return nil, common.ErrMissingKeyMaterial
		}
		wk, err := cryptox.DeriveKey(password, e.Salt)
		if err != nil {
			return nil, err
		}
		defer common.WipeByteArray(wk)
		return cryptox.UnwrapKey(e.WrappedKey, wk, e.WrapNonce)
	default:
		return nil, common.ErrMissingKeyMaterial
	}
}

// NeedsPassword reports whether ContentKeyFor requires a password.
func (e Envelope) NeedsPassword() bool { return e.Mode == Password }

// Decrypt recovers the plaintext of ciphertext using this envelope.
func (e Envelope) Decrypt(ciphertext []byte, password string) ([]byte, error) {
	key, err := e.ContentKeyFor(password)
	if err != nil {
		return nil, err
	}
	return cryptox.Open(ciphertext, key, e.ContentNonce)
}
