// Package common defines the error taxonomy, shared limits and small helpers
// used across client and server layers of cipherdrop. Callers should use
// errors.Is to match the sentinel values and KindOf to classify anything else.
package common

import "errors"

// Kind is the closed set of failure classes. Every error that crosses a
// package boundary maps onto exactly one Kind.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindConflict
	KindGone
	KindQuotaExceeded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindGone:
		return "gone"
	case KindQuotaExceeded:
		return "quota_exceeded"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Code is stable and travels over the wire,
// Message is what a user gets to read.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that an error decoded from a server response equals
// the local sentinel with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// NewError builds a classified error.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches the cause err to a copy of the sentinel base.
func Wrap(base *Error, err error) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: base.Message, Err: err}
}

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Token verification errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// User-visible outcomes. Expired, already downloaded, not found and a bad
// password must stay distinguishable all the way to the user.
var (
	ErrExpired           = NewError(KindGone, "expired", "file expired")
	ErrAlreadyDownloaded = NewError(KindGone, "already_downloaded", "file already downloaded")
	ErrFileNotFound      = NewError(KindNotFound, "not_found", "file not found")
	ErrNotFulfilled      = NewError(KindNotFound, "not_fulfilled", "no file has been uploaded yet")
	ErrIncorrectPassword = NewError(KindAuthentication, "incorrect_password", "incorrect password or corrupted file")
	ErrUnauthenticated   = NewError(KindAuthentication, "unauthenticated", "authentication required")
	ErrAlreadyFulfilled  = NewError(KindConflict, "already_fulfilled", "request already fulfilled")
	ErrNameTaken         = NewError(KindConflict, "name_taken", "a file with this name already exists")
	ErrQuotaExceeded     = NewError(KindQuotaExceeded, "quota_exceeded", "storage quota exceeded")
	ErrFileTooLarge      = NewError(KindValidation, "too_large", "file too large")
	ErrDriveTooLarge     = NewError(KindQuotaExceeded, "drive_too_large", "file exceeds the drive size limit")
	ErrNoFile            = NewError(KindValidation, "no_file", "no file provided")
	ErrInvalidInput      = NewError(KindValidation, "invalid_input", "invalid input")

	ErrMissingKeyMaterial   = NewError(KindValidation, "missing_key_material", "missing decryption material")
	ErrMalformedKeyMaterial = NewError(KindValidation, "malformed_key_material", "malformed decryption material")

	ErrUnexpected = NewError(KindUnexpected, "internal", "internal error")
)

var registry = map[string]*Error{}

func init() {
	for _, e := range []*Error{
		ErrExpired, ErrAlreadyDownloaded, ErrFileNotFound, ErrNotFulfilled,
		ErrIncorrectPassword, ErrUnauthenticated, ErrAlreadyFulfilled, ErrNameTaken,
		ErrQuotaExceeded, ErrFileTooLarge, ErrDriveTooLarge, ErrNoFile, ErrInvalidInput,
		ErrMissingKeyMaterial, ErrMalformedKeyMaterial, ErrUnexpected,
	} {
		registry[e.Code] = e
	}
}

// Lookup returns the sentinel registered for code, or nil.
func Lookup(code string) *Error {
	return registry[code]
}

// KindOf classifies err. Unclassified errors are Unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrorNotFound) {
		return KindNotFound
	}
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
		return KindAuthentication
	}
	return KindUnexpected
}

// Invalid returns a validation error with a specific message.
func Invalid(message string) *Error {
	return &Error{Kind: KindValidation, Code: ErrInvalidInput.Code, Message: message}
}
