// Package models defines the metadata records persisted by the server. The
// ciphertext itself lives in the blob store under StoragePath.
package models

import "time"

type ShareStatus string

const (
	ShareActive   ShareStatus = "active"
	ShareConsumed ShareStatus = "consumed"
	ShareExpired  ShareStatus = "expired"
)

// Share is an anonymously uploaded, end-to-end encrypted file.
//
// Consumed and expired shares are kept as tombstones: StoragePath and the
// descriptive fields are cleared but the row stays so that later lookups
// can answer "gone" instead of "not found".
type Share struct {
	ID               string
	Status           ShareStatus
	StoragePath      string
	ExpiresAt        time.Time
	DeleteOnDownload bool
	ContentNonce     []byte
	OriginalName     string
	MimeType         string
	Size             int64
	CreatedAt        time.Time
	ClosedAt         *time.Time
}

// Terminal reports whether the share has been consumed or expired.
func (s *Share) Terminal() bool {
	return s.Status != ShareActive
}
