package models

import "time"

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestFulfilled  RequestStatus = "fulfilled"
	RequestDownloaded RequestStatus = "downloaded"
	RequestExpired    RequestStatus = "expired"
	// RequestDeleted marks a request consumed by a destructive download.
	RequestDeleted RequestStatus = "deleted"
)

// FileMetadata describes the ciphertext uploaded to fulfil a request. IV is
// the content nonce chosen by the uploader.
type FileMetadata struct {
	Name string
	Type string
	Size int64
	IV   []byte
}

// KeyWrap is password-wrapped content key material the requester chose to
// park on the server. It cannot be opened without the password.
type KeyWrap struct {
	EncryptedKey []byte
	Salt         []byte
	WrapIV       []byte
}

// Request is created empty by the party that wants to receive a file and
// filled at most once by the uploader.
type Request struct {
	ID               string
	Status           RequestStatus
	ExpiresAt        time.Time
	DeleteOnDownload bool
	KeyWrap          *KeyWrap
	StoragePath      string
	File             *FileMetadata
	FulfilledAt      *time.Time
	DownloadedAt     *time.Time
	CreatedAt        time.Time
	ClosedAt         *time.Time
}

// Terminal reports whether the request has expired or been consumed.
func (r *Request) Terminal() bool {
	return r.Status == RequestExpired || r.Status == RequestDeleted
}

// HasFile reports whether ciphertext has been uploaded and not yet removed.
func (r *Request) HasFile() bool {
	return r.Status == RequestFulfilled || r.Status == RequestDownloaded
}
