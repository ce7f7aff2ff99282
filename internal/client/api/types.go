package api

import (
	"io"
	"time"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Created struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ShareMeta struct {
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Size             int64     `json:"size"`
	ExpiresAt        time.Time `json:"expiresAt"`
	DeleteOnDownload bool      `json:"deleteOnDownload"`
}

// ShareUpload is an already encrypted share. IV is the content nonce.
type ShareUpload struct {
	Name             string
	Type             string
	Ciphertext       []byte
	IV               []byte
	ExpirationHours  int
	DeleteOnDownload bool
}

type KeyWrap struct {
	EncryptedKey []byte `json:"encryptedKey"`
	Salt         []byte `json:"salt"`
	WrapIV       []byte `json:"wrapIv"`
}

type CreateRequest struct {
	DeleteOnDownload bool     `json:"deleteOnDownload"`
	KeyWrap          *KeyWrap `json:"keyWrap,omitempty"`
}

// RequestUpload fulfills a request with a file encrypted under the
// requester's key.
type RequestUpload struct {
	Name       string
	Type       string
	Ciphertext []byte
	IV         []byte
}

type RequestFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	IV   []byte `json:"iv"`
}

type RequestStatus struct {
	Status           string       `json:"status"`
	File             *RequestFile `json:"file,omitempty"`
	Available        bool         `json:"available"`
	ExpiresAt        time.Time    `json:"expiresAt"`
	FulfilledAt      *time.Time   `json:"fulfilledAt,omitempty"`
	DownloadedAt     *time.Time   `json:"downloadedAt,omitempty"`
	DeleteOnDownload bool         `json:"deleteOnDownload"`
	KeyWrap          *KeyWrap     `json:"keyWrap,omitempty"`
}

type DriveFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FolderID  string    `json:"folderId"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DriveListing struct {
	Files       []DriveFile `json:"files"`
	StorageUsed int64       `json:"storageUsed"`
	Quota       int64       `json:"quota"`
}

// DriveUpload is a plaintext drive file; the server encrypts it at rest.
type DriveUpload struct {
	Name     string
	Type     string
	FolderID string
	Content  []byte
}

// DrivePatch renames or moves a file, or copies it when Action is "copy".
type DrivePatch struct {
	Action   string  `json:"action,omitempty"`
	Name     *string `json:"name,omitempty"`
	FolderID *string `json:"folderId,omitempty"`
}

type driveFileResponse struct {
	File DriveFile `json:"file"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Download is a streamed response body. Close must be called. Name and Type
// are set for drive downloads; IV for ciphertext downloads.
type Download struct {
	Body io.ReadCloser
	Size int64
	IV   []byte
	Name string
	Type string
}

func (d *Download) Close() error { return d.Body.Close() }
