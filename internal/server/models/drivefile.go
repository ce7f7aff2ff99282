package models

import "time"

// DriveFile is a file in a user's personal drive. Unlike shares, the
// content key is generated and kept server-side.
type DriveFile struct {
	ID            string
	UserID        string
	FolderID      string // empty for the drive root
	OriginalName  string
	MimeType      string
	Size          int64
	StoragePath   string
	EncryptionKey []byte
	EncryptionIV  []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Usage is the running total of drive bytes a user occupies.
type Usage struct {
	UserID      string
	StorageUsed int64
	UpdatedAt   time.Time
}
