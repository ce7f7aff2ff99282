// Package blobstore is the ciphertext object store client. Backends only
// ever see opaque ciphertext addressed by a generated path.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get and Copy when no object exists at path.
var ErrNotFound = errors.New("blob not found")

// Store is an opaque put/get/delete blob store.
type Store interface {
	// Put writes size bytes from body. body is seekable so that SDKs can
	// retry and compute checksums without buffering.
	Put(ctx context.Context, path string, body io.ReadSeeker, size int64, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete is idempotent: removing a missing object is not an error.
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, src, dst string) error
}

func datePath(prefix string, t time.Time) string {
	return fmt.Sprintf("%s/%d/%d/%d/%v", prefix, t.Year(), t.Month(), t.Day(), uuid.New())
}

// SharePath returns a fresh path for share ciphertext.
func SharePath() string {
	return datePath("shares", time.Now().UTC())
}

// RequestPath returns the path for the ciphertext that fulfils request id.
func RequestPath(id string) string {
	return "requests/" + id + "/" + uuid.NewString()
}

// DrivePath returns a fresh path for a drive object of userID.
func DrivePath(userID string) string {
	return datePath("users/"+userID, time.Now().UTC())
}
