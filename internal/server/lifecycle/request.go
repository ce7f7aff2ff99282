package lifecycle

import (
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

func terminalRequestErr(rec *models.Request) error {
	if rec.Status == models.RequestDeleted {
		return common.ErrAlreadyDownloaded
	}
	return common.ErrExpired
}

// EvaluateRequestUpload returns nil when rec may be fulfilled now. A request
// past its expiry that is still open yields ErrExpired and should be
// expired by the caller.
func EvaluateRequestUpload(rec *models.Request, now time.Time) error {
	if rec == nil {
		return common.ErrFileNotFound
	}
	switch {
	case rec.Status == models.RequestDeleted:
		return common.ErrAlreadyFulfilled
	case rec.Status == models.RequestExpired:
		return common.ErrExpired
	case expired(rec.ExpiresAt, now):
		return common.ErrExpired
	case rec.Status != models.RequestPending:
		return common.ErrAlreadyFulfilled
	}
	return nil
}

// EvaluateRequestDownload decides a download of the ciphertext attached to
// rec.
func EvaluateRequestDownload(rec *models.Request, now time.Time) Decision {
	if rec == nil {
		return deny(common.ErrFileNotFound)
	}
	if rec.Terminal() {
		return deny(terminalRequestErr(rec))
	}
	if expired(rec.ExpiresAt, now) {
		return expire()
	}
	if !rec.HasFile() {
		return deny(common.ErrNotFulfilled)
	}
	if rec.DeleteOnDownload {
		return Decision{Serve: true, Consume: true}
	}
	return Decision{Serve: true, MarkDownloaded: true}
}

// EvaluateRequestStatus decides a status poll. Tombstoned requests still
// report their status; an open request past its expiry is reported after
// being expired.
func EvaluateRequestStatus(rec *models.Request, now time.Time) Decision {
	if rec == nil {
		return deny(common.ErrFileNotFound)
	}
	if !rec.Terminal() && expired(rec.ExpiresAt, now) {
		return Decision{Serve: true, Expire: true}
	}
	return Decision{Serve: true}
}
