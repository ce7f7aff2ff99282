package lifecycle

import (
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

// EvaluateShare decides an access to rec. A nil rec is a share that never
// existed. Only AccessDownload may consume a share.
func EvaluateShare(rec *models.Share, access Access, now time.Time) Decision {
	if rec == nil {
		return deny(common.ErrFileNotFound)
	}

	switch rec.Status {
	case models.ShareConsumed:
		return deny(common.ErrAlreadyDownloaded)
	case models.ShareExpired:
		return deny(common.ErrExpired)
	}

	if expired(rec.ExpiresAt, now) {
		return expire()
	}

	d := Decision{Serve: true}
	if access == AccessDownload && rec.DeleteOnDownload {
		d.Consume = true
	}
	return d
}
