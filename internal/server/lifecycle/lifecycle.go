// Package lifecycle decides what may happen to a share or request record on
// each access. It is pure: callers pass the current record and time, and
// apply the returned Decision against the stores.
package lifecycle

import (
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
)

// Access is the kind of operation a caller performs on a share.
type Access int

const (
	AccessMeta Access = iota
	AccessPreview
	AccessDownload
)

func (a Access) String() string {
	switch a {
	case AccessMeta:
		return "meta"
	case AccessPreview:
		return "preview"
	case AccessDownload:
		return "download"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a record.
//
// When Expire is set the caller must tombstone the record and delete its
// blob before returning Err. Consume means the blob is served once and the
// record is closed afterwards; MarkDownloaded is informational only.
type Decision struct {
	Serve          bool
	Err            error
	Expire         bool
	Consume        bool
	MarkDownloaded bool
}

// expired reports whether now is past expiresAt. The instant itself is
// still live.
func expired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

func deny(err error) Decision { return Decision{Err: err} }

func expire() Decision { return Decision{Err: common.ErrExpired, Expire: true} }
