package services

import (
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/envelope"
)

const gcmTagSize = 16

// link renders base/kind/id#fragment. The fragment stays in the browser or
// CLI and is never sent to the server.
func link(base, kind, id string, env envelope.Envelope) string {
	return base + "/" + kind + "/" + url.PathEscape(id) + "#" + env.Fragment()
}

// parseLink extracts the record id and the raw fragment from a link of the
// form .../<kind>/<id>#<fragment>.
func parseLink(raw, kind string) (id, fragment string, err error) {
	before, fragment, _ := strings.Cut(strings.TrimSpace(raw), "#")
	u, err := url.Parse(before)
	if err != nil {
		return "", "", common.Invalid("malformed link")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] != kind || parts[len(parts)-1] == "" {
		return "", "", common.Invalid(fmt.Sprintf("not a %s link", kind))
	}
	id, err = url.PathUnescape(parts[len(parts)-1])
	if err != nil {
		return "", "", common.Invalid("malformed link")
	}
	return id, fragment, nil
}

// requestID accepts either a bare request id or a request link.
func requestID(s string) (string, error) {
	if !strings.Contains(s, "/") {
		if s = strings.TrimSpace(s); s == "" {
			return "", common.Invalid("request id required")
		}
		return s, nil
	}
	id, _, err := parseLink(s, "request")
	return id, err
}

// NeedsPassword reports whether a share link was made with a password.
func NeedsPassword(shareLink string) (bool, error) {
	_, fragment, err := parseLink(shareLink, "share")
	if err != nil {
		return false, err
	}
	env, err := envelope.Parse(fragment)
	if err != nil {
		return false, err
	}
	return env.NeedsPassword(), nil
}

// readLocal reads a file to upload, refusing files over max bytes.
func readLocal(path string, max int64, tooLarge error) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, common.Invalid(path + " is a directory")
	}
	if info.Size() > max {
		return nil, tooLarge
	}
	return os.ReadFile(path)
}

// readBody drains a download of at most max bytes.
func readBody(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read download: %w", err)
	}
	if int64(len(b)) > max {
		return nil, common.ErrFileTooLarge
	}
	return b, nil
}

func typeOf(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}
