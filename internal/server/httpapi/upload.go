package httpapi

import (
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
)

const (
	// multipartOverhead is allowed on top of the file ceiling for boundaries
	// and the small form fields.
	multipartOverhead = 1 << 20
	// maxMemory is kept in memory by ParseMultipartForm; larger files spill
	// to temporary files.
	maxMemory = 32 << 20
)

type upload struct {
	file   multipart.File
	header *multipart.FileHeader
	form   *multipart.Form
}

func (u *upload) value(name string) string {
	if v := u.form.Value[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (u *upload) close() {
	_ = u.file.Close()
	_ = u.form.RemoveAll()
}

// parseUpload reads a multipart body with a "file" part, refusing bodies
// above maxBytes with tooLarge before and while reading.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64, tooLarge error) (*upload, error) {
	limit := maxBytes + multipartOverhead
	if r.ContentLength > limit {
		return nil, tooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge
		}
		return nil, common.Invalid("malformed multipart body")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, common.ErrNoFile
	}
	if header.Size > maxBytes {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
		return nil, tooLarge
	}
	return &upload{file: file, header: header, form: r.MultipartForm}, nil
}

func decodeB64(field, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, common.Invalid(field + " is not valid base64")
		}
	}
	return b, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
