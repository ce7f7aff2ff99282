package httpapi

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

const defaultExpirationHours = 24

type CreatedResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ShareMetaResponse struct {
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Size             int64     `json:"size"`
	ExpiresAt        time.Time `json:"expiresAt"`
	DeleteOnDownload bool      `json:"deleteOnDownload"`
}

func (s *Server) createShare(w http.ResponseWriter, r *http.Request) {
	up, err := parseUpload(w, r, s.shares.MaxBytes(), common.ErrFileTooLarge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.close()

	iv, err := decodeB64("iv", up.value("iv"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	hours := defaultExpirationHours
	if v := up.value("expiration"); v != "" {
		if hours, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, common.Invalid("expiration must be a number of hours"))
			return
		}
	}
	if maxHours := int64(s.shares.MaxExpiry() / time.Hour); hours < 1 || int64(hours) > maxHours {
		s.writeError(w, r, common.Invalid(fmt.Sprintf("expiration must be between 1 and %d hours", maxHours)))
		return
	}

	share, err := s.shares.Create(r.Context(), services.CreateShareInput{
		Body:             up.file,
		Size:             up.header.Size,
		ContentNonce:     iv,
		ExpiresIn:        time.Duration(hours) * time.Hour,
		DeleteOnDownload: parseBool(up.value("deleteOnDownload")),
		OriginalName:     up.header.Filename,
		MimeType:         up.value("type"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CreatedResponse{ID: share.ID, ExpiresAt: share.ExpiresAt})
}

func (s *Server) shareMeta(w http.ResponseWriter, r *http.Request) {
	share, err := s.shares.Meta(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ShareMetaResponse{
		Name:             share.OriginalName,
		Type:             share.MimeType,
		Size:             share.Size,
		ExpiresAt:        share.ExpiresAt,
		DeleteOnDownload: share.DeleteOnDownload,
	})
}

func (s *Server) previewShare(w http.ResponseWriter, r *http.Request) {
	b, err := s.shares.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveBlob(w, r, b)
}

func (s *Server) downloadShare(w http.ResponseWriter, r *http.Request) {
	b, err := s.shares.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveBlob(w, r, b)
}

// serveBlob streams ciphertext and closes b, which triggers any cleanup.
func (s *Server) serveBlob(w http.ResponseWriter, r *http.Request, b *services.Blob) {
	defer b.Close()

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set(common.ContentNonceHeader, base64.StdEncoding.EncodeToString(b.ContentNonce))
	if b.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(b.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, b); err != nil {
		s.logger.Warn(r.Context(), "blob stream interrupted", "path", r.URL.Path, "error", err)
	}
}
