package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

// KeyWrapJSON is password-wrapped key material. Byte fields travel as
// standard base64.
type KeyWrapJSON struct {
	EncryptedKey []byte `json:"encryptedKey"`
	Salt         []byte `json:"salt"`
	WrapIV       []byte `json:"wrapIv"`
}

type CreateRequestBody struct {
	DeleteOnDownload bool         `json:"deleteOnDownload"`
	KeyWrap          *KeyWrapJSON `json:"keyWrap,omitempty"`
}

type RequestFileJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	IV   []byte `json:"iv"`
}

type RequestStatusResponse struct {
	Status           string           `json:"status"`
	File             *RequestFileJSON `json:"file,omitempty"`
	Available        bool             `json:"available"`
	ExpiresAt        time.Time        `json:"expiresAt"`
	FulfilledAt      *time.Time       `json:"fulfilledAt,omitempty"`
	DownloadedAt     *time.Time       `json:"downloadedAt,omitempty"`
	DeleteOnDownload bool             `json:"deleteOnDownload"`
	KeyWrap          *KeyWrapJSON     `json:"keyWrap,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, common.Invalid("malformed request body"))
		return
	}

	in := services.CreateRequestInput{DeleteOnDownload: body.DeleteOnDownload}
	if kw := body.KeyWrap; kw != nil {
		in.KeyWrap = &models.KeyWrap{EncryptedKey: kw.EncryptedKey, Salt: kw.Salt, WrapIV: kw.WrapIV}
	}

	req, err := s.requests.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CreatedResponse{ID: req.ID, ExpiresAt: req.ExpiresAt})
}

func (s *Server) fulfillRequest(w http.ResponseWriter, r *http.Request) {
	up, err := parseUpload(w, r, s.requests.MaxBytes(), common.ErrFileTooLarge)
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

	err = s.requests.Upload(r.Context(), chi.URLParam(r, "id"), services.FulfillInput{
		Body: up.file,
		Size: up.header.Size,
		IV:   iv,
		Name: up.header.Filename,
		Type: up.value("type"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) requestStatus(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := RequestStatusResponse{
		Status:           string(req.Status),
		Available:        req.HasFile(),
		ExpiresAt:        req.ExpiresAt,
		FulfilledAt:      req.FulfilledAt,
		DownloadedAt:     req.DownloadedAt,
		DeleteOnDownload: req.DeleteOnDownload,
	}
	if f := req.File; f != nil {
		resp.File = &RequestFileJSON{Name: f.Name, Type: f.Type, Size: f.Size, IV: f.IV}
	}
	if kw := req.KeyWrap; kw != nil {
		resp.KeyWrap = &KeyWrapJSON{EncryptedKey: kw.EncryptedKey, Salt: kw.Salt, WrapIV: kw.WrapIV}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) downloadRequest(w http.ResponseWriter, r *http.Request) {
	b, err := s.requests.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveBlob(w, r, b)
}
