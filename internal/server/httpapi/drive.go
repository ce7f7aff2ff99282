package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

type DriveFileJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FolderID  string    `json:"folderId"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DriveFileResponse struct {
	File DriveFileJSON `json:"file"`
}

type DriveListResponse struct {
	Files       []DriveFileJSON `json:"files"`
	StorageUsed int64           `json:"storageUsed"`
	Quota       int64           `json:"quota"`
}

// DrivePatchBody renames, moves or copies a file. Action defaults to
// "rename"; "copy" ignores Name.
type DrivePatchBody struct {
	Action   string  `json:"action,omitempty"`
	Name     *string `json:"name,omitempty"`
	FolderID *string `json:"folderId,omitempty"`
}

func toDriveJSON(f *models.DriveFile) DriveFileJSON {
	return DriveFileJSON{
		ID:        f.ID,
		Name:      f.OriginalName,
		FolderID:  f.FolderID,
		Type:      f.MimeType,
		Size:      f.Size,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// driveUser returns the authenticated user, checking that an explicit
// userId parameter names the same user.
func driveUser(r *http.Request, explicit string) (string, error) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return "", common.ErrUnauthenticated
	}
	if explicit != "" && explicit != userID {
		return "", common.ErrUnauthenticated
	}
	return userID, nil
}

func (s *Server) driveUpload(w http.ResponseWriter, r *http.Request) {
	up, err := parseUpload(w, r, s.drive.MaxBytes(), common.ErrDriveTooLarge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.close()

	userID, err := driveUser(r, up.value("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	f, err := s.drive.Upload(r.Context(), services.DriveUploadInput{
		UserID:   userID,
		FolderID: up.value("folderId"),
		Name:     up.header.Filename,
		MimeType: up.header.Header.Get("Content-Type"),
		Body:     up.file,
		Size:     up.header.Size,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DriveFileResponse{File: toDriveJSON(f)})
}

func (s *Server) driveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := driveUser(r, q.Get("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	listing, err := s.drive.List(r.Context(), userID, q.Get("folderId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := DriveListResponse{Files: []DriveFileJSON{}, StorageUsed: listing.StorageUsed, Quota: listing.Quota}
	for _, f := range listing.Files {
		resp.Files = append(resp.Files, toDriveJSON(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) driveDownload(w http.ResponseWriter, r *http.Request) {
	userID, err := driveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	f, plaintext, err := s.drive.Download(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", f.MimeType)
	h.Set("Content-Length", strconv.Itoa(len(plaintext)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(plaintext)
}

func (s *Server) driveDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := driveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.drive.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) drivePatch(w http.ResponseWriter, r *http.Request) {
	userID, err := driveUser(r, r.URL.Query().Get("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body DrivePatchBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
		s.writeError(w, r, common.Invalid("malformed request body"))
		return
	}

	id := chi.URLParam(r, "id")
	var f *models.DriveFile
	switch body.Action {
	case "", "rename", "move":
		if body.Name == nil && body.FolderID == nil {
			s.writeError(w, r, common.Invalid("name or folderId required"))
			return
		}
		f, err = s.drive.Move(r.Context(), userID, id, services.MoveInput{Name: body.Name, FolderID: body.FolderID})
	case "copy":
		f, err = s.drive.Copy(r.Context(), userID, id, body.FolderID)
	default:
		err = common.Invalid("unknown action " + strconv.Quote(body.Action))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DriveFileResponse{File: toDriveJSON(f)})
}
