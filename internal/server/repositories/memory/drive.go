package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type driveFileRepo struct {
	s *store
}

func copyDriveFile(f *models.DriveFile) *models.DriveFile {
	c := *f
	c.EncryptionKey = append([]byte(nil), f.EncryptionKey...)
	c.EncryptionIV = append([]byte(nil), f.EncryptionIV...)
	return &c
}

// nameTakenLocked mirrors the unique (user_id, folder_id, original_name)
// index. Callers hold s.mu.
func (r *driveFileRepo) nameTakenLocked(userID, folderID, name, exceptID string) bool {
	for _, f := range r.s.driveFiles {
		if f.ID != exceptID && f.UserID == userID && f.FolderID == folderID && f.OriginalName == name {
			return true
		}
	}
	return false
}

func (r *driveFileRepo) Insert(_ context.Context, f *models.DriveFile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.driveFiles[f.ID]; ok {
		return fmt.Errorf("db error: duplicate drive file id %q", f.ID)
	}
	if r.nameTakenLocked(f.UserID, f.FolderID, f.OriginalName, "") {
		return common.ErrNameTaken
	}
	c := copyDriveFile(f)
	c.UpdatedAt = c.CreatedAt
	r.s.driveFiles[f.ID] = c
	return nil
}

func (r *driveFileRepo) Get(_ context.Context, userID, id string) (*models.DriveFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.driveFiles[id]
	if !ok || f.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return copyDriveFile(f), nil
}

func (r *driveFileRepo) List(_ context.Context, userID, folderID string) ([]*models.DriveFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*models.DriveFile
	for _, f := range r.s.driveFiles {
		if f.UserID == userID && f.FolderID == folderID {
			result = append(result, copyDriveFile(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OriginalName < result[j].OriginalName })
	return result, nil
}

func (r *driveFileRepo) Rename(_ context.Context, userID, id, newName, folderID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.driveFiles[id]
	if !ok || f.UserID != userID {
		return common.ErrorNotFound
	}
	if r.nameTakenLocked(userID, folderID, newName, id) {
		return common.ErrNameTaken
	}
	f.OriginalName = newName
	f.FolderID = folderID
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *driveFileRepo) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.driveFiles[id]
	if !ok || f.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.s.driveFiles, id)
	return nil
}
