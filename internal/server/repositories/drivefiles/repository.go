// Package drivefiles persists drive file metadata. Names are unique per
// (user, folder); the constraint lives in the store, not in callers.
package drivefiles

import (
	"context"

	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type Repository interface {
	// Insert adds f, failing with common.ErrNameTaken when the folder
	// already holds a file with the same name.
	Insert(ctx context.Context, f *models.DriveFile) error
	Get(ctx context.Context, userID, id string) (*models.DriveFile, error)
	List(ctx context.Context, userID, folderID string) ([]*models.DriveFile, error)
	// Rename changes name and folder in one statement.
	Rename(ctx context.Context, userID, id, newName, folderID string) error
	Delete(ctx context.Context, userID, id string) error
}
