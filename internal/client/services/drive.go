package services

import (
	"context"
	"path/filepath"

	"github.com/dmitrijs2005/cipherdrop/internal/client/api"
	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
)

// Drive wraps the authenticated drive endpoints. Drive files are encrypted
// at rest by the server, not end to end.
type Drive struct {
	api *api.Client
	log logging.Logger
}

func NewDrive(c *api.Client, log logging.Logger) *Drive {
	return &Drive{api: c, log: log}
}

func (d *Drive) Upload(ctx context.Context, path, folderID string) (api.DriveFile, error) {
	content, err := readLocal(path, common.DriveMaxBytes, common.ErrDriveTooLarge)
	if err != nil {
		return api.DriveFile{}, err
	}
	f, err := d.api.DriveUpload(ctx, api.DriveUpload{
		Name:     filepath.Base(path),
		Type:     typeOf(path),
		FolderID: folderID,
		Content:  content,
	})
	if err != nil {
		return api.DriveFile{}, err
	}
	d.log.Info(ctx, "drive file uploaded", "id", f.ID, "name", f.Name)
	return f, nil
}

func (d *Drive) List(ctx context.Context, folderID string) (api.DriveListing, error) {
	return d.api.DriveList(ctx, folderID)
}

// Get returns the file name and content of drive file id.
func (d *Drive) Get(ctx context.Context, id string) (string, []byte, error) {
	dl, err := d.api.DriveDownload(ctx, id)
	if err != nil {
		return "", nil, err
	}
	defer dl.Close()

	content, err := readBody(dl.Body, common.DriveMaxBytes)
	if err != nil {
		return "", nil, err
	}
	name := dl.Name
	if name == "" {
		name = id
	}
	return name, content, nil
}

func (d *Drive) Remove(ctx context.Context, id string) error {
	if err := d.api.DriveDelete(ctx, id); err != nil {
		return err
	}
	d.log.Info(ctx, "drive file deleted", "id", id)
	return nil
}

// Move renames and/or moves a file. Nil arguments are left unchanged.
func (d *Drive) Move(ctx context.Context, id string, name, folderID *string) (api.DriveFile, error) {
	if name == nil && folderID == nil {
		return api.DriveFile{}, common.Invalid("new name or folder required")
	}
	return d.api.DrivePatch(ctx, id, api.DrivePatch{Action: "move", Name: name, FolderID: folderID})
}

// Copy duplicates a file, optionally into another folder. Name clashes get
// a " (n)" suffix.
func (d *Drive) Copy(ctx context.Context, id string, folderID *string) (api.DriveFile, error) {
	return d.api.DrivePatch(ctx, id, api.DrivePatch{Action: "copy", FolderID: folderID})
}
