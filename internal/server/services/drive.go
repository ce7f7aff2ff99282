package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/cryptox"
	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/repomanager"
)

// maxNameSuffix bounds the " (n)" search when placing a file.
const maxNameSuffix = 1000

type DriveUploadInput struct {
	UserID   string
	FolderID string
	Name     string
	MimeType string
	Body     io.Reader
	Size     int64
}

// MoveInput changes the name and/or folder of a drive file. Nil fields keep
// their current value.
type MoveInput struct {
	Name     *string
	FolderID *string
}

// DriveListing is a folder's content plus the owner's usage.
type DriveListing struct {
	Files       []*models.DriveFile
	StorageUsed int64
	Quota       int64
}

// DriveService manages the authenticated personal drive. Files are
// encrypted here with a per-file key kept in the record, so every upload
// and download holds plaintext and ciphertext in memory at once. The
// memory semaphore caps the total held across requests.
type DriveService struct {
	repos    repomanager.RepositoryManager
	blobs    blobstore.Store
	log      logging.Logger
	maxBytes int64
	quota    int64
	now      func() time.Time

	memory *semaphore.Weighted
	budget int64
}

func NewDriveService(repos repomanager.RepositoryManager, blobs blobstore.Store, log logging.Logger,
	maxBytes, quota int64) *DriveService {
	return &DriveService{
		repos:    repos,
		blobs:    blobs,
		log:      log,
		maxBytes: maxBytes,
		quota:    quota,
		now:      func() time.Time { return time.Now().UTC() },
		memory:   semaphore.NewWeighted(2 * maxBytes),
		budget:   2 * maxBytes,
	}
}

func (s *DriveService) MaxBytes() int64 { return s.maxBytes }

// LimitMemory sets the number of bytes uploads and downloads may buffer
// together. Call it before serving; n <= 0 keeps the default of one
// maximum-size file.
func (s *DriveService) LimitMemory(n int64) {
	if n <= 0 {
		return
	}
	s.memory = semaphore.NewWeighted(n)
	s.budget = n
}

// reserve blocks until size bytes of plaintext, plus their ciphertext, fit
// in the memory budget. A file larger than the whole budget waits for it
// to drain and then runs alone.
func (s *DriveService) reserve(ctx context.Context, size int64) (func(), error) {
	n := min(2*size, s.budget)
	sem := s.memory
	if err := sem.Acquire(ctx, n); err != nil {
		return nil, fmt.Errorf("wait for drive memory: %w", err)
	}
	return func() { sem.Release(n) }, nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > 255 || strings.ContainsAny(name, "/\\") {
		return common.Invalid("invalid file name")
	}
	return nil
}

// Upload encrypts and stores a file. A name already used in the folder is
// suffixed with " (n)".
func (s *DriveService) Upload(ctx context.Context, in DriveUploadInput) (*models.DriveFile, error) {
	if in.UserID == "" {
		return nil, common.ErrUnauthenticated
	}
	if in.Body == nil {
		return nil, common.ErrNoFile
	}
	if in.Size > s.maxBytes {
		return nil, common.ErrDriveTooLarge
	}
	if err := validName(in.Name); err != nil {
		return nil, err
	}

	done, err := s.reserve(ctx, in.Size)
	if err != nil {
		return nil, err
	}
	defer done()

	plaintext, err := io.ReadAll(io.LimitReader(in.Body, in.Size+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(plaintext)) != in.Size {
		return nil, common.Invalid("file size does not match the declared size")
	}

	key, nonce := cryptox.NewContentKey(), cryptox.NewNonce()
	ciphertext, err := cryptox.Seal(plaintext, key, nonce)
	common.WipeByteArray(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	usageRepo := s.repos.Usage(s.repos.Conn())
	if err := usageRepo.Reserve(ctx, in.UserID, in.Size, s.quota); err != nil {
		return nil, err
	}

	now := s.now()
	f := &models.DriveFile{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		FolderID:      in.FolderID,
		OriginalName:  in.Name,
		MimeType:      ContentType(in.Name, in.MimeType),
		Size:          in.Size,
		StoragePath:   blobstore.DrivePath(in.UserID),
		EncryptionKey: key,
		EncryptionIV:  nonce,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.blobs.Put(ctx, f.StoragePath, bytes.NewReader(ciphertext), int64(len(ciphertext)), octetStream); err != nil {
		s.release(ctx, in.UserID, in.Size)
		return nil, fmt.Errorf("store drive blob: %w", err)
	}

	if err := s.insertUnique(ctx, f); err != nil {
		compensate(ctx, s.blobs, s.log, f.StoragePath)
		s.release(ctx, in.UserID, in.Size)
		return nil, err
	}

	s.log.Info(ctx, "drive file uploaded", "user", in.UserID, "id", f.ID, "size", f.Size)
	return f, nil
}

func (s *DriveService) List(ctx context.Context, userID, folderID string) (*DriveListing, error) {
	files, err := s.repos.DriveFiles(s.repos.Conn()).List(ctx, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", err)
	}
	u, err := s.repos.Usage(s.repos.Conn()).Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}
	return &DriveListing{Files: files, StorageUsed: u.StorageUsed, Quota: s.quota}, nil
}

// Download returns the decrypted content of a file.
func (s *DriveService) Download(ctx context.Context, userID, id string) (*models.DriveFile, []byte, error) {
	f, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	done, err := s.reserve(ctx, f.Size)
	if err != nil {
		return nil, nil, err
	}
	defer done()

	body, err := s.blobs.Get(ctx, f.StoragePath)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, common.ErrFileNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read drive blob: %w", err)
	}
	defer body.Close()

	ciphertext, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("read drive blob: %w", err)
	}
	plaintext, err := cryptox.Open(ciphertext, f.EncryptionKey, f.EncryptionIV)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt drive file %s: %w", id, err)
	}
	return f, plaintext, nil
}

// Delete removes the blob, then the record, then releases the quota. A
// failing blob delete is logged and does not stop the rest.
func (s *DriveService) Delete(ctx context.Context, userID, id string) error {
	f, err := s.get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, f.StoragePath); err != nil {
		s.log.Warn(ctx, "drive blob delete failed", "id", id, "path", f.StoragePath, "error", err)
	}

	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.DriveFiles(tx).Delete(ctx, userID, id); err != nil {
			return err
		}
		return s.repos.Usage(tx).Release(ctx, userID, f.Size)
	})
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("delete drive file: %w", err)
	}

	s.log.Info(ctx, "drive file deleted", "user", userID, "id", id)
	return nil
}

// Move renames and/or moves a file. A collision is reported as
// ErrNameTaken, never resolved.
func (s *DriveService) Move(ctx context.Context, userID, id string, in MoveInput) (*models.DriveFile, error) {
	f, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	name, folder := f.OriginalName, f.FolderID
	if in.Name != nil {
		name = *in.Name
	}
	if in.FolderID != nil {
		folder = *in.FolderID
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	err = s.repos.DriveFiles(s.repos.Conn()).Rename(ctx, userID, id, name, folder)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.get(ctx, userID, id)
}

// Copy duplicates a file into folderID (its own folder when nil), picking
// the first free "name (n)" when the name is taken.
func (s *DriveService) Copy(ctx context.Context, userID, id string, folderID *string) (*models.DriveFile, error) {
	src, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Usage(s.repos.Conn()).Reserve(ctx, userID, src.Size, s.quota); err != nil {
		return nil, err
	}

	now := s.now()
	dst := *src
	dst.ID = uuid.NewString()
	dst.StoragePath = blobstore.DrivePath(userID)
	dst.CreatedAt, dst.UpdatedAt = now, now
	if folderID != nil {
		dst.FolderID = *folderID
	}

	if err := s.blobs.Copy(ctx, src.StoragePath, dst.StoragePath); err != nil {
		s.release(ctx, userID, src.Size)
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, common.ErrFileNotFound
		}
		return nil, fmt.Errorf("copy drive blob: %w", err)
	}

	if err := s.insertUnique(ctx, &dst); err != nil {
		compensate(ctx, s.blobs, s.log, dst.StoragePath)
		s.release(ctx, userID, src.Size)
		return nil, err
	}
	return &dst, nil
}

func (s *DriveService) get(ctx context.Context, userID, id string) (*models.DriveFile, error) {
	f, err := s.repos.DriveFiles(s.repos.Conn()).Get(ctx, userID, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get drive file: %w", err)
	}
	return f, nil
}

// insertUnique inserts f under its own name or the first free suffixed
// variant. The uniqueness check is the insert itself.
func (s *DriveService) insertUnique(ctx context.Context, f *models.DriveFile) error {
	repo := s.repos.DriveFiles(s.repos.Conn())
	base := f.OriginalName

	for n := 0; n <= maxNameSuffix; n++ {
		if n > 0 {
			f.OriginalName = SuffixedName(base, n)
		}
		err := repo.Insert(ctx, f)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrNameTaken) {
			return fmt.Errorf("insert drive file: %w", err)
		}
	}
	return common.ErrNameTaken
}

func (s *DriveService) release(ctx context.Context, userID string, n int64) {
	if err := s.repos.Usage(s.repos.Conn()).Release(context.WithoutCancel(ctx), userID, n); err != nil {
		s.log.Error(ctx, "release usage", "user", userID, "bytes", n, "error", err)
	}
}

// SuffixedName inserts " (n)" before the extension: "a.pdf" -> "a (1).pdf".
// Dotfiles without another dot keep the suffix at the end.
func SuffixedName(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
