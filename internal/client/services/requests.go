package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/client/api"
	"github.com/dmitrijs2005/cipherdrop/internal/client/repositories/requests"
	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/cryptox"
	"github.com/dmitrijs2005/cipherdrop/internal/envelope"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
)

// CreatedRequest is a new request. Link goes to the person who uploads the
// file; it carries the key the upload is encrypted with.
type CreatedRequest struct {
	ID        string
	Link      string
	ExpiresAt time.Time
}

type Requests struct {
	api   *api.Client
	local requests.Repository
	log   logging.Logger
	now   func() time.Time
}

func NewRequests(c *api.Client, local requests.Repository, log logging.Logger) *Requests {
	return &Requests{api: c, local: local, log: log, now: time.Now}
}

// Create opens a request and remembers its key locally. With a password the
// key is also wrapped and stored with the request, so Fetch works from a
// machine that lacks the local record.
func (s *Requests) Create(ctx context.Context, password string, deleteOnDownload bool) (CreatedRequest, error) {
	if n, err := s.local.DeleteExpired(ctx, s.now()); err != nil {
		s.log.Warn(ctx, "prune expired requests", "error", err)
	} else if n > 0 {
		s.log.Info(ctx, "pruned expired requests", "count", n)
	}

	key := cryptox.NewContentKey()
	defer common.WipeByteArray(key)
	nonce := cryptox.NewNonce()

	in := api.CreateRequest{DeleteOnDownload: deleteOnDownload}
	if password != "" {
		wrapped, err := envelope.NewPassword(key, nonce, password)
		if err != nil {
			return CreatedRequest{}, err
		}
		in.KeyWrap = &api.KeyWrap{EncryptedKey: wrapped.WrappedKey, Salt: wrapped.Salt, WrapIV: wrapped.WrapNonce}
	}

	created, err := s.api.CreateRequest(ctx, in)
	if err != nil {
		return CreatedRequest{}, err
	}

	err = s.local.Save(ctx, &requests.Request{
		ID:               created.ID,
		Server:           s.api.BaseURL(),
		ContentKey:       append([]byte(nil), key...),
		ContentNonce:     nonce,
		DeleteOnDownload: deleteOnDownload,
		ExpiresAt:        created.ExpiresAt,
		CreatedAt:        s.now(),
	})
	if err != nil {
		if password == "" {
			return CreatedRequest{}, fmt.Errorf("request %s created but its key was not saved: %w", created.ID, err)
		}
		s.log.Warn(ctx, "request key not saved locally", "id", created.ID, "error", err)
	}

	env, err := envelope.NewSimple(key, nonce)
	if err != nil {
		return CreatedRequest{}, err
	}
	s.log.Info(ctx, "request created", "id", created.ID, "wrapped", password != "")
	return CreatedRequest{
		ID:        created.ID,
		Link:      link(s.api.BaseURL(), "request", created.ID, env),
		ExpiresAt: created.ExpiresAt,
	}, nil
}

// Fulfill encrypts the file at path with the key carried by the request
// link and uploads it. A request accepts one upload only. Every attempt
// seals under a fresh nonce sent next to the ciphertext; the iv in the link
// is never used for encryption, since a rejected upload still reaches the
// server.
func (s *Requests) Fulfill(ctx context.Context, requestLink, path string) error {
	id, fragment, err := parseLink(requestLink, "request")
	if err != nil {
		return err
	}
	env, err := envelope.Parse(fragment)
	if err != nil {
		return err
	}
	if env.Mode != envelope.Simple {
		return common.Invalid("request link must carry the request key")
	}

	plaintext, err := readLocal(path, common.ShareMaxBytes-gcmTagSize, common.ErrFileTooLarge)
	if err != nil {
		return err
	}
	nonce := cryptox.NewNonce()
	ciphertext, err := cryptox.Seal(plaintext, env.ContentKey, nonce)
	common.WipeByteArray(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", path, err)
	}

	err = s.api.FulfillRequest(ctx, id, api.RequestUpload{
		Name:       filepath.Base(path),
		Type:       typeOf(path),
		Ciphertext: ciphertext,
		IV:         nonce,
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "request fulfilled", "id", id, "size", len(ciphertext))
	return nil
}

// Status polls the server; idOrLink may be a bare id or a request link.
func (s *Requests) Status(ctx context.Context, idOrLink string) (api.RequestStatus, error) {
	id, err := requestID(idOrLink)
	if err != nil {
		return api.RequestStatus{}, err
	}
	return s.api.RequestStatus(ctx, id)
}

// Fetch downloads and decrypts the file uploaded to request id. The key
// comes from the local store, or from the server-side wrap and password.
// The key is resolved before the download so a wrong password never
// consumes a delete-on-download request.
func (s *Requests) Fetch(ctx context.Context, idOrLink, password string) (string, []byte, error) {
	id, err := requestID(idOrLink)
	if err != nil {
		return "", nil, err
	}

	status, err := s.api.RequestStatus(ctx, id)
	if err != nil {
		return "", nil, err
	}
	switch status.Status {
	case "deleted":
		return "", nil, common.ErrAlreadyDownloaded
	case "expired":
		return "", nil, common.ErrExpired
	}
	local, err := s.local.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}

	key, err := s.contentKey(status, local, password)
	if err != nil {
		return "", nil, err
	}
	defer common.WipeByteArray(key)

	d, err := s.api.DownloadRequest(ctx, id)
	if err != nil {
		return "", nil, err
	}
	defer d.Close()

	ciphertext, err := readBody(d.Body, common.ShareMaxBytes)
	if err != nil {
		return "", nil, err
	}

	nonce := d.IV
	if len(nonce) == 0 && status.File != nil {
		nonce = status.File.IV
	}
	if len(nonce) == 0 {
		return "", nil, common.ErrMissingKeyMaterial
	}
	plaintext, err := cryptox.Open(ciphertext, key, nonce)
	if err != nil {
		return "", nil, err
	}

	if status.DeleteOnDownload && local != nil {
		if err := s.local.Delete(ctx, id); err != nil {
			s.log.Warn(ctx, "forget consumed request", "id", id, "error", err)
		}
	}

	name := id
	if status.File != nil && status.File.Name != "" {
		name = status.File.Name
	}
	s.log.Info(ctx, "request fetched", "id", id, "size", len(plaintext))
	return name, plaintext, nil
}

// contentKey returns a copy of the request key the caller may wipe.
func (s *Requests) contentKey(status api.RequestStatus, local *requests.Request, password string) ([]byte, error) {
	if local != nil {
		return append([]byte(nil), local.ContentKey...), nil
	}
	if status.KeyWrap == nil {
		return nil, common.ErrMissingKeyMaterial
	}
	if password == "" {
		return nil, common.Invalid("password required to unwrap the request key")
	}
	env := envelope.Envelope{
		Mode:       envelope.Password,
		WrappedKey: status.KeyWrap.EncryptedKey,
		Salt:       status.KeyWrap.Salt,
		WrapNonce:  status.KeyWrap.WrapIV,
	}
	return env.ContentKeyFor(password)
}

// Pending lists the requests remembered on this machine.
func (s *Requests) Pending(ctx context.Context) ([]*requests.Request, error) {
	return s.local.List(ctx)
}

// HasKey reports whether the key of request id is stored locally.
func (s *Requests) HasKey(ctx context.Context, idOrLink string) (bool, error) {
	id, err := requestID(idOrLink)
	if err != nil {
		return false, err
	}
	local, err := s.local.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return local != nil, nil
}
