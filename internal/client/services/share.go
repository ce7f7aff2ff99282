// Package services runs the client half of the exchange protocol: files are
// encrypted here, key material travels in link fragments, and the server
// only ever sees ciphertext.
package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/cipherdrop/internal/client/api"
	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/cryptox"
	"github.com/dmitrijs2005/cipherdrop/internal/envelope"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
)

type SendOptions struct {
	// Password switches the link to password mode when set.
	Password         string
	ExpiryHours      int
	DeleteOnDownload bool
}

type Sender struct {
	api *api.Client
	log logging.Logger
}

func NewSender(c *api.Client, log logging.Logger) *Sender {
	return &Sender{api: c, log: log}
}

// SendFile encrypts the file at path under a fresh key, uploads the
// ciphertext and returns the share link.
func (s *Sender) SendFile(ctx context.Context, path string, opts SendOptions) (string, error) {
	plaintext, err := readLocal(path, common.ShareMaxBytes-gcmTagSize, common.ErrFileTooLarge)
	if err != nil {
		return "", err
	}

	key := cryptox.NewContentKey()
	defer common.WipeByteArray(key)
	nonce := cryptox.NewNonce()

	ciphertext, err := cryptox.Seal(plaintext, key, nonce)
	common.WipeByteArray(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt %s: %w", path, err)
	}

	var env envelope.Envelope
	if opts.Password != "" {
		env, err = envelope.NewPassword(key, nonce, opts.Password)
	} else {
		env, err = envelope.NewSimple(key, nonce)
	}
	if err != nil {
		return "", err
	}

	name := filepath.Base(path)
	created, err := s.api.UploadShare(ctx, api.ShareUpload{
		Name:             name,
		Type:             typeOf(path),
		Ciphertext:       ciphertext,
		IV:               nonce,
		ExpirationHours:  opts.ExpiryHours,
		DeleteOnDownload: opts.DeleteOnDownload,
	})
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "share uploaded", "id", created.ID, "mode", env.Mode.String(), "expires_at", created.ExpiresAt)
	return link(s.api.BaseURL(), "share", created.ID, env), nil
}

type Receiver struct {
	api *api.Client
	log logging.Logger
}

func NewReceiver(c *api.Client, log logging.Logger) *Receiver {
	return &Receiver{api: c, log: log}
}

// ReceiveShare downloads and decrypts the share behind link. In password
// mode the password is checked against the wrapped key before the download,
// so a typo never consumes a delete-on-download share.
func (r *Receiver) ReceiveShare(ctx context.Context, shareLink, password string) (string, []byte, error) {
	id, fragment, err := parseLink(shareLink, "share")
	if err != nil {
		return "", nil, err
	}
	env, err := envelope.Parse(fragment)
	if err != nil {
		return "", nil, err
	}

	meta, err := r.api.ShareMeta(ctx, id)
	if err != nil {
		return "", nil, err
	}

	key, err := env.ContentKeyFor(password)
	if err != nil {
		return "", nil, err
	}
	if env.NeedsPassword() {
		defer common.WipeByteArray(key)
	}

	d, err := r.api.DownloadShare(ctx, id)
	if err != nil {
		return "", nil, err
	}
	defer d.Close()

	ciphertext, err := readBody(d.Body, common.ShareMaxBytes)
	if err != nil {
		return "", nil, err
	}
	plaintext, err := cryptox.Open(ciphertext, key, env.ContentNonce)
	if err != nil {
		return "", nil, err
	}

	r.log.Info(ctx, "share received", "id", id, "size", len(plaintext))
	return meta.Name, plaintext, nil
}
