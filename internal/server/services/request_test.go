package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/memory"
)

func fulfill(e *env, id string) error {
	r, n := body(64)
	return e.requests.Upload(context.Background(), id, FulfillInput{Body: r, Size: n, IV: nonce(), Name: "scan.png", Type: "image/png"})
}

func TestRequestService_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.requests.Create(ctx, CreateRequestInput{})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, e.clock.now().Add(24*time.Hour), req.ExpiresAt)

	st, err := e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, st.Status)

	_, err = e.requests.Download(ctx, req.ID)
	assert.ErrorIs(t, err, common.ErrNotFulfilled)

	require.NoError(t, fulfill(e, req.ID))
	assert.ErrorIs(t, fulfill(e, req.ID), common.ErrAlreadyFulfilled)
	assert.Equal(t, 1, e.blobs.Len(), "rejected upload leaves no blob")

	st, err = e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestFulfilled, st.Status)
	require.NotNil(t, st.File)
	assert.Equal(t, "scan.png", st.File.Name)
	assert.NotNil(t, st.FulfilledAt)

	for range 2 {
		b, err := e.requests.Download(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, nonce(), b.ContentNonce)
		assert.Len(t, readAll(t, b), 64)
		e.reaper.Wait()
	}

	st, err = e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestDownloaded, st.Status)
}

func TestRequestService_DestructiveDownload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.requests.Create(ctx, CreateRequestInput{DeleteOnDownload: true})
	require.NoError(t, err)
	require.NoError(t, fulfill(e, req.ID))

	b, err := e.requests.Download(ctx, req.ID)
	require.NoError(t, err)
	readAll(t, b)
	e.reaper.Wait()
	assert.Equal(t, 0, e.blobs.Len())

	_, err = e.requests.Download(ctx, req.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyDownloaded)
	assert.ErrorIs(t, fulfill(e, req.ID), common.ErrAlreadyFulfilled)

	st, err := e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestDeleted, st.Status)
}

func TestRequestService_Expiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pending, err := e.requests.Create(ctx, CreateRequestInput{})
	require.NoError(t, err)
	done, err := e.requests.Create(ctx, CreateRequestInput{})
	require.NoError(t, err)
	require.NoError(t, fulfill(e, done.ID))

	e.clock.advance(25 * time.Hour)

	assert.ErrorIs(t, fulfill(e, pending.ID), common.ErrExpired)
	_, err = e.requests.Download(ctx, done.ID)
	assert.ErrorIs(t, err, common.ErrExpired)
	e.reaper.Wait()
	assert.Equal(t, 0, e.blobs.Len())

	st, err := e.requests.Status(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestExpired, st.Status)
}

func TestRequestService_StatusExpiresLazily(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.requests.Create(ctx, CreateRequestInput{})
	require.NoError(t, err)
	e.clock.advance(24 * time.Hour)

	st, err := e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, st.Status, "live at the expiry instant")

	e.clock.advance(time.Second)
	st, err = e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestExpired, st.Status)
	assert.NotNil(t, st.ClosedAt)
}

func TestRequestService_CreateKeyWrap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	good := &models.KeyWrap{
		EncryptedKey: bytes.Repeat([]byte{1}, 48),
		Salt:         bytes.Repeat([]byte{2}, 16),
		WrapIV:       bytes.Repeat([]byte{3}, 12),
	}
	req, err := e.requests.Create(ctx, CreateRequestInput{KeyWrap: good})
	require.NoError(t, err)

	got, err := e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.KeyWrap)
	assert.Equal(t, good.Salt, got.KeyWrap.Salt)

	_, err = e.requests.Create(ctx, CreateRequestInput{KeyWrap: &models.KeyWrap{EncryptedKey: []byte{1}, Salt: good.Salt, WrapIV: good.WrapIV}})
	assert.ErrorIs(t, err, common.ErrMalformedKeyMaterial)
}

func TestRequestService_UploadValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.requests.Create(ctx, CreateRequestInput{})
	require.NoError(t, err)

	assert.ErrorIs(t, e.requests.Upload(ctx, "missing", FulfillInput{}), common.ErrFileNotFound)
	assert.ErrorIs(t, e.requests.Upload(ctx, req.ID, FulfillInput{}), common.ErrNoFile)

	r, n := body(8)
	assert.ErrorIs(t, e.requests.Upload(ctx, req.ID, FulfillInput{Body: r, Size: n, IV: []byte{1, 2}}), common.ErrInvalidInput)
	assert.ErrorIs(t, e.requests.Upload(ctx, req.ID, FulfillInput{Body: r, Size: 2 << 20, IV: nonce()}), common.ErrFileTooLarge)
}

func TestRequestService_CompensatesFailedFulfill(t *testing.T) {
	mem := memory.NewManager()
	repos := &failingManager{RepositoryManager: mem}
	e := newEnvWith(t, repos, nil)
	ctx := context.Background()

	req, err := e.requests.Create(ctx, CreateRequestInput{})
	require.NoError(t, err)

	repos.requests = &failingFulfill{Repository: mem.Requests(nil)}
	require.ErrorIs(t, fulfill(e, req.ID), errBoom)
	assert.Equal(t, 0, e.blobs.Len())
}

func TestRequestService_StorageErrorKeepsDestructiveRequest(t *testing.T) {
	flaky := &flakyStore{}
	e := newEnvWith(t, memory.NewManager(), func(s blobstore.Store) blobstore.Store {
		flaky.Store = s
		return flaky
	})
	ctx := context.Background()

	req, err := e.requests.Create(ctx, CreateRequestInput{DeleteOnDownload: true})
	require.NoError(t, err)
	require.NoError(t, fulfill(e, req.ID))

	flaky.getErr = errBoom
	_, err = e.requests.Download(ctx, req.ID)
	require.ErrorIs(t, err, errBoom)
	e.reaper.Wait()

	st, err := e.requests.Status(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestFulfilled, st.Status)
	assert.Equal(t, 1, e.blobs.Len())

	flaky.getErr = nil
	b, err := e.requests.Download(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, readAll(t, b), 64)
	e.reaper.Wait()
	assert.Equal(t, 0, e.blobs.Len())
}
