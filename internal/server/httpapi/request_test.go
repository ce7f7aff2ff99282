package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cipherdrop/internal/cryptox"
	"github.com/dmitrijs2005/cipherdrop/internal/envelope"
)

func TestRequest_FulfillScenario(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/request/create", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[CreatedResponse](t, resp)
	id := created.ID

	resp = api.do(t, http.MethodGet, "/request/"+id+"/status", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[RequestStatusResponse](t, resp)
	assert.Equal(t, "pending", st.Status)
	assert.False(t, st.Available)
	assert.Nil(t, st.File)
	assert.True(t, st.ExpiresAt.Equal(created.ExpiresAt))

	resp = api.do(t, http.MethodGet, "/request/"+id+"/download", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_fulfilled", decode[ErrorBody](t, resp).Code)

	key, iv := cryptox.NewContentKey(), cryptox.NewNonce()
	plaintext := []byte("signed contract")
	ciphertext, err := cryptox.Seal(plaintext, key, iv)
	require.NoError(t, err)

	resp = api.upload(t, "/request/"+id+"/upload", "contract.pdf", ciphertext, map[string]string{"iv": b64(iv), "type": "application/pdf"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[SuccessResponse](t, resp).Success)

	resp = api.upload(t, "/request/"+id+"/upload", "other.pdf", ciphertext, map[string]string{"iv": b64(iv)}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_fulfilled", decode[ErrorBody](t, resp).Code)

	resp = api.do(t, http.MethodGet, "/request/"+id+"/status", "", nil, "")
	st = decode[RequestStatusResponse](t, resp)
	assert.Equal(t, "fulfilled", st.Status)
	assert.True(t, st.Available)
	require.NotNil(t, st.File)
	assert.Equal(t, "contract.pdf", st.File.Name)
	assert.Equal(t, iv, st.File.IV)
	assert.NotNil(t, st.FulfilledAt)

	resp = api.do(t, http.MethodGet, "/request/"+id+"/download", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	served := readBody(t, resp)
	assert.Equal(t, ciphertext, served)

	env, err := envelope.NewSimple(key, iv)
	require.NoError(t, err)
	got, err := env.Decrypt(served, "")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	api.reaper.Wait()
	resp = api.do(t, http.MethodGet, "/request/"+id+"/status", "", nil, "")
	assert.Equal(t, "downloaded", decode[RequestStatusResponse](t, resp).Status)
}

func TestRequest_KeyWrapRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	env, err := envelope.NewPassword(cryptox.NewContentKey(), cryptox.NewNonce(), "correct-horse")
	require.NoError(t, err)

	body, err := json.Marshal(CreateRequestBody{
		DeleteOnDownload: true,
		KeyWrap:          &KeyWrapJSON{EncryptedKey: env.WrappedKey, Salt: env.Salt, WrapIV: env.WrapNonce},
	})
	require.NoError(t, err)

	resp := api.do(t, http.MethodPost, "/request/create", "application/json", bytes.NewReader(body), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := decode[CreatedResponse](t, resp).ID

	resp = api.do(t, http.MethodGet, "/request/"+id+"/status", "", nil, "")
	st := decode[RequestStatusResponse](t, resp)
	require.NotNil(t, st.KeyWrap)
	assert.True(t, st.DeleteOnDownload)
	assert.Equal(t, env.WrappedKey, st.KeyWrap.EncryptedKey)
	assert.Equal(t, env.Salt, st.KeyWrap.Salt)
}

func TestRequest_DestructiveDownloadIsGoneAfterwards(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/request/create", "application/json", strings.NewReader(`{"deleteOnDownload":true}`), "")
	id := decode[CreatedResponse](t, resp).ID

	resp = api.upload(t, "/request/"+id+"/upload", "x.bin", []byte("ct"), map[string]string{"iv": b64(cryptox.NewNonce())}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/request/"+id+"/download", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)
	api.reaper.Wait()

	resp = api.do(t, http.MethodGet, "/request/"+id+"/download", "", nil, "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "already_downloaded", decode[ErrorBody](t, resp).Code)
}

func TestRequest_Errors(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/request/create", "application/json", strings.NewReader(`{`), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/request/create", "application/json",
		strings.NewReader(`{"keyWrap":{"encryptedKey":"AAAA","salt":"AAAA","wrapIv":"AAAA"}}`), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "malformed_key_material", decode[ErrorBody](t, resp).Code)

	resp = api.do(t, http.MethodGet, "/request/missing/status", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.upload(t, "/request/missing/upload", "x", []byte("x"), map[string]string{"iv": b64(cryptox.NewNonce())}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
