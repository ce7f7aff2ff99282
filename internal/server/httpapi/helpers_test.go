package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/auth"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

const testSecret = "test-secret"

type testAPI struct {
	*httptest.Server
	handler http.Handler
	reaper  *services.Reaper
	blobs   *blobstore.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logging.Nop()
	repos := memory.NewManager()
	blobs := blobstore.NewMemoryStore()
	reaper := services.NewReaper(log, time.Second)

	srv := NewServer(":0", log,
		services.NewShareService(repos, blobs, reaper, log, 1<<20, 24*time.Hour),
		services.NewRequestService(repos, blobs, reaper, log, 1<<20, 24*time.Hour),
		services.NewDriveService(repos, blobs, log, 2<<20, 1<<20),
		testSecret)

	h := srv.Handler()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return &testAPI{Server: ts, handler: h, reaper: reaper, blobs: blobs}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

// multipartBody builds a form with a "file" part named filename plus fields.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) do(t *testing.T, method, path, contentType string, body io.Reader, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := a.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a *testAPI) upload(t *testing.T, path, filename string, content []byte, fields map[string]string, bearer string) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, filename, content, fields)
	return a.do(t, http.MethodPost, path, ct, body, bearer)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return b
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
