package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
)

// Progress returns the writer fed with the bytes of one transfer. It may
// return nil to stay silent.
type Progress func(label string, total int64) io.Writer

// WithProgress reports upload and download byte counts to p.
func WithProgress(p Progress) Option {
	return func(_ *retryablehttp.Client, c *Client) { c.progress = p }
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formFile struct {
	name        string
	contentType string
	content     []byte
}

// multipartForm encodes fields and one "file" part.
func multipartForm(fields map[string]string, file formFile) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.name)))
	ct := file.contentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(file.content); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// upload posts a multipart payload. Each attempt replays the payload through
// a fresh progress writer.
func (c *Client) upload(ctx context.Context, path, label string, payload []byte, contentType string, out any) error {
	var body interface{} = payload
	if c.progress != nil {
		body = retryablehttp.ReaderFunc(func() (io.Reader, error) {
			var r io.Reader = bytes.NewReader(payload)
			if w := c.progress(label, int64(len(payload))); w != nil {
				r = io.TeeReader(r, w)
			}
			return r, nil
		})
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Type", contentType)
	return c.doJSON(req, out)
}

// download opens a streamed GET. The caller closes the result.
func (c *Client) download(ctx context.Context, path, label string) (*Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	d := &Download{
		Body: resp.Body,
		Size: resp.ContentLength,
		Type: resp.Header.Get("Content-Type"),
		Name: attachmentName(resp.Header.Get("Content-Disposition")),
	}
	if v := resp.Header.Get(common.ContentNonceHeader); v != "" {
		iv, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			resp.Body.Close()
			return nil, common.Wrap(common.ErrMalformedKeyMaterial, err)
		}
		d.IV = iv
	}
	if c.progress != nil {
		if w := c.progress(label, d.Size); w != nil {
			d.Body = struct {
				io.Reader
				io.Closer
			}{io.TeeReader(resp.Body, w), resp.Body}
		}
	}
	return d, nil
}
