package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
)

// UploadShare stores an encrypted share and returns its id.
func (c *Client) UploadShare(ctx context.Context, in ShareUpload) (Created, error) {
	fields := map[string]string{
		"iv":   base64.StdEncoding.EncodeToString(in.IV),
		"type": in.Type,
	}
	if in.ExpirationHours > 0 {
		fields["expiration"] = strconv.Itoa(in.ExpirationHours)
	}
	if in.DeleteOnDownload {
		fields["deleteOnDownload"] = "true"
	}

	payload, ct, err := multipartForm(fields, formFile{name: in.Name, contentType: "application/octet-stream", content: in.Ciphertext})
	if err != nil {
		return Created{}, err
	}

	var out Created
	if err := c.upload(ctx, "/share/upload", "upload "+in.Name, payload, ct, &out); err != nil {
		return Created{}, err
	}
	return out, nil
}

func (c *Client) ShareMeta(ctx context.Context, id string) (ShareMeta, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/share/"+url.PathEscape(id)+"/meta", nil)
	if err != nil {
		return ShareMeta{}, err
	}
	var out ShareMeta
	if err := c.doJSON(req, &out); err != nil {
		return ShareMeta{}, err
	}
	return out, nil
}

// PreviewShare streams the ciphertext without consuming the share.
func (c *Client) PreviewShare(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/share/"+url.PathEscape(id), "preview")
}

// DownloadShare streams the ciphertext. A delete-on-download share is
// consumed by this call.
func (c *Client) DownloadShare(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/share/"+url.PathEscape(id)+"/download", "download")
}
