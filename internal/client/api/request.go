package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
)

// CreateRequest opens a file request. A KeyWrap lets the requester recover
// the key later from any machine with the password.
func (c *Client) CreateRequest(ctx context.Context, in CreateRequest) (Created, error) {
	body, err := jsonBody(in)
	if err != nil {
		return Created{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/request/create", body)
	if err != nil {
		return Created{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out Created
	if err := c.doJSON(req, &out); err != nil {
		return Created{}, err
	}
	return out, nil
}

func (c *Client) FulfillRequest(ctx context.Context, id string, in RequestUpload) error {
	fields := map[string]string{
		"iv":   base64.StdEncoding.EncodeToString(in.IV),
		"type": in.Type,
	}
	payload, ct, err := multipartForm(fields, formFile{name: in.Name, contentType: "application/octet-stream", content: in.Ciphertext})
	if err != nil {
		return err
	}
	var out successResponse
	return c.upload(ctx, "/request/"+url.PathEscape(id)+"/upload", "upload "+in.Name, payload, ct, &out)
}

func (c *Client) RequestStatus(ctx context.Context, id string) (RequestStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/request/"+url.PathEscape(id)+"/status", nil)
	if err != nil {
		return RequestStatus{}, err
	}
	var out RequestStatus
	if err := c.doJSON(req, &out); err != nil {
		return RequestStatus{}, err
	}
	return out, nil
}

func (c *Client) DownloadRequest(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/request/"+url.PathEscape(id)+"/download", "download")
}
