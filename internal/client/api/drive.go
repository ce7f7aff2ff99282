package api

import (
	"context"
	"mime"
	"net/http"
	"net/url"
)

func (c *Client) DriveUpload(ctx context.Context, in DriveUpload) (DriveFile, error) {
	payload, ct, err := multipartForm(map[string]string{"folderId": in.FolderID},
		formFile{name: in.Name, contentType: in.Type, content: in.Content})
	if err != nil {
		return DriveFile{}, err
	}
	var out driveFileResponse
	if err := c.upload(ctx, "/drive/upload", "upload "+in.Name, payload, ct, &out); err != nil {
		return DriveFile{}, err
	}
	return out.File, nil
}

// DriveList lists the files in folderID; an empty folderID is the root.
func (c *Client) DriveList(ctx context.Context, folderID string) (DriveListing, error) {
	path := "/drive/files"
	if folderID != "" {
		path += "?" + url.Values{"folderId": {folderID}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return DriveListing{}, err
	}
	var out DriveListing
	if err := c.doJSON(req, &out); err != nil {
		return DriveListing{}, err
	}
	return out, nil
}

// DriveDownload streams the decrypted file. Name comes from the
// Content-Disposition header.
func (c *Client) DriveDownload(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/drive/files/"+url.PathEscape(id)+"/download", "download")
}

func (c *Client) DriveDelete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/drive/files/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	var out successResponse
	return c.doJSON(req, &out)
}

func (c *Client) DrivePatch(ctx context.Context, id string, in DrivePatch) (DriveFile, error) {
	body, err := jsonBody(in)
	if err != nil {
		return DriveFile{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/drive/files/"+url.PathEscape(id), body)
	if err != nil {
		return DriveFile{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out driveFileResponse
	if err := c.doJSON(req, &out); err != nil {
		return DriveFile{}, err
	}
	return out.File, nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
