package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// azureAPI is the subset of *azblob.Client used by AzureStore.
type azureAPI interface {
	UploadStream(ctx context.Context, containerName string, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
	DownloadStream(ctx context.Context, containerName string, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName string, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
}

var newAzureClient = func(connectionString string) (azureAPI, error) {
	return azblob.NewClientFromConnectionString(connectionString, nil)
}

// AzureStore stores blobs as block blobs in one container.
type AzureStore struct {
	client    azureAPI
	container string
}

// NewAzureStore connects with a storage account connection string and
// creates the container if it does not exist yet.
func NewAzureStore(ctx context.Context, connectionString, container string) (*AzureStore, error) {
	client, err := newAzureClient(connectionString)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("azure create container %s: %w", container, err)
	}
	return &AzureStore{client: client, container: container}, nil
}

func (a *AzureStore) Put(ctx context.Context, path string, body io.ReadSeeker, size int64, contentType string) error {
	_, err := a.client.UploadStream(ctx, a.container, path, io.LimitReader(body, size), &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("azure put %s: %w", path, err)
	}
	return nil
}

func (a *AzureStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("azure get %s: %w", path, err)
	}
	return resp.Body, nil
}

func (a *AzureStore) Delete(ctx context.Context, path string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, path, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("azure delete %s: %w", path, err)
	}
	return nil
}

// Copy streams the source through the server. Server-side copy from URL
// needs a SAS for the source, which connection-string auth does not give us.
func (a *AzureStore) Copy(ctx context.Context, src, dst string) error {
	body, err := a.Get(ctx, src)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := a.client.UploadStream(ctx, a.container, dst, body, nil); err != nil {
		return fmt.Errorf("azure copy %s -> %s: %w", src, dst, err)
	}
	return nil
}
