package storage

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobStorage downloads images from blob containers.
type BlobStorage interface {
	GetBlob(ctx context.Context, container, blob string, maxBytes int64) ([]byte, error)
}

type azureStorage struct {
	client *azblob.Client
}

// NewAzureStorage authenticates with a shared account key.
func NewAzureStorage(accountName string, accountKey string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client}, nil
}

// NewAzureStorageFromConnectionString authenticates with a storage connection string.
func NewAzureStorageFromConnectionString(connectionString string) (BlobStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	return &azureStorage{client: client}, nil
}

func (s *azureStorage) GetBlob(ctx context.Context, container, blob string, maxBytes int64) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, blob)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}

	body := resp.Body
	defer body.Close()

	if maxBytes > 0 && resp.ContentLength != nil && *resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: blob size %d exceeds %d", ErrTooLarge, *resp.ContentLength, maxBytes)
	}

	return readLimited(body, maxBytes)
}
