package factory

import (
	"fmt"

	"github.com/anime-shed/image-quality-engine/internal/config"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/repository"
	"github.com/anime-shed/image-quality-engine/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// StorageFactory builds the backends an ImageRepository dispatches to.
type StorageFactory interface {
	Enabled(storageType StorageType) bool
	CreateFileStorage() storage.FileStorage
	CreateFetcher() (storage.ImageFetcher, error)
	CreateBlobStorage() (storage.BlobStorage, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a factory driven by cfg.
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

func (f *storageFactory) Enabled(storageType StorageType) bool {
	switch storageType {
	case LocalStorage:
		return true
	case HTTPStorage:
		return f.cfg.RemoteSources
	case AzureStorage:
		return f.cfg.RemoteSources && f.cfg.AzureConfigured()
	default:
		return false
	}
}

func (f *storageFactory) CreateFileStorage() storage.FileStorage {
	return storage.NewLocalStorage()
}

func (f *storageFactory) CreateFetcher() (storage.ImageFetcher, error) {
	if !f.Enabled(HTTPStorage) {
		return nil, fmt.Errorf("storage type %s is disabled", HTTPStorage)
	}
	return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout), nil
}

func (f *storageFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	if !f.Enabled(AzureStorage) {
		return nil, fmt.Errorf("storage type %s is disabled", AzureStorage)
	}
	if f.cfg.AzureConnectString != "" {
		return storage.NewAzureStorageFromConnectionString(f.cfg.AzureConnectString)
	}
	return storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
}

// NewImageRepository wires every enabled backend into one repository.
// Disabled backends stay nil and references to them fail validation.
func NewImageRepository(f StorageFactory) (repository.ImageRepository, error) {
	var (
		fetcher storage.ImageFetcher
		blobs   storage.BlobStorage
		err     error
	)

	if f.Enabled(HTTPStorage) {
		if fetcher, err = f.CreateFetcher(); err != nil {
			return nil, err
		}
	}
	if f.Enabled(AzureStorage) {
		if blobs, err = f.CreateBlobStorage(); err != nil {
			return nil, fmt.Errorf("failed to create azure storage: %w", err)
		}
	}

	logger.WithField("http", fetcher != nil).
		WithField("azblob", blobs != nil).
		Debug("Image sources configured")

	return repository.NewSourceImageRepository(f.CreateFileStorage(), fetcher, blobs), nil
}
