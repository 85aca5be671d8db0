package repository

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/storage"
	"github.com/anime-shed/image-quality-engine/pkg/validation"
)

const (
	backendLocal = "local"
	backendHTTP  = "http"
	backendBlob  = "azblob"
)

var _ ImageRepository = (*SourceImageRepository)(nil)

// SourceImageRepository dispatches references to a backend by scheme.
// Bare paths and file:// URLs read from disk, http(s) URLs go through the
// fetcher and azblob://container/blob references through blob storage.
type SourceImageRepository struct {
	files     storage.FileStorage
	fetcher   storage.ImageFetcher
	blobs     storage.BlobStorage
	validator *validation.URLValidator
}

// NewSourceImageRepository creates a repository. fetcher and blobs may be
// nil, in which case references needing them fail validation.
func NewSourceImageRepository(files storage.FileStorage, fetcher storage.ImageFetcher, blobs storage.BlobStorage) *SourceImageRepository {
	if files == nil {
		files = storage.NewLocalStorage()
	}
	return &SourceImageRepository{
		files:     files,
		fetcher:   fetcher,
		blobs:     blobs,
		validator: validation.NewURLValidator(),
	}
}

// NewLocalImageRepository only serves filesystem references.
func NewLocalImageRepository() *SourceImageRepository {
	return NewSourceImageRepository(nil, nil, nil)
}

func (r *SourceImageRepository) ValidateReference(ref string) error {
	_, err := r.backendFor(ref)
	return err
}

func (r *SourceImageRepository) Load(ctx context.Context, ref string, maxBytes int64) (*ImageObject, error) {
	backend, err := r.backendFor(ref)
	if err != nil {
		return nil, err
	}

	obj := &ImageObject{
		Reference: ref,
		Name:      validation.ReferenceName(ref),
		Backend:   backend,
	}

	switch backend {
	case backendLocal:
		path := strings.TrimPrefix(ref, "file://")
		size, err := r.files.Stat(path)
		if err != nil {
			return nil, classify(ref, backend, maxBytes, err)
		}
		if maxBytes > 0 && size > maxBytes {
			return nil, apperrors.NewFileTooLargeError(
				fmt.Sprintf("image is %d bytes, limit is %d", size, maxBytes), nil)
		}
		obj.Data, err = r.files.ReadFile(ctx, path, maxBytes)
		if err != nil {
			return nil, classify(ref, backend, maxBytes, err)
		}

	case backendHTTP:
		obj.Data, err = r.fetcher.FetchImage(ctx, ref, maxBytes)
		if err != nil {
			return nil, classify(ref, backend, maxBytes, err)
		}

	case backendBlob:
		u, _ := r.validator.ParseImageURL(ref)
		obj.Data, err = r.blobs.GetBlob(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), maxBytes)
		if err != nil {
			return nil, classify(ref, backend, maxBytes, err)
		}
	}

	return obj, nil
}

func (r *SourceImageRepository) backendFor(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", apperrors.NewValidationError("image reference cannot be empty", nil)
	}

	scheme := schemeOf(ref)
	switch scheme {
	case "", "file":
		return backendLocal, nil
	case "http", "https":
		if _, err := r.validator.ParseImageURL(ref); err != nil {
			return "", err
		}
		if r.fetcher == nil {
			return "", apperrors.NewValidationError("remote references are disabled", ErrBackendDisabled)
		}
		return backendHTTP, nil
	case "azblob":
		if _, err := r.validator.ParseImageURL(ref); err != nil {
			return "", err
		}
		if r.blobs == nil {
			return "", apperrors.NewValidationError("blob storage is not configured", ErrBackendDisabled)
		}
		return backendBlob, nil
	default:
		return "", apperrors.NewValidationError(
			fmt.Sprintf("scheme %q not supported", scheme), ErrUnsupportedScheme)
	}
}

// schemeOf returns the lower-cased scheme of ref, or "" for plain paths.
func schemeOf(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}
