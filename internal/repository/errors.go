package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/storage"
)

var (
	// ErrBackendDisabled indicates the reference needs a backend that is not configured
	ErrBackendDisabled = errors.New("storage backend not configured")

	// ErrUnsupportedScheme indicates a reference scheme no backend handles
	ErrUnsupportedScheme = errors.New("unsupported reference scheme")
)

// classify maps a storage failure onto the application error taxonomy.
// Context errors pass through untouched so the analyzer can decide between
// timeout and cancellation.
func classify(ref, backend string, maxBytes int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NewFileNotFoundError(fmt.Sprintf("image not found: %s", ref), err)
	case errors.Is(err, storage.ErrTooLarge):
		return apperrors.NewFileTooLargeError(fmt.Sprintf("image exceeds the %d byte limit", maxBytes), err)
	case backend == backendLocal:
		return apperrors.NewInternalError(fmt.Sprintf("failed to read %s", ref), err)
	default:
		return apperrors.NewNetworkError(fmt.Sprintf("failed to download %s", ref), err)
	}
}
