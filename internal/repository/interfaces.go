package repository

import (
	"context"
)

// ImageRepository resolves image references to raw bytes
type ImageRepository interface {
	// Load reads ref fully. Existence and size are checked before the
	// body is read where the backend allows it.
	Load(ctx context.Context, ref string, maxBytes int64) (*ImageObject, error)

	// ValidateReference checks ref without touching any backend
	ValidateReference(ref string) error
}

// ImageObject is a loaded image before decoding
type ImageObject struct {
	Reference string
	Name      string
	Backend   string
	Data      []byte
}

// Size returns the loaded byte count.
func (o *ImageObject) Size() int64 {
	return int64(len(o.Data))
}
