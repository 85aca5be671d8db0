package storage

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound indicates the referenced object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrTooLarge indicates the object exceeds the caller's size limit
	ErrTooLarge = errors.New("object exceeds size limit")
)

// readLimited reads r fully, failing with ErrTooLarge once more than
// maxBytes have been read. maxBytes <= 0 disables the limit.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
