package ports

import (
	"context"
	"io"
)

// ObjectStorage holds media bytes under opaque storage refs.
type ObjectStorage interface {
	Put(ctx context.Context, ref string, body io.Reader) error
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete is a no-op for refs that do not exist.
	Delete(ctx context.Context, ref string) error
}
