package storage

import (
	"context"
	"io"
)

// Uploader stores a binary asset and returns a public URL for it. The session
// core treats the returned URL as an opaque string.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}
