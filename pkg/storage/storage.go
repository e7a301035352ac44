// Package storage archives raw uploaded files next to the import job that read them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no archived file has the requested id.
var ErrNotFound = errors.New("archived file not found")

// FileInfo contains metadata about an archived upload
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Archive stores raw upload bytes per source. The id is the import job id.
type Archive interface {
	Save(ctx context.Context, source string, id uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error)
	Open(ctx context.Context, source string, id uuid.UUID) (io.ReadCloser, *FileInfo, error)
	List(ctx context.Context, source string) ([]*FileInfo, error)
	Delete(ctx context.Context, source string, id uuid.UUID) error
}
