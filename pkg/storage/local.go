package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalArchive implements Archive on the local filesystem as
// <base>/<source>/<id-prefix>_<name> with JSON metadata under <base>/<source>/.meta.
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

// NewLocalArchive creates the base directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

func (s *LocalArchive) Save(_ context.Context, source string, id uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error) {
	dir := filepath.Join(s.basePath, sanitize(source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitize(filename))
	path := filepath.Join(dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          id,
		Source:      source,
		Name:        filename,
		Size:        size,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.writeMeta(source, info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

func (s *LocalArchive) Open(_ context.Context, source string, id uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.readMeta(source, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, sanitize(source), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// List returns the archived files of a source, newest first.
func (s *LocalArchive) List(_ context.Context, source string) ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, sanitize(source), metaDir))
	if errors.Is(err, os.ErrNotExist) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.readMeta(source, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

func (s *LocalArchive) Delete(_ context.Context, source string, id uuid.UUID) error {
	info, err := s.readMeta(source, id)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.basePath, sanitize(source))
	if err := os.Remove(filepath.Join(dir, info.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(s.metaPath(source, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *LocalArchive) metaPath(source string, id uuid.UUID) string {
	return filepath.Join(s.basePath, sanitize(source), metaDir, id.String()+".json")
}

func (s *LocalArchive) readMeta(source string, id uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(source, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalArchive) writeMeta(source string, info *FileInfo) error {
	if err := os.MkdirAll(filepath.Join(s.basePath, sanitize(source), metaDir), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(source, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitize(name string) string {
	name = unsafeChars.Replace(strings.TrimSpace(name))
	if name == "" {
		return "unnamed"
	}
	return name
}
