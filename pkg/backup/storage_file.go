package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage keeps archives as files in one directory.
type FileStorage struct {
	basePath string
}

// NewFileStorage creates the directory if needed.
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &FileStorage{
		basePath: basePath,
	}, nil
}

// Save writes the archive through a dot-prefixed temp file so a crash
// mid-write never leaves a truncated archive under its final name.
func (fs *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	finalPath := filepath.Join(fs.basePath, name)
	tmpPath := filepath.Join(fs.basePath, "."+name+".tmp")

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write archive data: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish archive file: %w", err)
	}

	return nil
}

// Load opens an archive for reading.
func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(fs.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}

	return file, nil
}

// List returns archive names with the given prefix.
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}

// Delete removes an archive file.
func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(fs.basePath, name))
}
