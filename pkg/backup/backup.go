package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	namePrefix     = "backup-"
	nameTimeLayout = "20060102-150405"
)

// ErrNoArchives is returned by Latest when storage holds nothing.
var ErrNoArchives = errors.New("no archives found")

// Snapshot is one archived capture. The payload stays raw JSON so the
// archive format survives changes to whatever the caller stores in it.
type Snapshot struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Storage persists named archives.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Service writes and reads snapshots against a storage backend.
type Service struct {
	storage Storage
	version string
}

// NewService creates a snapshot service stamping archives with version.
func NewService(storage Storage, version string) *Service {
	return &Service{
		storage: storage,
		version: version,
	}
}

// Create archives the payload and returns the archive name. Archives
// created within the same second share a name and overwrite.
func (s *Service) Create(ctx context.Context, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive payload: %w", err)
	}

	snapshot := Snapshot{
		Version:   s.version,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("%s%s.json", namePrefix, snapshot.Timestamp.Format(nameTimeLayout))
	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save archive: %w", err)
	}

	return name, nil
}

// Load reads the named snapshot back.
func (s *Service) Load(ctx context.Context, name string) (*Snapshot, error) {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// List returns all archive names.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.storage.List(ctx, namePrefix)
}

// Latest returns the newest archive name by embedded timestamp.
func (s *Service) Latest(ctx context.Context) (string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	var latest string
	var latestAt time.Time
	for _, name := range names {
		at, err := TimestampOf(name)
		if err != nil {
			continue
		}
		if latest == "" || at.After(latestAt) {
			latest = name
			latestAt = at
		}
	}

	if latest == "" {
		return "", ErrNoArchives
	}
	return latest, nil
}

// Delete removes an archive.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}

// TimestampOf parses the creation time out of an archive name.
func TimestampOf(name string) (time.Time, error) {
	trimmed := strings.TrimPrefix(name, namePrefix)
	trimmed = strings.TrimSuffix(trimmed, ".json")
	return time.Parse(nameTimeLayout, trimmed)
}
