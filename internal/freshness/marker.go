package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoMarker is returned by Marker.Load when nothing has been saved yet.
var ErrNoMarker = errors.New("freshness marker not found")

// Marker persists the last-modified timestamp across restarts.
type Marker interface {
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, t time.Time) error
}

type markerFile struct {
	Updated string `json:"updated"`
}

// FileMarker stores the timestamp as {"updated": "<RFC3339Nano>"} in a
// single JSON file.
type FileMarker struct {
	path string
}

func NewFileMarker(path string) *FileMarker {
	return &FileMarker{path: path}
}

func (m *FileMarker) Path() string { return m.path }

func (m *FileMarker) Load(ctx context.Context) (time.Time, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, ErrNoMarker
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read marker: %w", err)
	}

	var f markerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return time.Time{}, fmt.Errorf("decode marker %s: %w", m.path, err)
	}
	t, err := time.Parse(time.RFC3339Nano, f.Updated)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse marker timestamp %q: %w", f.Updated, err)
	}
	return t, nil
}

// Save replaces the marker file through a temp file and rename so readers
// never see a partial write.
func (m *FileMarker) Save(ctx context.Context, t time.Time) error {
	data, err := json.Marshal(markerFile{Updated: t.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp marker: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp marker: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("replace marker: %w", err)
	}
	return nil
}
