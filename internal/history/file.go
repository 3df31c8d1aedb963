package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjstillabower/weather-search/internal/models"
)

// FileRepository stores the slot as a JSON file. Writes go to a temp file in the same
// directory and are renamed over the slot, so readers never see a torn log.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository backed by path, creating its directory.
func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &FileRepository{path: path}, nil
}

// Load implements Repository.Load. A missing file is an empty log.
func (r *FileRepository) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return decodeEntries(raw)
}

// Save implements Repository.Save.
func (r *FileRepository) Save(ctx context.Context, entries []models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntries(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
