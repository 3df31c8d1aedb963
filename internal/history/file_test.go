package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kjstillabower/weather-search/internal/models"
)

func TestFileRepository_MissingFileIsEmpty(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "nested", "history.json"))
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	got, err := repo.Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("Load() = %v, %v; want empty, nil", got, err)
	}
}

func TestFileRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	repo, _ := NewFileRepository(path)

	want := []models.HistoryEntry{entry("Paris"), entry("Lyon")}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileRepository_SaveEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	repo, _ := NewFileRepository(path)
	if err := repo.Save(context.Background(), nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "[]" {
		t.Errorf("file = %q, want []", raw)
	}
}

func TestFileRepository_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	os.WriteFile(path, []byte("[{"), 0o644)
	repo, _ := NewFileRepository(path)

	_, err := repo.Load(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestFileRepository_WireKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	repo, _ := NewFileRepository(path)
	repo.Save(context.Background(), []models.HistoryEntry{entry("Paris")})

	raw, _ := os.ReadFile(path)
	for _, key := range []string{`"country"`, `"city"`, `"weather_desc"`, `"feels_like"`, `"localTime"`, `"sunrise"`, `"sunset"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("persisted JSON missing %s: %s", key, raw)
		}
	}
}

func TestNewFileRepository_EmptyPath(t *testing.T) {
	if _, err := NewFileRepository(""); err == nil {
		t.Error("NewFileRepository(\"\") error = nil, want error")
	}
}
