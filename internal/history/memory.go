package history

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-search/internal/models"
)

// MemoryRepository keeps the encoded slot in process memory. Safe for concurrent use.
type MemoryRepository struct {
	mu  sync.Mutex
	raw []byte
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load implements Repository.Load.
func (r *MemoryRepository) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return decodeEntries(r.raw)
}

// Save implements Repository.Save.
func (r *MemoryRepository) Save(ctx context.Context, entries []models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = raw
	return nil
}

// SetRaw replaces the stored payload verbatim. Used to seed corrupt or legacy slots.
func (r *MemoryRepository) SetRaw(raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = append([]byte(nil), raw...)
}
