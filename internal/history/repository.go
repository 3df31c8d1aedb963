package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-search/internal/models"
)

// DefaultSlot is the name of the persisted history slot.
const DefaultSlot = "weatherSearchHistory"

// ErrCorrupt is returned by a Repository whose stored payload cannot be decoded.
var ErrCorrupt = errors.New("history slot corrupt")

// Repository owns the persisted representation of the history log: one named slot
// holding the whole sequence. A missing slot loads as an empty sequence.
type Repository interface {
	Load(ctx context.Context) ([]models.HistoryEntry, error)
	Save(ctx context.Context, entries []models.HistoryEntry) error
}

func encodeEntries(entries []models.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return json.Marshal(entries)
}

// decodeEntries treats an empty payload or JSON null as an empty log.
func decodeEntries(raw []byte) ([]models.HistoryEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return entries, nil
}
