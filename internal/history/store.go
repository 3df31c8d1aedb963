package history

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/models"
	"github.com/kjstillabower/weather-search/internal/observability"
)

// DefaultCapacity is the maximum number of entries kept in the log.
const DefaultCapacity = 9

// Store is the bounded, newest-first search history. Every mutation rewrites the whole
// log through the Repository. Readers never wait on a save.
type Store struct {
	// writeMu orders mutations and their saves; mu guards entries only.
	writeMu  sync.Mutex
	mu       sync.Mutex
	repo     Repository
	capacity int
	entries  []models.HistoryEntry
	logger   *zap.Logger
}

// NewStore returns a Store over repo and reads the persisted log. capacity <= 0 uses
// DefaultCapacity. An unreadable log starts the store empty.
func NewStore(ctx context.Context, repo Repository, capacity int, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{repo: repo, capacity: capacity, logger: logger}
	s.Load(ctx)
	return s
}

// Load re-reads the persisted log. Absent or corrupt storage yields an empty log; the
// failure is logged and counted, never returned.
func (s *Store) Load(ctx context.Context) []models.HistoryEntry {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.repo.Load(ctx)
	if err != nil {
		observability.HistoryPersistErrorsTotal.WithLabelValues("load").Inc()
		s.logger.Warn("history unreadable, starting empty", zap.Error(err))
		entries = nil
	}
	if len(entries) > s.capacity {
		entries = entries[:s.capacity]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	observability.HistoryEntries.Set(float64(len(s.entries)))
	return s.snapshotLocked()
}

// Entries returns a copy of the current log, newest first.
func (s *Store) Entries() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Append prepends e, keeps the most recent capacity entries, persists and returns the log.
func (s *Store) Append(ctx context.Context, e models.HistoryEntry) ([]models.HistoryEntry, error) {
	return s.commit(ctx, func(cur []models.HistoryEntry) []models.HistoryEntry {
		next := make([]models.HistoryEntry, 0, min(len(cur)+1, s.capacity))
		next = append(next, e)
		for _, old := range cur {
			if len(next) == s.capacity {
				break
			}
			next = append(next, old)
		}
		return next
	})
}

// Remove deletes the first entry equal to e. The log is unchanged when nothing matches,
// but is still persisted.
func (s *Store) Remove(ctx context.Context, e models.HistoryEntry) ([]models.HistoryEntry, error) {
	return s.commit(ctx, func(cur []models.HistoryEntry) []models.HistoryEntry {
		next := make([]models.HistoryEntry, 0, len(cur))
		removed := false
		for _, old := range cur {
			if !removed && old == e {
				removed = true
				continue
			}
			next = append(next, old)
		}
		return next
	})
}

// Clear empties the log and persists the empty sequence.
func (s *Store) Clear(ctx context.Context) ([]models.HistoryEntry, error) {
	return s.commit(ctx, func([]models.HistoryEntry) []models.HistoryEntry {
		return []models.HistoryEntry{}
	})
}

// commit installs mutate's result as the in-memory log, then persists it outside mu.
// The in-memory log keeps the mutation even when the save fails.
func (s *Store) commit(ctx context.Context, mutate func([]models.HistoryEntry) []models.HistoryEntry) ([]models.HistoryEntry, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.entries = mutate(s.entries)
	out := s.snapshotLocked()
	s.mu.Unlock()
	observability.HistoryEntries.Set(float64(len(out)))

	if err := s.repo.Save(ctx, out); err != nil {
		observability.HistoryPersistErrorsTotal.WithLabelValues("save").Inc()
		return out, fmt.Errorf("persist history: %w", err)
	}
	return out, nil
}

func (s *Store) snapshotLocked() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
