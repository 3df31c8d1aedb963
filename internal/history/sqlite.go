package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kjstillabower/weather-search/internal/models"
)

// historySlot is one persisted history log, keyed by slot name.
type historySlot struct {
	Name      string         `gorm:"primaryKey"`
	Entries   datatypes.JSON `json:"entries"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (historySlot) TableName() string { return "history_slots" }

// SQLRepository stores the slot as a row in a gorm-managed table.
type SQLRepository struct {
	db   *gorm.DB
	slot string
}

// OpenSQLite opens a sqlite database at path (a file path or a "file:...?mode=memory" DSN).
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// NewSQLRepository migrates the slot table and returns a repository for slot.
func NewSQLRepository(db *gorm.DB, slot string) (*SQLRepository, error) {
	if err := db.AutoMigrate(&historySlot{}); err != nil {
		return nil, fmt.Errorf("migrate history_slots: %w", err)
	}
	if slot == "" {
		slot = DefaultSlot
	}
	return &SQLRepository{db: db, slot: slot}, nil
}

// Load implements Repository.Load. A missing row is an empty log.
func (r *SQLRepository) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	var row historySlot
	err := r.db.WithContext(ctx).Where("name = ?", r.slot).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeEntries(row.Entries)
}

// Save implements Repository.Save as an upsert on the slot name.
func (r *SQLRepository) Save(ctx context.Context, entries []models.HistoryEntry) error {
	raw, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	row := historySlot{Name: r.slot, Entries: datatypes.JSON(raw), UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"entries", "updated_at"}),
	}).Create(&row).Error
}

// Close releases the underlying database handle.
func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
