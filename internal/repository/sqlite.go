package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is the gorm model behind SQLiteStore.
type KVEntry struct {
	EntryKey   string `gorm:"column:entry_key;primaryKey"`
	EntryValue string `gorm:"column:entry_value;not null"`
	UpdatedAt  time.Time
}

// TableName pins the table name shared with the Postgres schema.
func (KVEntry) TableName() string { return "kv_entries" }

// SQLiteStore implements kv.Store on an embedded SQLite database through gorm.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore migrates the kv_entries table and returns the store.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e KVEntry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select kv entry: %w", err)
	}
	return []byte(e.EntryValue), true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	e := KVEntry{EntryKey: key, EntryValue: string(value), UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("upsert kv entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("entry_key IN ?", keys).Delete(&KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete kv entries: %w", err)
	}
	return nil
}
