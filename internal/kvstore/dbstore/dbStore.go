package dbstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bloodlink/internal/init/database"
	"bloodlink/internal/kvstore"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DbStore keeps every entry as one row of kv_entries; keys carry the configured prefix.
type DbStore struct {
	db     *gorm.DB
	prefix string
	log    *slog.Logger
}

func NewDbStore(storage *database.Storage, prefix string, log *slog.Logger) *DbStore {
	return &DbStore{
		db:     storage.Db,
		prefix: prefix,
		log:    log.With(slog.String("component", "DbStore")),
	}
}

func (s *DbStore) Get(ctx context.Context, key string) (string, error) {
	var entry database.KVEntry
	err := s.db.WithContext(ctx).Where("key = ?", s.prefix+key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", kvstore.ErrNotFound
		}
		s.log.Error("failed to read key", "key", key, "error", err)
		return "", fmt.Errorf("%w: get %s: %v", kvstore.ErrUnavailable, key, err)
	}
	return entry.Value, nil
}

func (s *DbStore) Set(ctx context.Context, key string, value string) error {
	entry := database.KVEntry{Key: s.prefix + key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		s.log.Error("failed to write key", "key", key, "error", err)
		return fmt.Errorf("%w: set %s: %v", kvstore.ErrUnavailable, key, err)
	}
	return nil
}

func (s *DbStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", s.prefix+key).Delete(&database.KVEntry{}).Error; err != nil {
		s.log.Error("failed to delete key", "key", key, "error", err)
		return fmt.Errorf("%w: del %s: %v", kvstore.ErrUnavailable, key, err)
	}
	return nil
}
