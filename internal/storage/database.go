package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no fresh entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&EngineResponse{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// SaveResponse inserts an entry or replaces the one with the same key.
func (d *Database) SaveResponse(entry *EngineResponse) error {
	entry.FetchedAt = entry.FetchedAt.UTC()
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"query", "payload", "station", "ac_annual", "fetched_at", "updated_at", "deleted_at"}),
	}).Create(entry).Error
}

// GetResponse returns the entry for key fetched at or after notBefore.
func (d *Database) GetResponse(key string, notBefore time.Time) (*EngineResponse, error) {
	var entry EngineResponse
	result := d.db.Where("request_key = ? AND fetched_at >= ?", key, notBefore.UTC()).First(&entry)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &entry, nil
}

// CleanExpired removes entries older than maxAge and reports how many were
// removed.
func (d *Database) CleanExpired(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	result := d.db.Unscoped().Where("fetched_at < ?", cutoff).Delete(&EngineResponse{})
	return result.RowsAffected, result.Error
}

func (d *Database) Stats() (*CacheStats, error) {
	var stats CacheStats
	if err := d.db.Model(&EngineResponse{}).Count(&stats.Entries).Error; err != nil {
		return nil, err
	}
	if stats.Entries == 0 {
		return &stats, nil
	}

	var oldest, newest EngineResponse
	if err := d.db.Order("fetched_at asc").First(&oldest).Error; err != nil {
		return nil, err
	}
	if err := d.db.Order("fetched_at desc").First(&newest).Error; err != nil {
		return nil, err
	}
	stats.Oldest, stats.Newest = oldest.FetchedAt, newest.FetchedAt
	return &stats, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
