package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatlink/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the local key-value table.
type Entry struct {
	Key       string `gorm:"primaryKey;column:item_key"`
	Value     string `gorm:"column:item_value"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "local_storage" }

// Storage is a persistent key-value store on sqlite, the CLI counterpart of
// the browser's localStorage.
type Storage struct {
	db *gorm.DB
}

func NewStorage(path string) (*Storage, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate local_storage: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	err := s.db.WithContext(ctx).Where("item_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_value", "updated_at"}),
	}).Create(&e).Error
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("item_key = ?", key).Delete(&Entry{}).Error
}
