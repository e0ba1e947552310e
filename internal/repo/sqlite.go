package repo

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type taskRow struct {
	Position    int    `gorm:"not null;index"`
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	CreatedText string `gorm:"column:created_at;not null"`
	DoneText    string `gorm:"column:completed_at;not null;default:''"`
	Status      string `gorm:"not null"`
}

func (taskRow) TableName() string {
	return "tasks"
}

// SQLiteStore keeps tasks in an embedded SQLite database file.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLiteStore opens (or creates) the database at dsn and migrates the
// tasks table. ":memory:" works for tests.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&taskRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite %s: %w", dsn, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Collection, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	c := NewCollection()
	for _, row := range rows {
		rec := record{
			ID:          row.ID,
			Title:       row.Title,
			CreatedAt:   row.CreatedText,
			CompletedAt: row.DoneText,
			Status:      row.Status,
		}
		t, err := rec.task()
		if err != nil {
			return nil, err
		}
		if err := c.insert(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *SQLiteStore) Save(ctx context.Context, c *Collection) error {
	rows := make([]taskRow, 0, c.Len())
	for t := range c.All() {
		rec := newRecord(t)
		rows = append(rows, taskRow{
			Position:    len(rows),
			ID:          rec.ID,
			Title:       rec.Title,
			CreatedText: rec.CreatedAt,
			DoneText:    rec.CompletedAt,
			Status:      rec.Status,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&taskRow{}).Error; err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("write tasks: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
