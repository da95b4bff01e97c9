package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// actionRecord is one persisted user action.
type actionRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Run       string    `gorm:"index;size:64"`
	Task      string    `gorm:"index;size:64"`
	Value     string    `gorm:"size:512"`
	Time      time.Time `gorm:"index"`
	CreatedAt time.Time
}

func (actionRecord) TableName() string { return "user_actions" }

// Store archives user actions in sqlite, grouped by experiment run.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the sqlite database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&actionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save appends an action to run.
func (s *Store) Save(run string, a protocol.UserAction) error {
	return s.db.Create(&actionRecord{
		ID:    a.ID,
		Run:   run,
		Task:  a.Task,
		Value: a.Value,
		Time:  a.Time,
	}).Error
}

// ListRun returns the actions of run in the order they happened.
func (s *Store) ListRun(run string) ([]protocol.UserAction, error) {
	var recs []actionRecord
	if err := s.db.Where("run = ?", run).Order("time ASC, rowid ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]protocol.UserAction, 0, len(recs))
	for _, r := range recs {
		out = append(out, protocol.UserAction{ID: r.ID, Task: r.Task, Time: r.Time, Value: r.Value})
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
