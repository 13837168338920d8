// Package fetchlog keeps a bounded SQLite audit trail of provider fetch attempts.
// It never stores candles.
package fetchlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datafeeder/internal/feeder"
	applog "datafeeder/internal/logger"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DefaultRetention = 10000
	maxRecentLimit   = 1000
)

type Store struct {
	db        *gorm.DB
	retention int64
}

// Entry is one recorded attempt, newest first from Recent.
type Entry struct {
	ID          int64     `json:"id"`
	Mode        string    `json:"mode"`
	Instrument  string    `json:"instrument"`
	Granularity string    `json:"granularity"`
	Credential  string    `json:"credential,omitempty"`
	Outcome     string    `json:"outcome"`
	Candles     int       `json:"candles"`
	LatencyMs   int64     `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Open creates or reuses the database at path. retention <= 0 uses DefaultRetention.
func Open(path string, retention int) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("fetch log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newStore(db, retention)
}

func newStore(db *gorm.DB, retention int) (*Store, error) {
	if err := db.AutoMigrate(&attemptModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{db: db, retention: int64(retention)}, nil
}

var _ feeder.Recorder = (*Store)(nil)

// Record stores a and prunes rows older than the retention window. Failures are
// logged, never returned, so auditing cannot stall fetching.
func (s *Store) Record(ctx context.Context, a feeder.Attempt) {
	if s == nil || s.db == nil {
		return
	}
	raw, _ := json.Marshal(detail{Error: a.Err})
	row := attemptModel{
		Mode:        string(a.Mode),
		Instrument:  a.Instrument,
		Granularity: string(a.Granularity),
		Credential:  a.Credential,
		Outcome:     a.Outcome,
		Candles:     a.Candles,
		LatencyMs:   a.Latency.Milliseconds(),
		Detail:      datatypes.JSON(raw),
		AttemptedAt: a.At.UTC(),
	}
	db := s.db.WithContext(ctx)
	if err := db.Create(&row).Error; err != nil {
		applog.Warnf("fetchlog: record %s %s failed: %v", a.Instrument, a.Granularity, err)
		return
	}
	if cutoff := row.ID - s.retention; cutoff > 0 {
		if err := db.Where("id <= ?", cutoff).Delete(&attemptModel{}).Error; err != nil {
			applog.Warnf("fetchlog: prune failed: %v", err)
		}
	}
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("fetch log not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	var rows []attemptModel
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		var d detail
		if len(r.Detail) > 0 {
			_ = json.Unmarshal(r.Detail, &d)
		}
		out = append(out, Entry{
			ID:          r.ID,
			Mode:        r.Mode,
			Instrument:  r.Instrument,
			Granularity: r.Granularity,
			Credential:  r.Credential,
			Outcome:     r.Outcome,
			Candles:     r.Candles,
			LatencyMs:   r.LatencyMs,
			Error:       d.Error,
			AttemptedAt: r.AttemptedAt,
		})
	}
	return out, nil
}

// Count returns the number of retained rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&attemptModel{}).Count(&n).Error
	return n, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
