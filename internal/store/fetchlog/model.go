package fetchlog

import (
	"time"

	"gorm.io/datatypes"
)

type attemptModel struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Mode        string         `gorm:"column:mode;index"`
	Instrument  string         `gorm:"column:instrument;index:idx_fetch_stream"`
	Granularity string         `gorm:"column:granularity;index:idx_fetch_stream"`
	Credential  string         `gorm:"column:credential"`
	Outcome     string         `gorm:"column:outcome;index"`
	Candles     int            `gorm:"column:candles"`
	LatencyMs   int64          `gorm:"column:latency_ms"`
	Detail      datatypes.JSON `gorm:"column:detail"`
	AttemptedAt time.Time      `gorm:"column:attempted_at"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (attemptModel) TableName() string { return "fetch_attempts" }

type detail struct {
	Error string `json:"error,omitempty"`
}
