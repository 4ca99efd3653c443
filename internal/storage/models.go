package storage

import (
	"time"

	"gorm.io/gorm"
)

// EngineResponse is one cached simulation engine answer, keyed by the hash
// of the canonical request query.
type EngineResponse struct {
	gorm.Model
	RequestKey string    `gorm:"uniqueIndex;size:64" json:"request_key"`
	Query      string    `json:"query"`
	Payload    []byte    `json:"-"`
	Station    string    `json:"station"`
	ACAnnual   float64   `json:"ac_annual_kwh"`
	FetchedAt  time.Time `gorm:"index" json:"fetched_at"`
}

type CacheStats struct {
	Entries int64     `json:"entries"`
	Oldest  time.Time `json:"oldest,omitempty"`
	Newest  time.Time `json:"newest,omitempty"`
}
