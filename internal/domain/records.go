package domain

import "time"

// ClosureRecord is one completed closure of an endpoint, appended once when
// the endpoint reopens. Closures shorter than a minute are treated as
// correction noise and never reach this table.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Endpoint: which control point was closed (CENTER/GOIO).
//   - DurationSeconds: wall-clock seconds the endpoint stayed closed.
//   - RecordedAt: commit instant, indexed together with Endpoint for the
//     moving-average and daily-summary queries.
type ClosureRecord struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Endpoint        string    `json:"endpoint"         gorm:"type:varchar(16);not null;index:idx_closures_endpoint_time,priority:1"`
	DurationSeconds int       `json:"duration_seconds" gorm:"not null"`
	RecordedAt      time.Time `json:"recorded_at"      gorm:"not null;index:idx_closures_endpoint_time,priority:2;index:idx_closures_time"`
}

// TableName returns the database table name for ClosureRecord.
func (ClosureRecord) TableName() string { return "closures" }

// WeatherSnapshot is the cached weather view attached to status replies.
// The cache is authoritative for serving; the weather table is history only.
type WeatherSnapshot struct {
	Condition   string    `json:"condition"`
	Temperature float64   `json:"temperature"`
	Advisory    string    `json:"advisory,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// WeatherRecord is the persisted trail of served weather snapshots.
type WeatherRecord struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Condition   string    `json:"condition"   gorm:"type:varchar(128);not null"`
	Temperature float64   `json:"temperature" gorm:"not null"`
	Advisory    string    `json:"advisory"    gorm:"type:varchar(255)"`
	RecordedAt  time.Time `json:"recorded_at" gorm:"not null;index"`
}

// TableName returns the database table name for WeatherRecord.
func (WeatherRecord) TableName() string { return "weather_history" }
