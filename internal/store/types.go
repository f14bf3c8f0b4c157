package store

import (
	"time"
)

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// PairRow is one dataset entry. Filler words are stored with an empty
// replacement.
type PairRow struct {
	ID          int64     `db:"id" json:"id"`
	Category    string    `db:"category" json:"category"`
	Position    int       `db:"position" json:"position"`
	Pattern     string    `db:"pattern" json:"pattern"`
	Replacement string    `db:"replacement" json:"replacement"`
	Source      string    `db:"source" json:"source"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CorrectionRecord is one entry of the correction history. Only a hash of
// the submitted text is kept.
type CorrectionRecord struct {
	ID             int64     `db:"id" json:"id"`
	RequestID      string    `db:"request_id" json:"request_id"`
	TextHash       string    `db:"text_hash" json:"text_hash"`
	Tone           string    `db:"tone" json:"tone"`
	Mode           string    `db:"mode" json:"mode"`
	DatasetVersion string    `db:"dataset_version" json:"dataset_version"`
	InputLength    int       `db:"input_length" json:"input_length"`
	OutputLength   int       `db:"output_length" json:"output_length"`
	Changed        bool      `db:"changed" json:"changed"`
	CacheHit       bool      `db:"cache_hit" json:"cache_hit"`
	DurationMicros int64     `db:"duration_us" json:"duration_us"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Stats represents database statistics
type Stats struct {
	PairsByCategory  map[string]int64 `json:"pairs_by_category"`
	TotalPairs       int64            `json:"total_pairs"`
	TotalCorrections int64            `json:"total_corrections"`
	ChangedCount     int64            `json:"changed_count"`
	CacheHitCount    int64            `json:"cache_hit_count"`
	AvgDurationMs    float64          `json:"avg_duration_ms"`
}

// BatchInsertResult represents the result of a batch insert operation
type BatchInsertResult struct {
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}
