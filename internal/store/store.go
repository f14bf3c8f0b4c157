package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/dataset"
)

// Postgres allows 65535 bind parameters per statement
const insertBatchSize = 1000

const schema = `
CREATE TABLE IF NOT EXISTS correction_pairs (
	id          BIGSERIAL PRIMARY KEY,
	category    TEXT NOT NULL,
	position    INTEGER NOT NULL,
	pattern     TEXT NOT NULL,
	replacement TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_correction_pairs_key
	ON correction_pairs (category, LOWER(pattern));
CREATE TABLE IF NOT EXISTS correction_history (
	id              BIGSERIAL PRIMARY KEY,
	request_id      TEXT NOT NULL DEFAULT '',
	text_hash       TEXT NOT NULL,
	tone            TEXT NOT NULL,
	mode            TEXT NOT NULL,
	dataset_version TEXT NOT NULL,
	input_length    INTEGER NOT NULL,
	output_length   INTEGER NOT NULL,
	changed         BOOLEAN NOT NULL,
	cache_hit       BOOLEAN NOT NULL,
	duration_us     BIGINT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_correction_history_created_at
	ON correction_history (created_at);`

// Store persists dataset pairs and correction history in PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to PostgreSQL and creates the schema if needed
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Store initialized successfully",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// LoadDataset reads every stored pair back into a dataset, keeping the
// stored order within each category
func (s *Store) LoadDataset(ctx context.Context) (*dataset.Dataset, error) {
	var rows []PairRow
	query := `
		SELECT id, category, position, pattern, replacement, source, created_at
		FROM correction_pairs
		ORDER BY category, position, id`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load dataset pairs: %w", err)
	}

	d, err := datasetFromRows(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dataset loaded from store",
		zap.Int("rows", len(rows)),
		zap.String("version", d.Version()))

	return d, nil
}

// BatchInsertPairs appends pairs to a category. Keys already present in
// the category are skipped.
func (s *Store) BatchInsertPairs(ctx context.Context, category dataset.Category, pairs dataset.PairList, source string) (*BatchInsertResult, error) {
	result := &BatchInsertResult{}
	if len(pairs) == 0 {
		return result, nil
	}

	start := time.Now()

	var next int
	query := `SELECT COALESCE(MAX(position), -1) + 1 FROM correction_pairs WHERE category = $1`
	if err := s.db.GetContext(ctx, &next, query, string(category)); err != nil {
		return nil, fmt.Errorf("failed to read next position: %w", err)
	}

	for i := 0; i < len(pairs); i += insertBatchSize {
		end := min(i+insertBatchSize, len(pairs))

		query, args := buildPairInsert(category, pairs[i:end], next+i, source)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			s.logger.Error("Batch insert failed", zap.Error(err), zap.String("category", string(category)))
			return result, fmt.Errorf("batch insert failed: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			s.logger.Warn("Could not get rows affected", zap.Error(err))
			inserted = int64(end - i)
		}
		result.Inserted += inserted
	}

	result.Duplicates = int64(len(pairs)) - result.Inserted
	result.Duration = time.Since(start)

	s.logger.Info("Batch insert completed",
		zap.String("category", string(category)),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates_skipped", result.Duplicates),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// ImportDataset writes every category of a dataset to the store
func (s *Store) ImportDataset(ctx context.Context, d *dataset.Dataset, source string) (*BatchInsertResult, error) {
	total := &BatchInsertResult{}
	start := time.Now()

	for _, c := range dataset.PairCategories {
		res, err := s.BatchInsertPairs(ctx, c, d.Pairs(c), source)
		if err != nil {
			return total, err
		}
		total.Inserted += res.Inserted
		total.Duplicates += res.Duplicates
	}

	fillers := make(dataset.PairList, len(d.FillerWords))
	for i, w := range d.FillerWords {
		fillers[i] = dataset.Pair{Pattern: w}
	}
	res, err := s.BatchInsertPairs(ctx, dataset.CategoryFillerWords, fillers, source)
	if err != nil {
		return total, err
	}
	total.Inserted += res.Inserted
	total.Duplicates += res.Duplicates
	total.Duration = time.Since(start)

	return total, nil
}

// RecordCorrection appends one entry to the correction history
func (s *Store) RecordCorrection(ctx context.Context, record *CorrectionRecord) error {
	query := `
		INSERT INTO correction_history
			(request_id, text_hash, tone, mode, dataset_version, input_length,
			 output_length, changed, cache_hit, duration_us)
		VALUES
			(:request_id, :text_hash, :tone, :mode, :dataset_version, :input_length,
			 :output_length, :changed, :cache_hit, :duration_us)`

	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to record correction: %w", err)
	}
	return nil
}

// RecentCorrections returns the newest history entries first
func (s *Store) RecentCorrections(ctx context.Context, limit int) ([]CorrectionRecord, error) {
	var records []CorrectionRecord
	query := `
		SELECT id, request_id, text_hash, tone, mode, dataset_version, input_length,
			output_length, changed, cache_hit, duration_us, created_at
		FROM correction_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to read correction history: %w", err)
	}
	return records, nil
}

// GetStats returns database statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{PairsByCategory: make(map[string]int64)}

	rows, err := s.db.QueryxContext(ctx, `SELECT category, COUNT(*) FROM correction_pairs GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to get pair stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan pair stats: %w", err)
		}
		stats.PairsByCategory[category] = count
		stats.TotalPairs += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pair stats: %w", err)
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN changed THEN 1 END) AS changed,
			COUNT(CASE WHEN cache_hit THEN 1 END) AS cache_hits,
			COALESCE(AVG(duration_us), 0) / 1000.0 AS avg_duration_ms
		FROM correction_history`

	err = s.db.QueryRowxContext(ctx, query).Scan(
		&stats.TotalCorrections,
		&stats.ChangedCount,
		&stats.CacheHitCount,
		&stats.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func buildPairInsert(category dataset.Category, pairs dataset.PairList, firstPosition int, source string) (string, []interface{}) {
	valueStrings := make([]string, 0, len(pairs))
	valueArgs := make([]interface{}, 0, len(pairs)*5)

	for i, p := range pairs {
		n := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5))
		valueArgs = append(valueArgs, string(category), firstPosition+i, p.Pattern, p.Replacement, source)
	}

	query := fmt.Sprintf(`
		INSERT INTO correction_pairs (category, position, pattern, replacement, source)
		VALUES %s
		ON CONFLICT (category, LOWER(pattern)) DO NOTHING`,
		strings.Join(valueStrings, ","))

	return query, valueArgs
}

// datasetFromRows groups rows by category. Rows must already be in
// position order.
func datasetFromRows(rows []PairRow) (*dataset.Dataset, error) {
	grouped := make(map[dataset.Category]dataset.PairList)
	d := &dataset.Dataset{}

	for _, row := range rows {
		c, err := dataset.ParseCategory(row.Category)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.ID, err)
		}
		if c == dataset.CategoryFillerWords {
			d.FillerWords = append(d.FillerWords, row.Pattern)
			continue
		}
		grouped[c] = append(grouped[c], dataset.Pair{Pattern: row.Pattern, Replacement: row.Replacement})
	}

	for _, c := range dataset.PairCategories {
		if len(grouped[c]) == 0 {
			continue
		}
		merged, _, err := d.Merge(c, grouped[c])
		if err != nil {
			return nil, err
		}
		d = merged
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("stored dataset is invalid: %w", err)
	}
	return d, nil
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	credStart := 0
	if i := strings.Index(url[:at], "://"); i >= 0 {
		credStart = i + 3
	}
	colon := strings.Index(url[credStart:at], ":")
	if colon < 0 {
		return url
	}
	return url[:credStart+colon+1] + "***" + url[at:]
}
