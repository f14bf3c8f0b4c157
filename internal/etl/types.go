package etl

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SpellingRecord is one row of a spelling-corrections dataset
type SpellingRecord struct {
	IncorrectWord     string `csv:"incorrect_word" parquet:"incorrect_word" json:"incorrect_word"`
	CorrectWord       string `csv:"correct_word" parquet:"correct_word" json:"correct_word"`
	ErrorType         string `csv:"error_type" parquet:"error_type" json:"error_type"`
	FrequencyCategory string `csv:"frequency_category" parquet:"frequency_category" json:"frequency_category"`
}

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	TotalRecords int64         `json:"total_records"`
	ProcessedOK  int64         `json:"processed_ok"`
	Invalid      int64         `json:"invalid"`
	Duplicates   int64         `json:"duplicates"`
	Failed       int64         `json:"failed"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`           // 1000
	MaxWordLength  int  `yaml:"max_word_length" mapstructure:"max_word_length"` // 100
	SkipDuplicates bool `yaml:"skip_duplicates" mapstructure:"skip_duplicates"` // true
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`     // true
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"` // 10000
}

// DefaultConfig returns the configuration used by cmd/etl
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      1000,
		MaxWordLength:  100,
		SkipDuplicates: true,
		ValidateData:   true,
		ProgressReport: 10000,
	}
}

// ValidationError represents a data validation error
type ValidationError struct {
	Row     int64  `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatTSV     FileFormat = "tsv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension. JSON input is read
// as a stream of record objects or parallel corpora; .jsonl is accepted as
// well.
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	case ".tsv":
		return FormatTSV
	default:
		return FormatCSV
	}
}
