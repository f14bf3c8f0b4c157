package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// BatchHandler receives validated, de-duplicated records in input order
type BatchHandler func(ctx context.Context, batch []*SpellingRecord) error

// Pipeline reads spelling-correction datasets
type Pipeline struct {
	config *Config
	logger *zap.Logger

	mu         sync.Mutex
	seen       map[string]bool
	row        int64
	nextReport int64
	startTime  time.Time
}

// NewPipeline creates a new ETL pipeline
func NewPipeline(config *Config, logger *zap.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	return &Pipeline{
		config: config,
		logger: logger,
	}
}

// ProcessFile streams a dataset file (CSV, TSV, Parquet or JSON lines)
// through handle in batches
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string, handle BatchHandler) (*ProcessingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	format := DetectFileFormat(filePath)
	p.logger.Info("Starting ETL pipeline",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	p.seen = make(map[string]bool)
	p.row = 0
	p.nextReport = int64(p.config.ProgressReport)
	p.startTime = time.Now()
	result := &ProcessingResult{}

	var readBatch func() ([]*SpellingRecord, error)
	switch format {
	case FormatCSV:
		readBatch, err = p.csvReader(file, result)
	case FormatTSV:
		readBatch, err = p.tsvReader(file, result)
	case FormatParquet:
		readBatch, err = p.parquetReader(file, result)
	case FormatJSON:
		readBatch, err = p.jsonReader(file, result)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return result, fmt.Errorf("%s processing failed: %w", format, err)
	}

	if err := p.processBatches(ctx, readBatch, handle, result); err != nil {
		return result, err
	}

	result.Duration = time.Since(p.startTime)

	p.logger.Info("ETL pipeline completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("invalid", result.Invalid),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("failed", result.Failed),
		zap.Duration("total_duration", result.Duration))

	return result, nil
}

// LoadFile reads every valid record of a dataset file into memory
func (p *Pipeline) LoadFile(ctx context.Context, filePath string) ([]*SpellingRecord, *ProcessingResult, error) {
	var records []*SpellingRecord
	result, err := p.ProcessFile(ctx, filePath, func(_ context.Context, batch []*SpellingRecord) error {
		records = append(records, batch...)
		return nil
	})
	return records, result, err
}

func (p *Pipeline) csvReader(file io.Reader, result *ProcessingResult) (func() ([]*SpellingRecord, error), error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"incorrect_word", "correct_word"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", required)
		}
	}

	p.logger.Info("CSV header detected", zap.Strings("columns", header))

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	return func() ([]*SpellingRecord, error) {
		var batch []*SpellingRecord
		for len(batch) < p.config.BatchSize {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			p.row++
			if err != nil {
				p.logger.Warn("Failed to read CSV record", zap.Int64("row", p.row), zap.Error(err))
				result.Failed++
				continue
			}

			record := &SpellingRecord{
				IncorrectWord:     field(row, "incorrect_word"),
				CorrectWord:       field(row, "correct_word"),
				ErrorType:         field(row, "error_type"),
				FrequencyCategory: field(row, "frequency_category"),
			}
			if p.accept(record, result) {
				batch = append(batch, record)
			}
		}
		return batch, nil
	}, nil
}

func (p *Pipeline) tsvReader(file io.Reader, result *ProcessingResult) (func() ([]*SpellingRecord, error), error) {
	reader := csv.NewReader(file)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return func() ([]*SpellingRecord, error) {
		var batch []*SpellingRecord
		for len(batch) < p.config.BatchSize {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			p.row++
			if err != nil || len(row) < 2 {
				p.logger.Warn("Failed to read TSV record", zap.Int64("row", p.row), zap.Error(err))
				result.Failed++
				continue
			}

			record := &SpellingRecord{IncorrectWord: row[0], CorrectWord: row[1]}
			if p.accept(record, result) {
				batch = append(batch, record)
			}
		}
		return batch, nil
	}, nil
}

func (p *Pipeline) parquetReader(file *os.File, result *ProcessingResult) (func() ([]*SpellingRecord, error), error) {
	reader := parquet.NewReader(file)
	finished := false

	return func() ([]*SpellingRecord, error) {
		var batch []*SpellingRecord
		for !finished && len(batch) < p.config.BatchSize {
			var record SpellingRecord
			err := reader.Read(&record)
			if err == io.EOF {
				finished = true
				reader.Close()
				break
			}
			p.row++
			if err != nil {
				// a corrupt row group cannot be skipped
				finished = true
				reader.Close()
				return nil, fmt.Errorf("failed to read Parquet record %d: %w", p.row, err)
			}

			if p.accept(&record, result) {
				batch = append(batch, &record)
			}
		}
		return batch, nil
	}, nil
}

// jsonReader reads one record object per value. A value holding the
// parallel source/target arrays written by Export expands to one record
// per index.
func (p *Pipeline) jsonReader(file io.Reader, result *ProcessingResult) (func() ([]*SpellingRecord, error), error) {
	decoder := json.NewDecoder(file)
	var pending []SpellingRecord

	return func() ([]*SpellingRecord, error) {
		var batch []*SpellingRecord
		for len(batch) < p.config.BatchSize {
			if len(pending) > 0 {
				record := pending[0]
				pending = pending[1:]
				p.row++
				if p.accept(&record, result) {
					batch = append(batch, &record)
				}
				continue
			}

			var raw json.RawMessage
			err := decoder.Decode(&raw)
			if err == io.EOF {
				break
			}
			if err != nil {
				// the decoder cannot resynchronize after a syntax error
				return nil, fmt.Errorf("invalid JSON at record %d: %w", p.row+1, err)
			}

			records, err := decodeJSONValue(raw)
			if err != nil {
				p.row++
				p.logger.Warn("Failed to read JSON record", zap.Int64("row", p.row), zap.Error(err))
				result.Failed++
				continue
			}
			pending = records
		}
		return batch, nil
	}, nil
}

// decodeJSONValue decodes either a single record or a parallel corpus
func decodeJSONValue(raw json.RawMessage) ([]SpellingRecord, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err == nil {
		if _, ok := keys["source"]; ok {
			var corpus parallelCorpus
			if err := json.Unmarshal(raw, &corpus); err != nil {
				return nil, err
			}
			return corpus.records()
		}
	}

	var record SpellingRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return []SpellingRecord{record}, nil
}

func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*SpellingRecord, error), handle BatchHandler, result *ProcessingResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := handle(ctx, batch); err != nil {
			p.logger.Error("Batch processing failed", zap.Error(err))
			result.Failed += int64(len(batch))
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		result.ProcessedOK += int64(len(batch))
		p.reportProgress(result)
	}
}

// accept normalizes, validates and de-duplicates one record
func (p *Pipeline) accept(record *SpellingRecord, result *ProcessingResult) bool {
	result.TotalRecords++
	normalizeRecord(record)

	if p.config.ValidateData {
		if verr := p.validateRecord(p.row, record); verr != nil {
			result.Invalid++
			p.logger.Debug("Invalid record",
				zap.Int64("row", verr.Row),
				zap.String("field", verr.Field),
				zap.String("message", verr.Message))
			return false
		}
	}

	if p.config.SkipDuplicates {
		key := strings.ToLower(record.IncorrectWord)
		if p.seen[key] {
			result.Duplicates++
			return false
		}
		p.seen[key] = true
	}

	return true
}

func normalizeRecord(record *SpellingRecord) {
	record.IncorrectWord = strings.TrimSpace(record.IncorrectWord)
	record.CorrectWord = strings.TrimSpace(record.CorrectWord)
	record.ErrorType = strings.TrimSpace(record.ErrorType)
	record.FrequencyCategory = strings.TrimSpace(record.FrequencyCategory)
}

func (p *Pipeline) validateRecord(row int64, record *SpellingRecord) *ValidationError {
	check := func(field, value string) *ValidationError {
		switch {
		case value == "":
			return &ValidationError{Row: row, Field: field, Value: value, Message: "empty value"}
		case strings.ContainsAny(value, "\r\n\t"):
			return &ValidationError{Row: row, Field: field, Value: value, Message: "contains control whitespace"}
		case p.config.MaxWordLength > 0 && utf8.RuneCountInString(value) > p.config.MaxWordLength:
			return &ValidationError{Row: row, Field: field, Value: value, Message: "too long"}
		}
		return nil
	}

	if err := check("incorrect_word", record.IncorrectWord); err != nil {
		return err
	}
	if err := check("correct_word", record.CorrectWord); err != nil {
		return err
	}
	if strings.EqualFold(record.IncorrectWord, record.CorrectWord) {
		return &ValidationError{Row: row, Field: "correct_word", Value: record.CorrectWord, Message: "identical to incorrect_word"}
	}
	return nil
}

func (p *Pipeline) reportProgress(result *ProcessingResult) {
	if p.nextReport <= 0 || result.ProcessedOK < p.nextReport {
		return
	}
	for p.nextReport <= result.ProcessedOK {
		p.nextReport += int64(p.config.ProgressReport)
	}

	elapsed := time.Since(p.startTime)
	p.logger.Info("Processing progress",
		zap.Int64("records_read", result.TotalRecords),
		zap.Int64("records_ok", result.ProcessedOK),
		zap.Float64("rate_per_sec", float64(result.TotalRecords)/elapsed.Seconds()),
		zap.Duration("elapsed", elapsed))
}
