// Package corrector is the service boundary around the correction
// pipeline. It validates requests, consults the result cache, records
// history, publishes events, and swaps in new datasets at runtime.
package corrector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/logger"
	"github.com/raaihank/textfix/internal/pipeline"
	"github.com/raaihank/textfix/internal/render"
	"github.com/raaihank/textfix/internal/store"
	"github.com/raaihank/textfix/internal/websocket"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input
	ErrEmptyText = errors.New("text is empty")
	// ErrTextTooLong is returned when input exceeds the configured limit
	ErrTextTooLong = errors.New("text is too long")
)

// historyTimeout bounds the background history write
const historyTimeout = 5 * time.Second

// ResultCache stores corrected text keyed by dataset version, tone, mode
// and input
type ResultCache interface {
	Get(ctx context.Context, datasetVersion, tone, mode, text string) (string, bool)
	Set(ctx context.Context, datasetVersion, tone, mode, text, corrected string) error
}

// History records finished corrections
type History interface {
	RecordCorrection(ctx context.Context, record *store.CorrectionRecord) error
}

// Broadcaster publishes correction and dataset events
type Broadcaster interface {
	BroadcastEvent(event websocket.Event)
}

// Config holds request defaults and limits
type Config struct {
	DefaultTone    string
	DefaultMode    string
	MaxInputLength int // in characters, 0 disables the limit
	MatchTimeout   time.Duration
}

// Request is one correction request
type Request struct {
	Text      string
	Tone      string
	Mode      string
	Compare   bool
	HTML      bool
	RequestID string
}

// Result is the outcome of a correction
type Result struct {
	Original       string        `json:"original"`
	Corrected      string        `json:"corrected"`
	Tone           pipeline.Tone `json:"tone"`
	Mode           pipeline.Mode `json:"mode"`
	Changed        bool          `json:"changed"`
	CacheHit       bool          `json:"cache_hit"`
	Duration       time.Duration `json:"duration"`
	DatasetVersion string        `json:"dataset_version"`
	HTML           string        `json:"html,omitempty"`
}

// Stats counts corrections served by the service
type Stats struct {
	Corrections int64 `json:"corrections"`
	CacheHits   int64 `json:"cache_hits"`
	Rejected    int64 `json:"rejected"`
	Reloads     int64 `json:"reloads"`
	RuleErrors  int64 `json:"rule_errors"`
}

// Service corrects text with the current pipeline
type Service struct {
	config Config
	logger *logger.Logger

	pipeline atomic.Pointer[pipeline.Pipeline]
	dataset  atomic.Pointer[dataset.Dataset]

	cache   ResultCache
	history History
	events  Broadcaster
	pending sync.WaitGroup

	corrections atomic.Int64
	cacheHits   atomic.Int64
	rejected    atomic.Int64
	reloads     atomic.Int64
	ruleErrors  atomic.Int64
}

// Option configures a Service
type Option func(*Service)

// WithCache enables the result cache
func WithCache(c ResultCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithHistory enables correction history
func WithHistory(h History) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithBroadcaster enables event publishing
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) {
		s.events = b
	}
}

// NewService builds the pipeline for d and returns a ready service
func NewService(config Config, d *dataset.Dataset, log *logger.Logger, opts ...Option) (*Service, error) {
	if _, err := pipeline.ParseTone(config.DefaultTone); err != nil {
		return nil, fmt.Errorf("invalid default tone: %w", err)
	}
	if _, err := pipeline.ParseMode(config.DefaultMode); err != nil {
		return nil, fmt.Errorf("invalid default mode: %w", err)
	}

	s := &Service{
		config: config,
		logger: log.WithComponent("corrector"),
	}
	for _, opt := range opts {
		opt(s)
	}

	p, err := s.build(d)
	if err != nil {
		return nil, err
	}
	s.pipeline.Store(p)
	s.dataset.Store(d)

	s.logger.Info("Correction service ready",
		zap.String("dataset_version", p.DatasetVersion()),
		zap.String("default_tone", config.DefaultTone),
		zap.String("default_mode", config.DefaultMode))

	return s, nil
}

func (s *Service) build(d *dataset.Dataset) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{
		pipeline.WithRuleErrorHandler(func(err *pipeline.RuleError) {
			s.ruleErrors.Add(1)
			s.logger.Warn("Dataset rule skipped",
				zap.String("category", string(err.Category)),
				zap.String("pattern", err.Pattern),
				zap.Error(err.Err))
		}),
	}
	if s.config.MatchTimeout > 0 {
		opts = append(opts, pipeline.WithMatchTimeout(s.config.MatchTimeout))
	}
	return pipeline.New(d, opts...)
}

// Correct validates the request and returns the corrected text. Cache,
// history and event failures never fail the request. History is written
// in the background.
func (s *Service) Correct(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := s.logger
	if req.RequestID != "" {
		log = log.WithRequestID(req.RequestID)
	}

	tone, mode, err := s.validate(req)
	if err != nil {
		s.rejected.Add(1)
		return nil, err
	}

	p := s.pipeline.Load()
	version := p.DatasetVersion()

	result := &Result{
		Original:       req.Text,
		Tone:           tone,
		Mode:           mode,
		DatasetVersion: version,
	}

	if s.cache != nil {
		if corrected, ok := s.cache.Get(ctx, version, string(tone), string(mode), req.Text); ok {
			result.Corrected = corrected
			result.CacheHit = true
		}
	}

	if !result.CacheHit {
		result.Corrected = p.Correct(req.Text, tone, mode)
		if s.cache != nil {
			if err := s.cache.Set(ctx, version, string(tone), string(mode), req.Text, result.Corrected); err != nil {
				log.Warn("Failed to cache correction", zap.Error(err))
			}
		}
	}

	result.Changed = result.Corrected != result.Original
	if req.Compare || req.HTML {
		result.HTML = render.Block(result.Original, result.Corrected, req.Compare)
	}
	result.Duration = time.Since(start)

	s.corrections.Add(1)
	if result.CacheHit {
		s.cacheHits.Add(1)
	}

	log.LogCorrection(string(tone), string(mode), result.Original, result.Corrected, result.CacheHit, result.Duration)
	s.record(ctx, req.RequestID, result)
	s.publish(req.RequestID, result)

	return result, nil
}

func (s *Service) validate(req Request) (pipeline.Tone, pipeline.Mode, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", "", ErrEmptyText
	}
	if limit := s.config.MaxInputLength; limit > 0 {
		if n := utf8.RuneCountInString(req.Text); n > limit {
			return "", "", fmt.Errorf("%w: %d characters, limit is %d", ErrTextTooLong, n, limit)
		}
	}

	toneName := req.Tone
	if toneName == "" {
		toneName = s.config.DefaultTone
	}
	tone, err := pipeline.ParseTone(toneName)
	if err != nil {
		return "", "", err
	}

	modeName := req.Mode
	if modeName == "" {
		modeName = s.config.DefaultMode
	}
	mode, err := pipeline.ParseMode(modeName)
	if err != nil {
		return "", "", err
	}

	return tone, mode, nil
}

func (s *Service) record(ctx context.Context, requestID string, result *Result) {
	if s.history == nil {
		return
	}

	sum := sha256.Sum256([]byte(result.Original))
	record := &store.CorrectionRecord{
		RequestID:      requestID,
		TextHash:       hex.EncodeToString(sum[:]),
		Tone:           string(result.Tone),
		Mode:           string(result.Mode),
		DatasetVersion: result.DatasetVersion,
		InputLength:    len(result.Original),
		OutputLength:   len(result.Corrected),
		Changed:        result.Changed,
		CacheHit:       result.CacheHit,
		DurationMicros: result.Duration.Microseconds(),
	}

	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, historyTimeout)
		defer cancel()

		if err := s.history.RecordCorrection(ctx, record); err != nil {
			s.logger.Warn("Failed to record correction", zap.Error(err))
		}
	}()
}

// Close waits for history writes still in flight
func (s *Service) Close() {
	s.pending.Wait()
}

func (s *Service) publish(requestID string, result *Result) {
	if s.events == nil {
		return
	}

	s.events.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeCorrection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.CorrectionEvent{
			Tone:           string(result.Tone),
			Mode:           string(result.Mode),
			InputLength:    len(result.Original),
			OutputLength:   len(result.Corrected),
			Changed:        result.Changed,
			CacheHit:       result.CacheHit,
			DatasetVersion: result.DatasetVersion,
			ProcessingMS:   float64(result.Duration.Microseconds()) / 1000,
		},
	})
}

// Trace returns the output of every pass for a request. It bypasses the
// cache and history.
func (s *Service) Trace(req Request) ([]pipeline.Step, error) {
	tone, mode, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Load().Trace(req.Text, tone, mode), nil
}

// Reload compiles d and swaps it in. Requests already running finish on
// the previous pipeline. On error the current dataset stays active.
func (s *Service) Reload(d *dataset.Dataset) error {
	p, err := s.build(d)
	if err != nil {
		s.logger.Error("Dataset reload rejected", zap.Error(err))
		return err
	}

	previous := s.pipeline.Swap(p)
	s.dataset.Store(d)
	s.reloads.Add(1)

	s.logger.Info("Dataset reloaded",
		zap.String("previous_version", previous.DatasetVersion()),
		zap.String("version", p.DatasetVersion()))

	if s.events != nil {
		sizes := make(map[string]int)
		for c, n := range d.Sizes() {
			sizes[string(c)] = n
		}
		s.events.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeDatasetReload,
			Timestamp: time.Now(),
			Data: websocket.DatasetReloadEvent{
				PreviousVersion: previous.DatasetVersion(),
				Version:         p.DatasetVersion(),
				Sizes:           sizes,
			},
		})
	}

	return nil
}

// Dataset returns the active dataset
func (s *Service) Dataset() *dataset.Dataset {
	return s.dataset.Load()
}

// DatasetVersion returns the version of the active dataset
func (s *Service) DatasetVersion() string {
	return s.pipeline.Load().DatasetVersion()
}

// GetStats returns service counters
func (s *Service) GetStats() Stats {
	return Stats{
		Corrections: s.corrections.Load(),
		CacheHits:   s.cacheHits.Load(),
		Rejected:    s.rejected.Load(),
		Reloads:     s.reloads.Load(),
		RuleErrors:  s.ruleErrors.Load(),
	}
}
