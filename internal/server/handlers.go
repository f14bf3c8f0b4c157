package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/corrector"
	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/pipeline"
)

// bodyOverhead allows for JSON framing and escapes around the text
const bodyOverhead = 64 << 10

type correctRequest struct {
	Text    string `json:"text"`
	Tone    string `json:"tone"`
	Mode    string `json:"mode"`
	Compare bool   `json:"compare"`
}

type correctResponse struct {
	Original       string  `json:"original"`
	Corrected      string  `json:"corrected"`
	Tone           string  `json:"tone"`
	Mode           string  `json:"mode"`
	Changed        bool    `json:"changed"`
	CacheHit       bool    `json:"cache_hit"`
	DatasetVersion string  `json:"dataset_version"`
	DurationMS     float64 `json:"duration_ms"`
	HTML           string  `json:"html,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCorrectRequest(w, r)
	if !ok {
		return
	}

	result, err := s.corrector.Correct(r.Context(), corrector.Request{
		Text:      req.Text,
		Tone:      req.Tone,
		Mode:      req.Mode,
		Compare:   req.Compare,
		HTML:      r.URL.Query().Get("format") == "html",
		RequestID: requestID(r.Context()),
	})
	if err != nil {
		s.writeCorrectionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, correctResponse{
		Original:       result.Original,
		Corrected:      result.Corrected,
		Tone:           string(result.Tone),
		Mode:           string(result.Mode),
		Changed:        result.Changed,
		CacheHit:       result.CacheHit,
		DatasetVersion: result.DatasetVersion,
		DurationMS:     float64(result.Duration.Microseconds()) / 1000,
		HTML:           result.HTML,
	})
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCorrectRequest(w, r)
	if !ok {
		return
	}

	steps, err := s.corrector.Trace(corrector.Request{Text: req.Text, Tone: req.Tone, Mode: req.Mode})
	if err != nil {
		s.writeCorrectionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"original":        req.Text,
		"steps":           steps,
		"dataset_version": s.corrector.DatasetVersion(),
	})
}

func (s *Server) decodeCorrectRequest(w http.ResponseWriter, r *http.Request) (*correctRequest, bool) {
	limit := int64(bodyOverhead)
	if n := s.config.Pipeline.MaxInputLength; n > 0 {
		// a character is at most 4 bytes of UTF-8, or 6 as a JSON escape
		limit += int64(n) * 6
	} else {
		limit = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req correctRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, corrector.ErrTextTooLong.Error())
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return &req, true
}

func (s *Server) writeCorrectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, corrector.ErrEmptyText):
		writeError(w, http.StatusBadRequest, corrector.ErrEmptyText.Error())
	case errors.Is(err, corrector.ErrTextTooLong):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, pipeline.ErrUnknownTone), errors.Is(err, pipeline.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Correction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	d := s.corrector.Dataset()

	sizes := make(map[string]int)
	total := 0
	for c, n := range d.Sizes() {
		sizes[string(c)] = n
		total += n
	}

	categories := make([]string, 0, len(dataset.PairCategories)+1)
	for _, c := range dataset.PairCategories {
		categories = append(categories, string(c))
	}
	categories = append(categories, string(dataset.CategoryFillerWords))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":    s.corrector.DatasetVersion(),
		"categories": categories,
		"sizes":      sizes,
		"total":      total,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"corrector": s.corrector.GetStats(),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
	}

	if s.wsHub != nil {
		stats["websocket"] = s.wsHub.GetStats()
	}

	if s.cache != nil {
		if cs, err := s.cache.GetStats(r.Context()); err != nil {
			s.logger.Warn("Failed to get cache stats", zap.Error(err))
		} else {
			stats["cache"] = cs
		}
	}

	if s.store != nil {
		if ss, err := s.store.GetStats(r.Context()); err != nil {
			s.logger.Warn("Failed to get store stats", zap.Error(err))
		} else {
			stats["store"] = ss
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	tones := make([]string, len(pipeline.Tones))
	for i, t := range pipeline.Tones {
		tones[i] = string(t)
	}
	modes := make([]string, len(pipeline.Modes))
	for i, m := range pipeline.Modes {
		modes[i] = string(m)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "textfix",
		"version":           Version,
		"dataset_version":   s.corrector.DatasetVersion(),
		"tones":             tones,
		"modes":             modes,
		"max_input_length":  s.config.Pipeline.MaxInputLength,
		"cache_enabled":     s.cache != nil,
		"store_enabled":     s.store != nil,
		"websocket_enabled": s.wsHub != nil && s.config.WebSocket.Enabled,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
