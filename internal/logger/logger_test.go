package logger

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("ValidLevels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			for _, format := range []string{"json", "console"} {
				log, err := New(Config{Level: level, Format: format})
				if err != nil {
					t.Fatalf("New(%s, %s) failed: %v", level, format, err)
				}
				if log.Logger == nil {
					t.Fatal("Logger is nil")
				}
			}
		}
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		if _, err := New(Config{Level: "loud", Format: "json"}); err == nil {
			t.Error("Expected error for invalid level")
		}
	})
}

func TestLogCorrection(t *testing.T) {
	t.Run("TextRedactedByDefault", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		log := &Logger{Logger: zap.New(core)}

		log.LogCorrection("formal", "none", "hi there!", "Hi there.", false, time.Millisecond)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("Expected 1 entry, got %d", len(entries))
		}
		fields := entries[0].ContextMap()
		if _, ok := fields["original"]; ok {
			t.Error("Original text should not be logged")
		}
		if fields["changed"] != true {
			t.Errorf("Expected changed=true, got %v", fields["changed"])
		}
	})

	t.Run("TextIncludedWhenEnabled", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		log := (&Logger{Logger: zap.New(core), logText: true}).WithComponent("corrector")

		log.LogCorrection("none", "none", "same", "same", true, 0)

		fields := logs.All()[0].ContextMap()
		if fields["original"] != "same" {
			t.Errorf("Expected original text, got %v", fields["original"])
		}
		if fields["component"] != "corrector" {
			t.Errorf("Expected component field, got %v", fields["component"])
		}
	})
}
