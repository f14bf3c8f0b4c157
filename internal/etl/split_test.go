package etl

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stratifiedRecords() []*SpellingRecord {
	var records []*SpellingRecord
	add := func(errorType string, n int) {
		for i := 0; i < n; i++ {
			records = append(records, &SpellingRecord{
				IncorrectWord: fmt.Sprintf("%s%dx", errorType, i),
				CorrectWord:   fmt.Sprintf("%s%d", errorType, i),
				ErrorType:     errorType,
			})
		}
	}
	add("ie_ei", 10)
	add("missing_space", 5)
	add("double_letter", 1)
	return records
}

func countByType(records []*SpellingRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.ErrorType]++
	}
	return counts
}

func TestSplit(t *testing.T) {
	records := stratifiedRecords()

	train, test, err := Split(records, 0.2, DefaultSplitSeed)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"ie_ei": 2, "missing_space": 1}, countByType(test))
	assert.Equal(t, map[string]int{"ie_ei": 8, "missing_space": 4, "double_letter": 1}, countByType(train))

	seen := make(map[string]bool)
	for _, r := range append(append([]*SpellingRecord(nil), train...), test...) {
		assert.False(t, seen[r.IncorrectWord], "%s assigned twice", r.IncorrectWord)
		seen[r.IncorrectWord] = true
	}
	assert.Len(t, seen, len(records))

	t.Run("Deterministic", func(t *testing.T) {
		train2, test2, err := Split(records, 0.2, DefaultSplitSeed)
		require.NoError(t, err)
		if diff := cmp.Diff(train, train2); diff != "" {
			t.Errorf("train mismatch (-first +second):\n%s", diff)
		}
		if diff := cmp.Diff(test, test2); diff != "" {
			t.Errorf("test mismatch (-first +second):\n%s", diff)
		}
	})

	t.Run("InputUntouched", func(t *testing.T) {
		assert.Equal(t, "ie_ei0x", records[0].IncorrectWord)
		assert.Equal(t, "double_letter", records[15].ErrorType)
	})
}

func TestSplitInvalidRatio(t *testing.T) {
	for _, ratio := range []float64{0, 1, -0.2, 1.5, math.NaN()} {
		_, _, err := Split(stratifiedRecords(), ratio, DefaultSplitSeed)
		assert.Error(t, err, "ratio %v", ratio)
	}
}

func TestSplitPaths(t *testing.T) {
	train, test := SplitPaths(filepath.Join("out", "corpus.json"))
	assert.Equal(t, filepath.Join("out", "corpus_train.json"), train)
	assert.Equal(t, filepath.Join("out", "corpus_test.json"), test)

	train, test = SplitPaths("corpus")
	assert.Equal(t, "corpus_train", train)
	assert.Equal(t, "corpus_test", test)
}

func TestExportSplit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")

	result, err := ExportSplit(stratifiedRecords(), path, 0.2, DefaultSplitSeed)
	require.NoError(t, err)
	assert.Equal(t, 13, result.Train)
	assert.Equal(t, 3, result.Test)

	p := NewPipeline(DefaultConfig(), zap.NewNop())
	test, _, err := p.LoadFile(context.Background(), result.TestPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ie_ei": 2, "missing_space": 1}, countByType(test))

	p = NewPipeline(DefaultConfig(), zap.NewNop())
	train, _, err := p.LoadFile(context.Background(), result.TrainPath)
	require.NoError(t, err)
	assert.Len(t, train, 13)

	_, err = ExportSplit(stratifiedRecords(), path, 0, DefaultSplitSeed)
	assert.Error(t, err)
}
