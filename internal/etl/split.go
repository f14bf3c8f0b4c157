package etl

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
)

// DefaultSplitSeed makes repeated splits of the same input identical
const DefaultSplitSeed int64 = 42

// Split divides records into training and test sets, stratified by error
// type so each type keeps its share in both sets. Within every error type
// the records are shuffled with seed and round(n*testRatio) of them go to
// the test set. Both outputs keep the order in which error types first
// appear in records.
func Split(records []*SpellingRecord, testRatio float64, seed int64) (train, test []*SpellingRecord, err error) {
	if !(testRatio > 0 && testRatio < 1) {
		return nil, nil, fmt.Errorf("test ratio must be between 0 and 1, got %v", testRatio)
	}

	var order []string
	groups := make(map[string][]*SpellingRecord)
	for _, r := range records {
		if _, ok := groups[r.ErrorType]; !ok {
			order = append(order, r.ErrorType)
		}
		groups[r.ErrorType] = append(groups[r.ErrorType], r)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, errorType := range order {
		group := append([]*SpellingRecord(nil), groups[errorType]...)
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})

		nTest := int(math.Round(float64(len(group)) * testRatio))
		test = append(test, group[:nTest]...)
		train = append(train, group[nTest:]...)
	}

	return train, test, nil
}

// SplitResult reports where ExportSplit wrote each set
type SplitResult struct {
	TrainPath string
	TestPath  string
	Train     int
	Test      int
}

// SplitPaths derives the training and test file names from an export path:
// corpus.json becomes corpus_train.json and corpus_test.json.
func SplitPaths(path string) (train, test string) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_train" + ext, base + "_test" + ext
}

// ExportSplit splits records and exports both sets in the format implied by
// path.
func ExportSplit(records []*SpellingRecord, path string, testRatio float64, seed int64) (*SplitResult, error) {
	train, test, err := Split(records, testRatio, seed)
	if err != nil {
		return nil, err
	}

	result := &SplitResult{Train: len(train), Test: len(test)}
	result.TrainPath, result.TestPath = SplitPaths(path)
	if err := Export(train, result.TrainPath); err != nil {
		return nil, err
	}
	if err := Export(test, result.TestPath); err != nil {
		return nil, err
	}
	return result, nil
}
