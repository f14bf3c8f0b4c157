package etl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/store"
)

// PairStore persists dataset pairs
type PairStore interface {
	BatchInsertPairs(ctx context.Context, category dataset.Category, pairs dataset.PairList, source string) (*store.BatchInsertResult, error)
}

// Pairs converts records into spelling pairs, keeping input order
func Pairs(records []*SpellingRecord) dataset.PairList {
	pairs := make(dataset.PairList, len(records))
	for i, r := range records {
		pairs[i] = dataset.Pair{Pattern: r.IncorrectWord, Replacement: r.CorrectWord}
	}
	return pairs
}

// MergeIntoFile appends records to a category of the YAML dataset at path.
// A missing file starts from an empty dataset. Keys already present are
// kept. It returns the number of pairs added.
func MergeIntoFile(path string, category dataset.Category, records []*SpellingRecord) (int, error) {
	d, err := dataset.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		d, err = &dataset.Dataset{}, nil
	}
	if err != nil {
		return 0, err
	}

	merged, added, err := d.Merge(category, Pairs(records))
	if err != nil {
		return 0, err
	}
	if err := merged.Validate(); err != nil {
		return 0, fmt.Errorf("merged dataset is invalid: %w", err)
	}

	if err := dataset.WriteFile(path, merged); err != nil {
		return 0, err
	}
	return added, nil
}

// StoreHandler returns a batch handler that inserts each batch into a
// category of the store
func StoreHandler(s PairStore, category dataset.Category, source string) BatchHandler {
	return func(ctx context.Context, batch []*SpellingRecord) error {
		if _, err := s.BatchInsertPairs(ctx, category, Pairs(batch), source); err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}
		return nil
	}
}
