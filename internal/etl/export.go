package etl

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/segmentio/parquet-go"
)

// parallelCorpus is the JSON export layout: three aligned arrays
type parallelCorpus struct {
	Source    []string `json:"source"`
	Target    []string `json:"target"`
	ErrorType []string `json:"error_type"`
}

func (c parallelCorpus) records() ([]SpellingRecord, error) {
	if len(c.Source) != len(c.Target) {
		return nil, fmt.Errorf("parallel corpus has %d sources and %d targets", len(c.Source), len(c.Target))
	}
	if len(c.ErrorType) > len(c.Source) {
		return nil, fmt.Errorf("parallel corpus has %d error types for %d sources", len(c.ErrorType), len(c.Source))
	}

	records := make([]SpellingRecord, len(c.Source))
	for i := range c.Source {
		records[i] = SpellingRecord{IncorrectWord: c.Source[i], CorrectWord: c.Target[i]}
		if i < len(c.ErrorType) {
			records[i].ErrorType = c.ErrorType[i]
		}
	}
	return records, nil
}

// Export writes records in the format implied by the file extension:
// .json (source/target/error_type arrays), .tsv (incorrect and correct
// word, no header), .csv (input_text/target_text with a "correct: "
// prompt prefix) or .parquet (full records).
func Export(records []*SpellingRecord, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	switch DetectFileFormat(path) {
	case FormatJSON:
		err = exportJSON(file, records)
	case FormatTSV:
		err = exportTSV(file, records)
	case FormatParquet:
		err = exportParquet(file, records)
	default:
		err = exportPromptCSV(file, records)
	}

	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	return nil
}

func exportJSON(file *os.File, records []*SpellingRecord) error {
	corpus := parallelCorpus{
		Source:    make([]string, len(records)),
		Target:    make([]string, len(records)),
		ErrorType: make([]string, len(records)),
	}
	for i, r := range records {
		corpus.Source[i] = r.IncorrectWord
		corpus.Target[i] = r.CorrectWord
		corpus.ErrorType[i] = r.ErrorType
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(corpus)
}

func exportTSV(file *os.File, records []*SpellingRecord) error {
	w := bufio.NewWriter(file)
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.IncorrectWord, r.CorrectWord); err != nil {
			return err
		}
	}
	return w.Flush()
}

func exportPromptCSV(file *os.File, records []*SpellingRecord) error {
	w := csv.NewWriter(file)
	if err := w.Write([]string{"input_text", "target_text"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{"correct: " + r.IncorrectWord, r.CorrectWord}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportParquet(file *os.File, records []*SpellingRecord) error {
	rows := make([]SpellingRecord, len(records))
	for i, r := range records {
		rows[i] = *r
	}

	writer := parquet.NewGenericWriter[SpellingRecord](file)
	if _, err := writer.Write(rows); err != nil {
		return err
	}
	return writer.Close()
}
