package etl

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"unicode/utf8"
)

// Count is one bucket of a distribution
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Bucket is one bucket of a numeric histogram
type Bucket struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// Analysis summarizes a spelling-corrections dataset
type Analysis struct {
	TotalRecords        int      `json:"total_records"`
	ErrorTypes          []Count  `json:"error_types"`
	FrequencyCategories []Count  `json:"frequency_categories"`
	LengthDiffs         []Bucket `json:"length_diffs"`
	WordLengths         []Bucket `json:"word_lengths"`
	AvgWordLength       float64  `json:"avg_word_length"`
}

// Analyze computes distributions over records. Lengths are counted in
// characters of the correct word; length differences are correct minus
// incorrect.
func Analyze(records []*SpellingRecord) *Analysis {
	a := &Analysis{TotalRecords: len(records)}

	errorTypes := make(map[string]int)
	frequencies := make(map[string]int)
	diffs := make(map[int]int)
	lengths := make(map[int]int)
	totalLength := 0

	for _, r := range records {
		errorTypes[labelOrUnknown(r.ErrorType)]++
		frequencies[labelOrUnknown(r.FrequencyCategory)]++

		correct := utf8.RuneCountInString(r.CorrectWord)
		diffs[correct-utf8.RuneCountInString(r.IncorrectWord)]++
		lengths[correct]++
		totalLength += correct
	}

	a.ErrorTypes = sortedCounts(errorTypes)
	a.FrequencyCategories = sortedCounts(frequencies)
	a.LengthDiffs = sortedBuckets(diffs)
	a.WordLengths = sortedBuckets(lengths)
	if len(records) > 0 {
		a.AvgWordLength = float64(totalLength) / float64(len(records))
	}

	return a
}

// TopErrorTypes returns at most n of the most common error types
func (a *Analysis) TopErrorTypes(n int) []Count {
	if n > len(a.ErrorTypes) {
		n = len(a.ErrorTypes)
	}
	return a.ErrorTypes[:n]
}

// WriteReport prints the analysis as aligned text
func (a *Analysis) WriteReport(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Total records:\t%d\n", a.TotalRecords)
	fmt.Fprintf(tw, "Average word length:\t%.2f\n", a.AvgWordLength)

	fmt.Fprintln(tw, "\nError types:")
	for _, c := range a.ErrorTypes {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", c.Value, c.Count, a.percent(c.Count))
	}

	fmt.Fprintln(tw, "\nFrequency categories:")
	for _, c := range a.FrequencyCategories {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", c.Value, c.Count, a.percent(c.Count))
	}

	fmt.Fprintln(tw, "\nLength difference (correct - incorrect):")
	for _, b := range a.LengthDiffs {
		fmt.Fprintf(tw, "  %+d\t%d\n", b.Value, b.Count)
	}

	fmt.Fprintln(tw, "\nWord length:")
	for _, b := range a.WordLengths {
		fmt.Fprintf(tw, "  %d\t%d\n", b.Value, b.Count)
	}

	return tw.Flush()
}

func (a *Analysis) percent(n int) string {
	if a.TotalRecords == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(a.TotalRecords)*100)
}

func labelOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// sortedCounts orders by count descending, then value
func sortedCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for v, n := range m {
		counts = append(counts, Count{Value: v, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Value < counts[j].Value
	})
	return counts
}

func sortedBuckets(m map[int]int) []Bucket {
	buckets := make([]Bucket, 0, len(m))
	for v, n := range m {
		buckets = append(buckets, Bucket{Value: v, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Value < buckets[j].Value
	})
	return buckets
}
