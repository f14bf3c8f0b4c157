package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names one table of the correction dataset
type Category string

const (
	CategorySpelling     Category = "spelling"
	CategoryContractions Category = "contractions"
	CategoryPhrases      Category = "phrases"
	CategoryFormal       Category = "formal"
	CategoryFriendly     Category = "friendly"
	CategoryClarity      Category = "clarity"
	CategoryShorten      Category = "shorten"
	CategoryFillerWords  Category = "filler_words"
)

// PairCategories lists the pattern/replacement categories in pipeline order
var PairCategories = []Category{
	CategorySpelling,
	CategoryContractions,
	CategoryPhrases,
	CategoryFormal,
	CategoryFriendly,
	CategoryClarity,
	CategoryShorten,
}

// ParseCategory resolves a category name
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if c == CategoryFillerWords {
		return c, nil
	}
	for _, known := range PairCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown dataset category: %s", name)
}

var (
	// ErrDuplicateKey is returned when a category maps the same key twice
	ErrDuplicateKey = errors.New("duplicate dataset key")
	// ErrEmptyPattern is returned for a pair or filler word with no text
	ErrEmptyPattern = errors.New("empty dataset pattern")
)

// Pair maps a pattern to its replacement
type Pair struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
}

// PairList is an ordered list of pairs. Order is significant: pairs are
// applied sequentially, each one seeing the output of the previous.
type PairList []Pair

// UnmarshalYAML accepts either a mapping (key order preserved) or a
// sequence of {pattern, replacement} items.
func (l *PairList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		pairs := make(PairList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: pair key and value must be scalars", key.Line)
			}
			pairs = append(pairs, Pair{Pattern: key.Value, Replacement: value.Value})
		}
		*l = pairs
		return nil
	case yaml.SequenceNode:
		var pairs []Pair
		if err := node.Decode(&pairs); err != nil {
			return err
		}
		*l = pairs
		return nil
	default:
		return fmt.Errorf("line %d: expected mapping or sequence of pairs", node.Line)
	}
}

// MarshalYAML writes the list as an ordered mapping
func (l PairList) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range l {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Pattern},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Replacement},
		)
	}
	return node, nil
}

// Dataset is the read-only collection of correction tables consumed by the
// pipeline.
type Dataset struct {
	Spelling     PairList `yaml:"spelling" json:"spelling"`
	Contractions PairList `yaml:"contractions" json:"contractions"`
	Phrases      PairList `yaml:"phrases" json:"phrases"`
	Formal       PairList `yaml:"formal" json:"formal"`
	Friendly     PairList `yaml:"friendly" json:"friendly"`
	Clarity      PairList `yaml:"clarity" json:"clarity"`
	Shorten      PairList `yaml:"shorten" json:"shorten"`
	FillerWords  []string `yaml:"filler_words" json:"filler_words"`
}

// Pairs returns the pair list of a category, nil for unknown categories
func (d *Dataset) Pairs(c Category) PairList {
	switch c {
	case CategorySpelling:
		return d.Spelling
	case CategoryContractions:
		return d.Contractions
	case CategoryPhrases:
		return d.Phrases
	case CategoryFormal:
		return d.Formal
	case CategoryFriendly:
		return d.Friendly
	case CategoryClarity:
		return d.Clarity
	case CategoryShorten:
		return d.Shorten
	default:
		return nil
	}
}

func (d *Dataset) pairsRef(c Category) *PairList {
	switch c {
	case CategorySpelling:
		return &d.Spelling
	case CategoryContractions:
		return &d.Contractions
	case CategoryPhrases:
		return &d.Phrases
	case CategoryFormal:
		return &d.Formal
	case CategoryFriendly:
		return &d.Friendly
	case CategoryClarity:
		return &d.Clarity
	case CategoryShorten:
		return &d.Shorten
	default:
		return nil
	}
}

// Validate checks that every category maps each key once. Keys are
// compared case-insensitively because all matching is case-insensitive.
func (d *Dataset) Validate() error {
	for _, c := range PairCategories {
		seen := make(map[string]int)
		for i, p := range d.Pairs(c) {
			if strings.TrimSpace(p.Pattern) == "" {
				return fmt.Errorf("%s[%d]: %w", c, i, ErrEmptyPattern)
			}
			key := strings.ToLower(p.Pattern)
			if first, ok := seen[key]; ok {
				return fmt.Errorf("%s: %q at %d and %d: %w", c, p.Pattern, first, i, ErrDuplicateKey)
			}
			seen[key] = i
		}
	}

	seen := make(map[string]bool)
	for i, w := range d.FillerWords {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("%s[%d]: %w", CategoryFillerWords, i, ErrEmptyPattern)
		}
		key := strings.ToLower(w)
		if seen[key] {
			return fmt.Errorf("%s: %q: %w", CategoryFillerWords, w, ErrDuplicateKey)
		}
		seen[key] = true
	}

	return nil
}

// Sizes returns the number of entries per category
func (d *Dataset) Sizes() map[Category]int {
	sizes := make(map[Category]int, len(PairCategories)+1)
	for _, c := range PairCategories {
		sizes[c] = len(d.Pairs(c))
	}
	sizes[CategoryFillerWords] = len(d.FillerWords)
	return sizes
}

// Version fingerprints the dataset contents, including entry order
func (d *Dataset) Version() string {
	data, err := json.Marshal(d)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// Clone returns a deep copy
func (d *Dataset) Clone() *Dataset {
	clone := &Dataset{FillerWords: append([]string(nil), d.FillerWords...)}
	for _, c := range PairCategories {
		*clone.pairsRef(c) = append(PairList(nil), d.Pairs(c)...)
	}
	return clone
}

// Merge returns a copy of the dataset with pairs appended to category c.
// Pairs whose key already exists are skipped; the number appended is
// returned.
func (d *Dataset) Merge(c Category, pairs PairList) (*Dataset, int, error) {
	clone := d.Clone()
	ref := clone.pairsRef(c)
	if ref == nil {
		return nil, 0, fmt.Errorf("cannot merge pairs into category %s", c)
	}

	existing := make(map[string]bool, len(*ref))
	for _, p := range *ref {
		existing[strings.ToLower(p.Pattern)] = true
	}

	added := 0
	for _, p := range pairs {
		key := strings.ToLower(p.Pattern)
		if key == "" || existing[key] {
			continue
		}
		existing[key] = true
		*ref = append(*ref, p)
		added++
	}

	return clone, added, nil
}
