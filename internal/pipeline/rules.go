package pipeline

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/raaihank/textfix/internal/dataset"
)

// A dataset key is a whole word when it is neither preceded nor followed by
// a word character.
const (
	wordStart = `(?<![A-Za-z0-9_])`
	wordEnd   = `(?![A-Za-z0-9_])`
)

// RuleError reports a dataset rule that failed while matching. The text is
// left unchanged for that rule.
type RuleError struct {
	Category dataset.Category
	Pattern  string
	Err      error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s rule %q: %v", e.Category, e.Pattern, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// rule is one compiled dataset entry
type rule struct {
	category    dataset.Category
	pattern     string
	re          *regexp2.Regexp
	replacement string
	// expand enables $1 style group references in replacement
	expand bool
}

// ruleSet applies its rules sequentially, in dataset order
type ruleSet struct {
	rules   []rule
	onError func(*RuleError)
}

func (rs ruleSet) apply(text string) string {
	for _, r := range rs.rules {
		var (
			out string
			err error
		)
		if r.expand {
			out, err = r.re.Replace(text, r.replacement, -1, -1)
		} else {
			replacement := r.replacement
			out, err = r.re.ReplaceFunc(text, func(regexp2.Match) string { return replacement }, -1, -1)
		}
		if err != nil {
			if rs.onError != nil {
				rs.onError(&RuleError{Category: r.category, Pattern: r.pattern, Err: err})
			}
			continue
		}
		text = out
	}
	return text
}

type compiler struct {
	timeout time.Duration
	onError func(*RuleError)
}

func (c compiler) compile(category dataset.Category, pattern, expr, replacement string, expand bool) (rule, error) {
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
	if err != nil {
		return rule{}, fmt.Errorf("%s pattern %q: %w", category, pattern, err)
	}
	if c.timeout > 0 {
		re.MatchTimeout = c.timeout
	}
	return rule{
		category:    category,
		pattern:     pattern,
		re:          re,
		replacement: replacement,
		expand:      expand,
	}, nil
}

// wholeWord compiles literal keys bounded by non-word characters or the
// string edges. Replacements are inserted verbatim.
func (c compiler) wholeWord(category dataset.Category, pairs dataset.PairList) (ruleSet, error) {
	rs := ruleSet{rules: make([]rule, 0, len(pairs)), onError: c.onError}
	for _, p := range pairs {
		r, err := c.compile(category, p.Pattern, wordStart+regexp2.Escape(p.Pattern)+wordEnd, p.Replacement, false)
		if err != nil {
			return ruleSet{}, err
		}
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// raw compiles keys as case-insensitive regular expression fragments with
// no implicit word boundaries.
func (c compiler) raw(category dataset.Category, pairs dataset.PairList) (ruleSet, error) {
	rs := ruleSet{rules: make([]rule, 0, len(pairs)), onError: c.onError}
	for _, p := range pairs {
		r, err := c.compile(category, p.Pattern, p.Pattern, p.Replacement, true)
		if err != nil {
			return ruleSet{}, err
		}
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// fillers compiles filler words for removal together with one trailing
// comma and any following whitespace.
func (c compiler) fillers(words []string) (ruleSet, error) {
	rs := ruleSet{rules: make([]rule, 0, len(words)), onError: c.onError}
	for _, w := range words {
		r, err := c.compile(dataset.CategoryFillerWords, w, wordStart+regexp2.Escape(w)+wordEnd+`,?\s*`, "", false)
		if err != nil {
			return ruleSet{}, err
		}
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// rules holds every compiled dataset category
type rules struct {
	spelling     ruleSet
	contractions ruleSet
	phrases      ruleSet
	formal       ruleSet
	friendly     ruleSet
	clarity      ruleSet
	shorten      ruleSet
	fillers      ruleSet
}

func compileRules(d *dataset.Dataset, c compiler) (*rules, error) {
	var (
		r   rules
		err error
	)

	if r.spelling, err = c.wholeWord(dataset.CategorySpelling, d.Spelling); err != nil {
		return nil, err
	}
	if r.contractions, err = c.wholeWord(dataset.CategoryContractions, d.Contractions); err != nil {
		return nil, err
	}
	if r.phrases, err = c.wholeWord(dataset.CategoryPhrases, d.Phrases); err != nil {
		return nil, err
	}
	if r.formal, err = c.wholeWord(dataset.CategoryFormal, d.Formal); err != nil {
		return nil, err
	}
	if r.friendly, err = c.wholeWord(dataset.CategoryFriendly, d.Friendly); err != nil {
		return nil, err
	}
	if r.clarity, err = c.raw(dataset.CategoryClarity, d.Clarity); err != nil {
		return nil, err
	}
	if r.shorten, err = c.raw(dataset.CategoryShorten, d.Shorten); err != nil {
		return nil, err
	}
	if r.fillers, err = c.fillers(d.FillerWords); err != nil {
		return nil, err
	}

	return &r, nil
}
