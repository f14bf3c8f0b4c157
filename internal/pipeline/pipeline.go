// Package pipeline implements the rule-based correction pipeline: an
// ordered list of stateless string passes driven by a correction dataset.
//
// Pass order is fixed: formatting, spelling, grammar, punctuation, tone,
// mode, capitalization. Capitalization always runs last.
package pipeline

import (
	"fmt"
	"time"

	"github.com/raaihank/textfix/internal/dataset"
)

// Pass names, in pipeline order
const (
	PassFormatting     = "formatting"
	PassSpelling       = "spelling"
	PassGrammar        = "grammar"
	PassPunctuation    = "punctuation"
	PassTone           = "tone"
	PassMode           = "mode"
	PassCapitalization = "capitalization"
)

// DefaultMatchTimeout bounds a single dataset rule match
const DefaultMatchTimeout = 250 * time.Millisecond

type options struct {
	matchTimeout time.Duration
	onRuleError  func(*RuleError)
}

// Option configures a Pipeline
type Option func(*options)

// WithMatchTimeout bounds how long one dataset rule may spend matching
func WithMatchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.matchTimeout = d
	}
}

// WithRuleErrorHandler receives rules that failed while matching
func WithRuleErrorHandler(fn func(*RuleError)) Option {
	return func(o *options) {
		o.onRuleError = fn
	}
}

// Pipeline corrects text. It is immutable once built and safe for
// concurrent use.
type Pipeline struct {
	head    []Pass
	tones   map[Tone]Pass
	modes   map[Mode]Pass
	tail    []Pass
	version string
}

// New compiles a pipeline from a dataset. It fails only when a clarity or
// shorten pattern is not a valid regular expression.
func New(d *dataset.Dataset, opts ...Option) (*Pipeline, error) {
	o := options{matchTimeout: DefaultMatchTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	r, err := compileRules(d, compiler{timeout: o.matchTimeout, onError: o.onRuleError})
	if err != nil {
		return nil, fmt.Errorf("failed to compile dataset: %w", err)
	}

	p := &Pipeline{
		head: []Pass{
			{Name: PassFormatting, Apply: formatText},
			{Name: PassSpelling, Apply: r.spelling.apply},
			{Name: PassGrammar, Apply: func(text string) string {
				text = capitalizeI(text)
				text = r.contractions.apply(text)
				return r.phrases.apply(text)
			}},
			{Name: PassPunctuation, Apply: fixPunctuation},
		},
		tones: map[Tone]Pass{
			ToneFormal: {Name: PassTone, Apply: func(text string) string {
				return formalPunctuation(r.formal.apply(text))
			}},
			ToneFriendly: {Name: PassTone, Apply: r.friendly.apply},
		},
		modes: map[Mode]Pass{
			ModeClarity: {Name: PassMode, Apply: func(text string) string {
				text = splitCompoundSentences(text)
				text = r.clarity.apply(text)
				return capitalize(text)
			}},
			ModeShorten: {Name: PassMode, Apply: func(text string) string {
				text = r.shorten.apply(text)
				text = r.fillers.apply(text)
				text = dropReportingThat(text)
				text = mergeShortSentences(text)
				return cleanupShortened(text)
			}},
		},
		tail: []Pass{
			{Name: PassCapitalization, Apply: capitalize},
		},
		version: d.Version(),
	}

	return p, nil
}

// Passes returns the ordered passes for a tone and mode. The none variants
// and unknown values resolve to identity passes.
func (p *Pipeline) Passes(tone Tone, mode Mode) []Pass {
	passes := make([]Pass, 0, len(p.head)+2+len(p.tail))
	passes = append(passes, p.head...)

	if pass, ok := p.tones[tone]; ok {
		passes = append(passes, pass)
	} else {
		passes = append(passes, Pass{Name: PassTone, Apply: identity})
	}

	if pass, ok := p.modes[mode]; ok {
		passes = append(passes, pass)
	} else {
		passes = append(passes, Pass{Name: PassMode, Apply: identity})
	}

	return append(passes, p.tail...)
}

// Correct folds text through every pass
func (p *Pipeline) Correct(text string, tone Tone, mode Mode) string {
	for _, pass := range p.Passes(tone, mode) {
		text = pass.Apply(text)
	}
	return text
}

// Step records the output of one pass
type Step struct {
	Pass   string `json:"pass"`
	Output string `json:"output"`
}

// Trace corrects text and returns the output after every pass
func (p *Pipeline) Trace(text string, tone Tone, mode Mode) []Step {
	passes := p.Passes(tone, mode)
	steps := make([]Step, 0, len(passes))
	for _, pass := range passes {
		text = pass.Apply(text)
		steps = append(steps, Step{Pass: pass.Name, Output: text})
	}
	return steps
}

// DatasetVersion identifies the dataset the pipeline was built from
func (p *Pipeline) DatasetVersion() string {
	return p.version
}
