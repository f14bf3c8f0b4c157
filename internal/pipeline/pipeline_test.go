package pipeline

import (
	"errors"
	"testing"

	"github.com/raaihank/textfix/internal/dataset"
)

func mustPipeline(t *testing.T, d *dataset.Dataset) *Pipeline {
	t.Helper()
	p, err := New(d)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestCorrect(t *testing.T) {
	custom := &dataset.Dataset{
		Spelling:     dataset.PairList{{Pattern: "recieve", Replacement: "receive"}},
		Contractions: dataset.PairList{{Pattern: "it's", Replacement: "it is"}},
		FillerWords:  []string{"basically"},
	}
	p := mustPipeline(t, custom)

	tests := []struct {
		name  string
		input string
		tone  Tone
		mode  Mode
		want  string
	}{
		{"OrderSensitivity", "i recieve it's fine!!", ToneFormal, ModeNone, "I receive it is fine."},
		{"CapitalizationBoundary", "hello. world", ToneNone, ModeNone, "Hello. World"},
		{"WholeWordOnly", "I recieved it and recieve more", ToneNone, ModeNone, "I recieved it and receive more"},
		{"SpellingIgnoresCase", "RECIEVE it", ToneNone, ModeNone, "Receive it"},
		{"ClaritySplit", "I went home, and I was tired", ToneNone, ModeClarity, "I went home. And I was tired"},
		{"ClarityConnective", "It rained however we went out", ToneNone, ModeClarity, "It rained. However, we went out"},
		{"ClarityNoDuplicateMarks", "It rained. however we went out", ToneNone, ModeClarity, "It rained. However we went out"},
		{"ClarityConjunctionBeforeConnective", "It rained, and however we went", ToneNone, ModeClarity, "It rained. And however we went"},
		{"ClarityConnectiveAfterComma", "It rained, however we went", ToneNone, ModeClarity, "It rained, however we went"},
		{"ParagraphBreaksCollapse", "para one.\n\n\n\npara two", ToneNone, ModeNone, "Para one. Para two"},
		{"ShortenFiller", "Basically, I think that this is fine", ToneNone, ModeShorten, "I think this is fine"},
		{"ShortenMerge", "I came home. And I slept.", ToneNone, ModeShorten, "I came home and slept."},
		{"RepeatedWords", "the the the cat sat", ToneNone, ModeNone, "The cat sat"},
		{"RepeatedWordsMixedCase", "The the cat", ToneNone, ModeNone, "The cat"},
		{"WhitespaceCollapse", "  too    many\t\tspaces  ", ToneNone, ModeNone, "Too many spaces"},
		{"PunctuationSpacing", "Hello , world !How are you ?", ToneNone, ModeNone, "Hello, world! How are you?"},
		{"MissingSpaceAfterComma", "Hello,world", ToneNone, ModeNone, "Hello, world"},
		{"DecimalsUntouched", "pi is 3.14", ToneNone, ModeNone, "Pi is 3.14"},
		{"DoubledQuotes", "he said ``hi''", ToneNone, ModeNone, `He said "hi"`},
		{"UnknownToneIsIdentity", "wow!", Tone("sarcastic"), ModeNone, "Wow!"},
		{"Empty", "", ToneFormal, ModeShorten, ""},
		{"WhitespaceOnly", " \n\t ", ToneNone, ModeClarity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Correct(tt.input, tt.tone, tt.mode)
			if got != tt.want {
				t.Errorf("Correct(%q, %s, %s) = %q, want %q", tt.input, tt.tone, tt.mode, got, tt.want)
			}
		})
	}
}

func TestCorrectDefaultDataset(t *testing.T) {
	p := mustPipeline(t, dataset.Default())

	tests := []struct {
		name  string
		input string
		tone  Tone
		mode  Mode
		want  string
	}{
		{"SpellingAndPunctuation", "hello   world ,this is teh test", ToneNone, ModeNone, "Hello world, this is the test"},
		{"OrderSensitivity", "i recieve it's fine!!", ToneFormal, ModeNone, "I receive it is fine."},
		{"Contractions", "i dont know", ToneNone, ModeNone, "I don't know"},
		{"Phrases", "you should of asked", ToneNone, ModeNone, "You should have asked"},
		{"Formal", "hey guys, this is awesome!", ToneFormal, ModeNone, "Hello everyone, this is excellent."},
		{"Friendly", "I am happy to assist you. Thank you.", ToneFriendly, ModeNone, "I'm happy to help you. Thanks."},
		{"ClarityRawPatterns", "we must utilize the tool in order to win", ToneNone, ModeClarity, "We must use the tool to win"},
		{"ShortenFiller", "Basically, I think that this is fine", ToneNone, ModeShorten, "I think this is fine"},
		{"ShortenPhrases", "we will finish in the near future", ToneNone, ModeShorten, "We will finish soon"},
		{"ShortenTrailingFiller", "it works, really.", ToneNone, ModeShorten, "It works."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Correct(tt.input, tt.tone, tt.mode)
			if got != tt.want {
				t.Errorf("Correct(%q, %s, %s) = %q, want %q", tt.input, tt.tone, tt.mode, got, tt.want)
			}
		})
	}
}

func TestProperties(t *testing.T) {
	p := mustPipeline(t, dataset.Default())

	inputs := []string{
		"Hello world. This is fine.",
		"I think it is good, and we agree.",
		"hello   world ,this is teh test",
		"what? no! yes.",
	}

	t.Run("IdempotentWithoutToneOrMode", func(t *testing.T) {
		for _, in := range inputs {
			once := p.Correct(in, ToneNone, ModeNone)
			twice := p.Correct(once, ToneNone, ModeNone)
			if once != twice {
				t.Errorf("f(f(%q)) = %q, f(%q) = %q", in, twice, in, once)
			}
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		for _, in := range inputs {
			for _, tone := range Tones {
				for _, mode := range Modes {
					first := p.Correct(in, tone, mode)
					for i := 0; i < 3; i++ {
						if got := p.Correct(in, tone, mode); got != first {
							t.Fatalf("Non-deterministic output for %q (%s, %s): %q vs %q", in, tone, mode, got, first)
						}
					}
				}
			}
		}
	})

	t.Run("CapitalizationIdempotent", func(t *testing.T) {
		for _, in := range []string{"a. b! c? d", `"quoted" start`, "élan. über"} {
			once := capitalize(in)
			if twice := capitalize(once); twice != once {
				t.Errorf("capitalize not idempotent for %q: %q vs %q", in, once, twice)
			}
		}
	})
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"hello. world":      "Hello. World",
		"what? yes! no.":    "What? Yes! No.",
		`"quoted" text`:     `"Quoted" text`,
		"(aside) here":      "(Aside) here",
		"élan. über alles":  "Élan. Über alles",
		`she said "go." ok`: `She said "go." Ok`,
		"3 apples. two":     "3 apples. Two",
		"":                  "",
	}

	for in, want := range tests {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmptyDatasetIsNoOp(t *testing.T) {
	p := mustPipeline(t, &dataset.Dataset{})

	for _, tone := range Tones {
		for _, mode := range Modes {
			if got := p.Correct("teh cat", tone, mode); got != "Teh cat" {
				t.Errorf("Correct with empty dataset (%s, %s) = %q", tone, mode, got)
			}
		}
	}
}

func TestSequentialSubstitution(t *testing.T) {
	// the second pair sees the output of the first
	p := mustPipeline(t, &dataset.Dataset{
		Spelling: dataset.PairList{
			{Pattern: "colour", Replacement: "color"},
			{Pattern: "color", Replacement: "hue"},
		},
	})

	if got := p.Correct("colour", ToneNone, ModeNone); got != "Hue" {
		t.Errorf("Expected sequential substitution, got %q", got)
	}
}

func TestLiteralKeysAndReplacements(t *testing.T) {
	p := mustPipeline(t, &dataset.Dataset{
		Phrases: dataset.PairList{
			{Pattern: "a.b", Replacement: "$1 cost"},
		},
	})

	if got := p.Correct("use a.b now, not axb", ToneNone, ModeNone); got != "Use $1 cost now, not axb" {
		t.Errorf("Whole-word keys must be literal, got %q", got)
	}
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	_, err := New(&dataset.Dataset{
		Clarity: dataset.PairList{{Pattern: "(unclosed", Replacement: "x"}},
	})
	if err == nil {
		t.Fatal("Expected error for invalid clarity pattern")
	}
}

func TestPasses(t *testing.T) {
	p := mustPipeline(t, dataset.Default())
	want := []string{
		PassFormatting, PassSpelling, PassGrammar, PassPunctuation,
		PassTone, PassMode, PassCapitalization,
	}

	for _, tone := range Tones {
		for _, mode := range Modes {
			passes := p.Passes(tone, mode)
			if len(passes) != len(want) {
				t.Fatalf("Expected %d passes, got %d", len(want), len(passes))
			}
			for i, pass := range passes {
				if pass.Name != want[i] {
					t.Errorf("Pass %d = %s, want %s", i, pass.Name, want[i])
				}
			}
		}
	}
}

func TestTrace(t *testing.T) {
	p := mustPipeline(t, dataset.Default())
	input := "i recieve it's fine!!"

	steps := p.Trace(input, ToneFormal, ModeNone)
	if len(steps) != 7 {
		t.Fatalf("Expected 7 steps, got %d", len(steps))
	}
	if steps[1].Pass != PassSpelling || steps[1].Output != "i receive it's fine!!" {
		t.Errorf("Unexpected spelling step: %+v", steps[1])
	}
	if last := steps[len(steps)-1]; last.Output != p.Correct(input, ToneFormal, ModeNone) {
		t.Errorf("Last trace step %q differs from Correct", last.Output)
	}
}

func TestDatasetVersion(t *testing.T) {
	d := dataset.Default()
	p := mustPipeline(t, d)
	if p.DatasetVersion() != d.Version() {
		t.Errorf("DatasetVersion = %s, want %s", p.DatasetVersion(), d.Version())
	}
}

func TestParseVariants(t *testing.T) {
	t.Run("Tone", func(t *testing.T) {
		for in, want := range map[string]Tone{"": ToneNone, "Formal": ToneFormal, " friendly ": ToneFriendly} {
			got, err := ParseTone(in)
			if err != nil || got != want {
				t.Errorf("ParseTone(%q) = %v, %v; want %v", in, got, err, want)
			}
		}
		if _, err := ParseTone("angry"); !errors.Is(err, ErrUnknownTone) {
			t.Errorf("Expected ErrUnknownTone, got %v", err)
		}
	})

	t.Run("Mode", func(t *testing.T) {
		for in, want := range map[string]Mode{"": ModeNone, "CLARITY": ModeClarity, "shorten": ModeShorten} {
			got, err := ParseMode(in)
			if err != nil || got != want {
				t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
			}
		}
		if _, err := ParseMode("expand"); !errors.Is(err, ErrUnknownMode) {
			t.Errorf("Expected ErrUnknownMode, got %v", err)
		}
	})
}

func TestRuleError(t *testing.T) {
	err := &RuleError{Category: dataset.CategoryClarity, Pattern: "x+", Err: errors.New("match timeout")}
	if err.Error() != `clarity rule "x+": match timeout` {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if errors.Unwrap(err) == nil {
		t.Error("RuleError should unwrap")
	}
}
