package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestParse(t *testing.T) {
	t.Run("MappingPreservesOrder", func(t *testing.T) {
		d, err := Parse([]byte(`
spelling:
  zzz: z
  aaa: a
  mmm: m
`))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		want := PairList{{"zzz", "z"}, {"aaa", "a"}, {"mmm", "m"}}
		if diff := cmp.Diff(want, d.Spelling); diff != "" {
			t.Errorf("Spelling mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("SequenceForm", func(t *testing.T) {
		d, err := Parse([]byte(`
clarity:
  - pattern: '\bin order to\b'
    replacement: to
filler_words: [basically]
`))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(d.Clarity) != 1 || d.Clarity[0].Replacement != "to" {
			t.Errorf("Unexpected clarity pairs: %+v", d.Clarity)
		}
		if len(d.FillerWords) != 1 {
			t.Errorf("Expected 1 filler word, got %d", len(d.FillerWords))
		}
	})

	t.Run("DuplicateKeyCaseInsensitive", func(t *testing.T) {
		_, err := Parse([]byte("formal:\n  Hey: hello\n  hey: greetings\n"))
		if !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("Expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("EmptyPattern", func(t *testing.T) {
		_, err := Parse([]byte("filler_words: ['  ']\n"))
		if !errors.Is(err, ErrEmptyPattern) {
			t.Errorf("Expected ErrEmptyPattern, got %v", err)
		}
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		if _, err := Parse([]byte("slang:\n  a: b\n")); err == nil {
			t.Error("Expected error for unknown category")
		}
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		d, err := Parse([]byte("spelling: {}\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(d.Spelling) != 0 {
			t.Errorf("Expected empty spelling, got %d", len(d.Spelling))
		}
	})
}

func TestDefault(t *testing.T) {
	d := Default()

	sizes := d.Sizes()
	for _, c := range append(PairCategories, CategoryFillerWords) {
		if sizes[c] == 0 {
			t.Errorf("Default dataset has no %s entries", c)
		}
	}

	if d.Spelling[0] != (Pair{"recieve", "receive"}) {
		t.Errorf("Unexpected first spelling pair: %+v", d.Spelling[0])
	}

	if d.Version() != Default().Version() {
		t.Error("Version should be deterministic")
	}
}

func TestVersionTracksOrder(t *testing.T) {
	a := &Dataset{Spelling: PairList{{"a", "b"}, {"c", "d"}}}
	b := &Dataset{Spelling: PairList{{"c", "d"}, {"a", "b"}}}

	if a.Version() == b.Version() {
		t.Error("Reordered datasets should have different versions")
	}
}

func TestMerge(t *testing.T) {
	base := &Dataset{Spelling: PairList{{"teh", "the"}}}

	merged, added, err := base.Merge(CategorySpelling, PairList{
		{"TEH", "tea"},
		{"wierd", "weird"},
		{"wierd", "wired"},
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if added != 1 {
		t.Errorf("Expected 1 pair added, got %d", added)
	}

	want := PairList{{"teh", "the"}, {"wierd", "weird"}}
	if diff := cmp.Diff(want, merged.Spelling); diff != "" {
		t.Errorf("Merged mismatch (-want +got):\n%s", diff)
	}
	if len(base.Spelling) != 1 {
		t.Error("Merge must not modify the receiver")
	}

	if _, _, err := base.Merge(CategoryFillerWords, nil); err == nil {
		t.Error("Expected error merging pairs into filler words")
	}
}

func TestParseCategory(t *testing.T) {
	for _, name := range []string{"spelling", " Formal ", "filler_words"} {
		if _, err := ParseCategory(name); err != nil {
			t.Errorf("ParseCategory(%q) failed: %v", name, err)
		}
	}
	if _, err := ParseCategory("slang"); err == nil {
		t.Error("Expected error for unknown category")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	d := Default()

	if err := WriteFile(path, d); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if diff := cmp.Diff(d, loaded); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.yaml")
	if err := os.WriteFile(path, []byte("spelling:\n  teh: the\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *Dataset, 1)
	w, err := NewWatcher(path, func(d *Dataset) { changes <- d }, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// invalid edit first: must not be delivered
	if err := os.WriteFile(path, []byte("spelling: [[[\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * reloadDelay)

	if err := os.WriteFile(path, []byte("spelling:\n  teh: the\n  wich: which\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-changes:
		if len(d.Spelling) != 2 {
			t.Errorf("Expected 2 spelling pairs after reload, got %d", len(d.Spelling))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for dataset reload")
	}
}
