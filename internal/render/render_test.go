package render

import (
	"strings"
	"testing"
)

func TestBlock(t *testing.T) {
	t.Run("Single", func(t *testing.T) {
		out := Block("teh cat", "The cat", false)
		if !strings.Contains(out, "The cat") {
			t.Errorf("Corrected text missing: %s", out)
		}
		if strings.Contains(out, "teh cat") {
			t.Errorf("Original text should not be shown: %s", out)
		}
		if strings.Contains(out, "comparison") {
			t.Errorf("Single block should not be a comparison: %s", out)
		}
	})

	t.Run("Comparison", func(t *testing.T) {
		out := Block("teh cat", "The cat", true)
		original := strings.Index(out, "teh cat")
		corrected := strings.Index(out, "The cat")
		if original < 0 || corrected < 0 {
			t.Fatalf("Both texts expected: %s", out)
		}
		if original > corrected {
			t.Error("Original should precede corrected")
		}
	})

	t.Run("Escaping", func(t *testing.T) {
		out := Block(`<script>alert("x")</script>`, `Tom & "Jerry" <b>`, true)
		for _, raw := range []string{"<script>", "<b>", `"Jerry"`} {
			if strings.Contains(out, raw) {
				t.Errorf("Unescaped %q in output: %s", raw, out)
			}
		}
		if !strings.Contains(out, "&lt;script&gt;") || !strings.Contains(out, "Tom &amp;") {
			t.Errorf("Expected escaped entities: %s", out)
		}
	})
}
