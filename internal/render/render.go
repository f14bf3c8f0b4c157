// Package render turns a correction into an HTML fragment. All text is
// escaped; markup comes only from the templates here.
package render

import (
	"bytes"
	"html/template"
)

var (
	singleTemplate = template.Must(template.New("single").Parse(
		`<div class="result"><div class="result-text">{{.Corrected}}</div></div>`))

	comparisonTemplate = template.Must(template.New("comparison").Parse(
		`<div class="comparison">` +
			`<div class="comparison-item original"><h4>Original</h4><div class="comparison-text">{{.Original}}</div></div>` +
			`<div class="comparison-item corrected"><h4>Corrected</h4><div class="comparison-text">{{.Corrected}}</div></div>` +
			`</div>`))
)

type view struct {
	Original  string
	Corrected string
}

// Block renders the corrected text alone, or a before/after comparison when
// compare is set.
func Block(original, corrected string, compare bool) string {
	tmpl := singleTemplate
	if compare {
		tmpl = comparisonTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view{Original: original, Corrected: corrected}); err != nil {
		// both templates only print strings
		return template.HTMLEscapeString(corrected)
	}
	return buf.String()
}
