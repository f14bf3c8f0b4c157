package pipeline

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"
)

// Pass is one named text transformation
type Pass struct {
	Name  string
	Apply func(string) string
}

func identity(text string) string {
	return text
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// RE2 has no backreferences
	repeatedWord = regexp2.MustCompile(`\b(\w+)\s+\1\b`, regexp2.IgnoreCase)

	standaloneI = regexp.MustCompile(`\bi\b`)

	spaceBeforeMark  = regexp.MustCompile(`\s+([.,!?;:])`)
	markBeforeLetter = regexp.MustCompile(`([.,!?;:])\s*(\pL)`)
	multiSpace       = regexp.MustCompile(`\s{2,}`)
	doubledQuote     = regexp.MustCompile("``|''")

	exclamations = regexp.MustCompile(`!+`)

	leadingLetter = regexp.MustCompile(`^([\s"'(\[]*)(\p{Ll})`)
	sentenceStart = regexp.MustCompile(`([.!?]["')\]]*\s+)(\p{Ll})`)

	commaConjunction = regexp.MustCompile(`(?i),\s+(and|but|so)\s+`)
	connective       = regexp.MustCompile(`(?i)(\S+)\s+(however|therefore|moreover|furthermore)\s+`)

	reportingThat    = regexp.MustCompile(`(?i)\b(know|think|believe|feel|say|said|realize)\s+that\b`)
	redundantPronoun = regexp.MustCompile(`(?i), and (i|you|he|she|it|we|they) `)
	leadingMarks     = regexp.MustCompile(`^[\s,;:]+`)
	commaBeforeEnd   = regexp.MustCompile(`,\s*([.!?])`)

	sentenceMerges = strings.NewReplacer(
		". And ", ", and ",
		". But ", ", but ",
		". So ", ", so ",
	)
)

// formatText normalizes to NFC, collapses every whitespace run (newlines
// included) to one space, removes immediately repeated words and trims.
func formatText(text string) string {
	text = norm.NFC.String(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = collapseRepeatedWords(text)
	return strings.TrimSpace(text)
}

// collapseRepeatedWords repeats until stable so "the the the" becomes "the"
func collapseRepeatedWords(text string) string {
	for {
		out, err := repeatedWord.Replace(text, "$1", -1, -1)
		if err != nil || out == text {
			return text
		}
		text = out
	}
}

func capitalizeI(text string) string {
	return standaloneI.ReplaceAllLiteralString(text, "I")
}

// fixPunctuationSpacing removes space before . , ! ? ; : and leaves exactly
// one space between a mark and a following letter.
func fixPunctuationSpacing(text string) string {
	text = spaceBeforeMark.ReplaceAllString(text, "${1}")
	text = markBeforeLetter.ReplaceAllString(text, "${1} ${2}")
	return multiSpace.ReplaceAllString(text, " ")
}

func fixPunctuation(text string) string {
	text = fixPunctuationSpacing(text)
	text = doubledQuote.ReplaceAllLiteralString(text, `"`)
	return strings.TrimSpace(text)
}

// capitalize uppercases the first letter of the text and of every sentence
func capitalize(text string) string {
	text = leadingLetter.ReplaceAllStringFunc(text, upperLastRune)
	return sentenceStart.ReplaceAllStringFunc(text, upperLastRune)
}

func upperLastRune(s string) string {
	r, size := utf8.DecodeLastRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return s[:len(s)-size] + string(unicode.ToUpper(r))
}

func formalPunctuation(text string) string {
	return exclamations.ReplaceAllLiteralString(text, ".")
}

func splitCompoundSentences(text string) string {
	text = commaConjunction.ReplaceAllString(text, ". ${1} ")
	return connective.ReplaceAllStringFunc(text, splitAtConnective)
}

// splitAtConnective starts a new sentence at the connective unless the
// preceding word already ends a clause or is itself a conjunction.
func splitAtConnective(match string) string {
	m := connective.FindStringSubmatch(match)
	prev, word := m[1], m[2]
	if strings.ContainsAny(prev[len(prev)-1:], ".,;:!?") {
		return match
	}
	switch strings.ToLower(prev) {
	case "and", "but", "so":
		return match
	}
	return prev + ". " + word + ", "
}

func dropReportingThat(text string) string {
	return reportingThat.ReplaceAllString(text, "${1}")
}

func mergeShortSentences(text string) string {
	text = sentenceMerges.Replace(text)
	return redundantPronoun.ReplaceAllLiteralString(text, " and ")
}

func cleanupShortened(text string) string {
	text = fixPunctuationSpacing(text)
	text = commaBeforeEnd.ReplaceAllString(text, "${1}")
	text = leadingMarks.ReplaceAllLiteralString(text, "")
	return strings.TrimSpace(text)
}
