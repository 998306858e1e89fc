package service

import (
	"regexp"
	"strings"

	"github.com/clinnote-engine/internal/domain"
)

// NormalizedText is the canonical form of a note that every downstream
// stage operates on. Spans produced by later stages address Text.
type NormalizedText struct {
	Raw       string
	Text      string
	Sentences []domain.Span
}

// abbreviations maps clinical shorthand to its expanded form. Matching is
// whole-word and case-insensitive; unknown tokens pass through unchanged.
var abbreviations = map[string]string{
	"asa":  "aspirin",
	"pod":  "post-operative day",
	"hob":  "head of bed",
	"sah":  "subarachnoid hemorrhage",
	"ich":  "intracerebral hemorrhage",
	"hcp":  "hydrocephalus",
	"dci":  "delayed cerebral ischemia",
	"evd":  "external ventricular drain",
	"s/p":  "status post",
	"c/o":  "complains of",
	"r/o":  "rule out",
	"hx":   "history",
	"pt":   "patient",
	"yo":   "year-old",
	"y/o":  "year-old",
	"snf":  "skilled nursing facility",
	"gtt":  "drip",
	"prn":  "as needed",
	"bid":  "twice daily",
	"tid":  "three times daily",
	"qid":  "four times daily",
	"qhs":  "nightly",
	"tylenol": "acetaminophen",
	"keppra":  "levetiracetam",
}

var (
	whitespaceRun   = regexp.MustCompile(`[ \t]+`)
	blankLineRun    = regexp.MustCompile(`\n{3,}`)
	abbrevTokenExpr = regexp.MustCompile(`[A-Za-z][A-Za-z/]*`)
	sentenceEndExpr = regexp.MustCompile(`[.!?;]\s+|\n+`)
)

// Normalizer canonicalizes whitespace, expands clinical abbreviations and
// splits notes into addressable sentence spans. It is a pure function
// holder: Normalize never fails and has no side effects.
type Normalizer struct{}

// NewNormalizer creates a new normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize canonicalizes a raw note.
func (n *Normalizer) Normalize(text string) *NormalizedText {
	canonical := strings.ReplaceAll(text, "\r\n", "\n")
	canonical = whitespaceRun.ReplaceAllString(canonical, " ")
	canonical = blankLineRun.ReplaceAllString(canonical, "\n\n")
	canonical = n.expandAbbreviations(canonical)
	canonical = strings.TrimSpace(canonical)

	return &NormalizedText{
		Raw:       text,
		Text:      canonical,
		Sentences: splitSentences(canonical),
	}
}

// expandAbbreviations rewrites known shorthand tokens. Tokens not in the
// table pass through untouched.
func (n *Normalizer) expandAbbreviations(text string) string {
	return abbrevTokenExpr.ReplaceAllStringFunc(text, func(tok string) string {
		if expansion, ok := abbreviations[strings.ToLower(tok)]; ok {
			return expansion
		}
		return tok
	})
}

// splitSentences returns the sentence spans of the normalized text.
// Boundaries are terminal punctuation or line breaks, which also serve as
// negation scope terminators downstream.
func splitSentences(text string) []domain.Span {
	var spans []domain.Span
	start := 0
	for _, loc := range sentenceEndExpr.FindAllStringIndex(text, -1) {
		end := loc[0] + 1
		if text[loc[0]] == '\n' {
			end = loc[0]
		}
		if seg := strings.TrimSpace(text[start:end]); seg != "" {
			spans = append(spans, trimmedSpan(text, start, end))
		}
		start = loc[1]
	}
	if start < len(text) {
		if seg := strings.TrimSpace(text[start:]); seg != "" {
			spans = append(spans, trimmedSpan(text, start, len(text)))
		}
	}
	return spans
}

// trimmedSpan shrinks [start,end) to exclude surrounding whitespace.
func trimmedSpan(text string, start, end int) domain.Span {
	for start < end && (text[start] == ' ' || text[start] == '\n') {
		start++
	}
	for end > start && (text[end-1] == ' ' || text[end-1] == '\n') {
		end--
	}
	return domain.Span{Start: start, End: end, Text: text[start:end]}
}

// SentenceAt returns the sentence span containing the given offset. The
// second return is false when the offset falls outside every sentence.
func (t *NormalizedText) SentenceAt(offset int) (domain.Span, bool) {
	for _, s := range t.Sentences {
		if offset >= s.Start && offset < s.End {
			return s, true
		}
	}
	return domain.Span{}, false
}
