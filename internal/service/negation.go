package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// preTriggers negate an entity appearing after them. Multi-word phrases
// are matched token-wise.
var preTriggers = [][]string{
	{"no", "evidence", "of"},
	{"no", "signs", "of"},
	{"no", "sign", "of"},
	{"negative", "for"},
	{"denies"},
	{"denied"},
	{"without"},
	{"no"},
	{"not"},
}

// postTriggers negate an entity appearing before them.
var postTriggers = [][]string{
	{"was", "ruled", "out"},
	{"were", "ruled", "out"},
	{"ruled", "out"},
	{"not", "seen"},
	{"not", "identified"},
	{"not", "present"},
	{"unlikely"},
}

// ambiguousTriggers express suspicion rather than proven absence; they
// flag the entity instead of filtering it.
var ambiguousTriggers = [][]string{
	{"rule", "out"},
	{"questionable"},
	{"possible"},
	{"cannot", "exclude"},
}

// scopeTerminators end a negation's reach before it covers the entity.
// Sentence boundaries terminate scope implicitly: the scan never leaves
// the entity's sentence.
var scopeTerminators = map[string]struct{}{
	"but":      {},
	"however":  {},
	"although": {},
	"though":   {},
	"except":   {},
	"besides":  {},
	"aside":    {},
}

// tokenPos is a token with its position in the normalized text.
type tokenPos struct {
	text  string
	start int
	end   int
}

// negationWindow is the bounded region inspected around one entity: the
// tokens of its sentence, the entity's token range within them, and the
// window size. Boundary rules operate on this explicit abstraction.
type negationWindow struct {
	tokens     []tokenPos
	entityFrom int // index of first entity token
	entityTo   int // index one past the last entity token
	size       int
}

// NegationResult separates surviving entities from provably negated ones.
type NegationResult struct {
	Kept     []domain.ExtractedField
	Filtered []domain.ExtractedField
}

// NegationDetector inspects the token window around candidate entities
// for negation triggers and scope boundaries.
type NegationDetector struct {
	logger *logrus.Logger
	opts   domain.Options
}

// NewNegationDetector creates a negation detector with the given options.
func NewNegationDetector(logger *logrus.Logger, opts domain.Options) *NegationDetector {
	return &NegationDetector{logger: logger, opts: opts}
}

// FilterNegated partitions entities into kept and filtered sets. An
// entity is filtered only when a trigger's scope provably covers its
// span; ambiguous cases keep the entity with a possibleNegation flag and
// dampened confidence. Re-running on already-filtered output is a no-op.
func (d *NegationDetector) FilterNegated(entities []domain.ExtractedField, nt *NormalizedText) NegationResult {
	result := NegationResult{
		Kept:     make([]domain.ExtractedField, 0, len(entities)),
		Filtered: make([]domain.ExtractedField, 0),
	}

	for _, entity := range entities {
		if entity.PossibleNegation {
			// Already inspected and dampened on a previous pass.
			result.Kept = append(result.Kept, entity)
			continue
		}

		window, ok := d.windowFor(entity, nt)
		if !ok {
			result.Kept = append(result.Kept, entity)
			continue
		}

		switch d.classify(window) {
		case negated:
			result.Filtered = append(result.Filtered, entity)
		case possiblyNegated:
			entity.PossibleNegation = true
			entity.Confidence = clamp01(entity.Confidence * d.opts.AmbiguousNegationPenalty)
			if d.logger != nil {
				d.logger.WithFields(logrus.Fields{
					"code":   domain.ErrAmbiguousNegation,
					"entity": entity.Value,
					"field":  entity.FieldType,
				}).Debug("Ambiguous negation scope, keeping entity with reduced confidence")
			}
			result.Kept = append(result.Kept, entity)
		default:
			result.Kept = append(result.Kept, entity)
		}
	}

	return result
}

type negationVerdict int

const (
	notNegated negationVerdict = iota
	negated
	possiblyNegated
)

// windowFor builds the bounded token window around an entity.
func (d *NegationDetector) windowFor(entity domain.ExtractedField, nt *NormalizedText) (negationWindow, bool) {
	sentence, ok := nt.SentenceAt(entity.Span.Start)
	if !ok {
		return negationWindow{}, false
	}

	tokens := tokenizeWithOffsets(sentence.Text, sentence.Start)
	from, to := -1, -1
	for i, tok := range tokens {
		if tok.end > entity.Span.Start && tok.start < entity.Span.End {
			if from < 0 {
				from = i
			}
			to = i + 1
		}
	}
	if from < 0 {
		return negationWindow{}, false
	}

	size := d.opts.NegationWindow
	if size <= 0 {
		size = domain.DefaultOptions().NegationWindow
	}
	return negationWindow{tokens: tokens, entityFrom: from, entityTo: to, size: size}, true
}

// classify applies the boundary rules: a trigger whose path to the entity
// is free of scope terminators proves negation; a trigger separated from
// the entity by a terminator is ambiguous.
func (d *NegationDetector) classify(w negationWindow) negationVerdict {
	verdict := notNegated

	// Backward scan for pre-triggers.
	lo := w.entityFrom - w.size
	if lo < 0 {
		lo = 0
	}
	for i := w.entityFrom - 1; i >= lo; i-- {
		if _, ok := matchTriggerAt(w.tokens, i, ambiguousTriggers); ok {
			if verdict == notNegated {
				verdict = possiblyNegated
			}
			continue
		}
		if _, ok := matchTriggerAt(w.tokens, i, preTriggers); ok {
			if terminatorBetween(w.tokens, i, w.entityFrom) {
				if verdict == notNegated {
					verdict = possiblyNegated
				}
				continue
			}
			return negated
		}
	}

	// Forward scan for post-triggers.
	hi := w.entityTo + w.size
	if hi > len(w.tokens) {
		hi = len(w.tokens)
	}
	for i := w.entityTo; i < hi; i++ {
		if _, ok := matchTriggerAt(w.tokens, i, postTriggers); ok {
			if terminatorBetween(w.tokens, w.entityTo-1, i) {
				if verdict == notNegated {
					verdict = possiblyNegated
				}
				continue
			}
			return negated
		}
	}

	return verdict
}

// matchTriggerAt reports whether any trigger phrase starts at token i.
func matchTriggerAt(tokens []tokenPos, i int, triggers [][]string) (string, bool) {
	for _, trig := range triggers {
		if i+len(trig) > len(tokens) {
			continue
		}
		matched := true
		for j, word := range trig {
			if strings.ToLower(tokens[i+j].text) != word {
				matched = false
				break
			}
		}
		if matched {
			return strings.Join(trig, " "), true
		}
	}
	return "", false
}

// terminatorBetween reports whether a scope terminator lies strictly
// between token indexes a and b.
func terminatorBetween(tokens []tokenPos, a, b int) bool {
	if a > b {
		a, b = b, a
	}
	for i := a + 1; i < b; i++ {
		if _, ok := scopeTerminators[strings.ToLower(tokens[i].text)]; ok {
			return true
		}
	}
	return false
}

// tokenizeWithOffsets splits text into alphanumeric tokens carrying their
// absolute offsets (base is the text's offset in the full document).
func tokenizeWithOffsets(text string, base int) []tokenPos {
	var tokens []tokenPos
	for _, loc := range tokenExpr.FindAllStringIndex(text, -1) {
		tokens = append(tokens, tokenPos{
			text:  text[loc[0]:loc[1]],
			start: base + loc[0],
			end:   base + loc[1],
		})
	}
	return tokens
}
