package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// temporalCue maps a cue phrase to a category with an explicit-cue
// confidence (0.85-0.95 depending on cue strength).
type temporalCue struct {
	phrase     string
	category   domain.TemporalCategory
	confidence float64
}

// temporalCues are scanned longest-phrase-first within the entity's
// sentence window.
var temporalCues = []temporalCue{
	{"at the time of admission", domain.TemporalAdmission, 0.95},
	{"at the time of discharge", domain.TemporalDischarge, 0.95},
	{"on admission", domain.TemporalAdmission, 0.95},
	{"at presentation", domain.TemporalAdmission, 0.9},
	{"on arrival", domain.TemporalAdmission, 0.9},
	{"presented with", domain.TemporalAdmission, 0.85},
	{"on discharge", domain.TemporalDischarge, 0.95},
	{"at discharge", domain.TemporalDischarge, 0.95},
	{"upon discharge", domain.TemporalDischarge, 0.9},
	{"history of", domain.TemporalPast, 0.95},
	{"pre-existing", domain.TemporalPast, 0.9},
	{"previously", domain.TemporalPast, 0.9},
	{"previous", domain.TemporalPast, 0.85},
	{"prior", domain.TemporalPast, 0.85},
	{"years ago", domain.TemporalPast, 0.9},
	{"remote", domain.TemporalPast, 0.85},
	{"will be", domain.TemporalFuture, 0.9},
	{"will", domain.TemporalFuture, 0.85},
	{"planned", domain.TemporalFuture, 0.9},
	{"scheduled", domain.TemporalFuture, 0.9},
	{"follow-up", domain.TemporalFuture, 0.9},
	{"follow up", domain.TemporalFuture, 0.9},
}

// cueTokenLists holds each cue phrase pre-split into comparison tokens,
// so hyphenated and spaced spellings match the same sequence.
var cueTokenLists = func() [][]string {
	lists := make([][]string, len(temporalCues))
	for i, cue := range temporalCues {
		lists[i] = splitCueWords(cue.phrase)
	}
	return lists
}()

// splitCueWords breaks a cue phrase on spaces and hyphens.
func splitCueWords(phrase string) []string {
	return strings.FieldsFunc(phrase, func(r rune) bool { return r == ' ' || r == '-' })
}

var podExpr = regexp.MustCompile(`(?i)post-operative day\s*(\d{1,2})`)

// resolveState is the per-entity classification state. Every entity ends
// Classified; UNKNOWN is a terminal category, not an error.
type resolveState int

const (
	stateUnclassified resolveState = iota
	stateScanning
	stateClassified
)

// TemporalResolver classifies date-bearing entities into temporal
// categories using cue phrases and position relative to anchor dates.
type TemporalResolver struct {
	logger *logrus.Logger
}

// NewTemporalResolver creates a temporal resolver.
func NewTemporalResolver(logger *logrus.Logger) *TemporalResolver {
	return &TemporalResolver{logger: logger}
}

// Resolve attaches a TemporalContext to every entity. Resolution failures
// never abort the pipeline: the entity proceeds with UNKNOWN at zero
// confidence and a logged warning.
func (r *TemporalResolver) Resolve(entities []domain.ExtractedField, nt *NormalizedText, anchors domain.Anchors) []domain.ExtractedField {
	resolved := make([]domain.ExtractedField, len(entities))
	for i, entity := range entities {
		resolved[i] = r.resolveOne(entity, nt, anchors)
	}
	return resolved
}

// resolveOne runs the Unclassified -> Scanning -> Classified machine for
// a single entity.
func (r *TemporalResolver) resolveOne(entity domain.ExtractedField, nt *NormalizedText, anchors domain.Anchors) (out domain.ExtractedField) {
	state := stateUnclassified
	ctx := &domain.TemporalContext{Category: domain.TemporalUnknown, Confidence: 0}

	defer func() {
		if rec := recover(); rec != nil {
			// A malformed entity must not take the pipeline down.
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{
					"code":   domain.ErrTemporalResolution,
					"entity": entity.Value,
					"panic":  rec,
				}).Warn("Temporal resolution failed, assigning UNKNOWN")
			}
			entity.Temporal = &domain.TemporalContext{Category: domain.TemporalUnknown, Confidence: 0}
			out = entity
		}
	}()

	state = stateScanning

	// Explicit cue phrases take priority over positional inference.
	if cue, ok := r.scanCues(entity, nt); ok {
		ctx.Category = cue.category
		ctx.Confidence = cue.confidence
		ctx.CueType = cue.phrase
		state = stateClassified
	}

	// Post-operative day offsets resolve against the surgical anchor.
	if state != stateClassified {
		if podCtx, podDate, ok := r.resolvePOD(entity, nt, anchors); ok {
			ctx = podCtx
			if entity.Date == nil && podDate != nil {
				entity.Date = podDate
			}
			state = stateClassified
		}
	}

	// Positional fallback relative to the anchor dates.
	if state != stateClassified {
		if posCtx, ok := r.resolvePositional(entity, anchors); ok {
			ctx = posCtx
			state = stateClassified
		}
	}

	// Terminal state always assigns a category.
	if state != stateClassified {
		state = stateClassified
	}

	entity.Temporal = ctx
	return entity
}

// scanCues looks for the strongest cue phrase in the entity's sentence.
// Cues match whole tokens only: "will" must not fire inside "willing".
func (r *TemporalResolver) scanCues(entity domain.ExtractedField, nt *NormalizedText) (temporalCue, bool) {
	sentence, ok := nt.SentenceAt(entity.Span.Start)
	if !ok {
		return temporalCue{}, false
	}
	tokens := tokenize(sentence.Text)
	for i, cue := range temporalCues {
		if hasTokenPhrase(tokens, cueTokenLists[i]) {
			return cue, true
		}
	}
	return temporalCue{}, false
}

// hasTokenPhrase reports whether words occur consecutively in tokens.
func hasTokenPhrase(tokens, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for i := 0; i+len(words) <= len(tokens); i++ {
		matched := true
		for j, w := range words {
			if tokens[i+j] != w {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// resolvePOD interprets "post-operative day N" mentions against the
// surgery (or admission) anchor. A malformed offset degrades to UNKNOWN.
func (r *TemporalResolver) resolvePOD(entity domain.ExtractedField, nt *NormalizedText, anchors domain.Anchors) (*domain.TemporalContext, *time.Time, bool) {
	sentence, ok := nt.SentenceAt(entity.Span.Start)
	if !ok {
		return nil, nil, false
	}
	m := podExpr.FindStringSubmatch(sentence.Text)
	if m == nil {
		return nil, nil, false
	}

	days, err := strconv.Atoi(m[1])
	if err != nil {
		if r.logger != nil {
			r.logger.WithField("offset", m[1]).Warn("Unparseable post-operative day offset")
		}
		return &domain.TemporalContext{Category: domain.TemporalUnknown, Confidence: 0}, nil, true
	}

	anchor := anchors.Surgery
	if anchor == nil {
		anchor = anchors.Admission
	}
	ctx := &domain.TemporalContext{
		Category:   domain.TemporalPresent,
		Confidence: 0.7,
		CueType:    "post-operative day",
	}
	if anchor == nil {
		return ctx, nil, true
	}
	resolved := anchor.AddDate(0, 0, days)
	return ctx, &resolved, true
}

// resolvePositional infers a category from the entity's own date relative
// to the admission and discharge anchors (positional inference: 0.5-0.7).
func (r *TemporalResolver) resolvePositional(entity domain.ExtractedField, anchors domain.Anchors) (*domain.TemporalContext, bool) {
	if entity.Date == nil {
		return nil, false
	}
	date := *entity.Date

	if anchors.Admission != nil && date.Before(*anchors.Admission) {
		return &domain.TemporalContext{Category: domain.TemporalPast, Confidence: 0.6, CueType: "position"}, true
	}
	if anchors.Discharge != nil && date.After(*anchors.Discharge) {
		return &domain.TemporalContext{Category: domain.TemporalFuture, Confidence: 0.6, CueType: "position"}, true
	}
	if anchors.Admission != nil {
		return &domain.TemporalContext{Category: domain.TemporalPresent, Confidence: 0.55, CueType: "position"}, true
	}
	return nil, false
}
