package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// datePattern recognizes the date formats that appear in clinical notes.
const datePattern = `((?:\d{1,2}/\d{1,2}/\d{2,4})|(?:\d{4}-\d{2}-\d{2})|(?:(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.? \d{1,2},? \d{4}))`

var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

// parseDate attempts the known clinical date layouts in order.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// matchBuilder turns a regex match into an extracted field. groups holds
// the submatch texts (index 0 is the whole match); span addresses the
// entity within the normalized text. Returning nil rejects the match.
type matchBuilder func(groups []string, span domain.Span) *domain.ExtractedField

// fieldMatcher is one ordered pattern for a field. The first matcher that
// fires for a span wins; non-overlapping spans are all retained.
type fieldMatcher struct {
	name  string
	expr  *regexp.Regexp
	group int // submatch index used as the entity span; 0 = whole match
	build matchBuilder
}

// Extractor scans normalized text for field-specific patterns.
type Extractor struct {
	logger   *logrus.Logger
	matchers map[domain.FieldType][]fieldMatcher
}

// NewExtractor creates a pattern extractor with the built-in matcher table.
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{
		logger:   logger,
		matchers: buildMatcherTable(),
	}
}

// Extract applies the ordered matchers for each requested field. Missing
// fields yield an empty slice, never nil: absence is a first-class,
// reportable outcome.
func (e *Extractor) Extract(nt *NormalizedText, targets []domain.FieldType) map[domain.FieldType][]domain.ExtractedField {
	results := make(map[domain.FieldType][]domain.ExtractedField, len(targets))

	for _, ft := range targets {
		fields := make([]domain.ExtractedField, 0)
		var claimed []domain.Span

		for _, m := range e.matchers[ft] {
			for _, idx := range m.expr.FindAllStringSubmatchIndex(nt.Text, -1) {
				span := spanFromMatch(nt.Text, idx, m.group)
				if span.Length() == 0 || overlapsAny(span, claimed) {
					continue
				}
				groups := groupTexts(nt.Text, idx)
				field := m.build(groups, span)
				if field == nil {
					continue
				}
				field.FieldType = ft
				fields = append(fields, *field)
				claimed = append(claimed, span)
			}
		}

		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].Span.Start < fields[j].Span.Start
		})
		results[ft] = fields
	}

	if e.logger != nil {
		total := 0
		for _, fs := range results {
			total += len(fs)
		}
		e.logger.WithFields(logrus.Fields{
			"fields_requested": len(targets),
			"entities_found":   total,
		}).Debug("Completed pattern extraction")
	}

	return results
}

// spanFromMatch resolves the entity span for a match, falling back to the
// whole match when the preferred group did not participate.
func spanFromMatch(text string, idx []int, group int) domain.Span {
	start, end := idx[0], idx[1]
	if group > 0 && 2*group+1 < len(idx) && idx[2*group] >= 0 {
		start, end = idx[2*group], idx[2*group+1]
	}
	return domain.Span{Start: start, End: end, Text: text[start:end]}
}

func groupTexts(text string, idx []int) []string {
	groups := make([]string, len(idx)/2)
	for g := 0; g < len(idx)/2; g++ {
		if idx[2*g] >= 0 {
			groups[g] = text[idx[2*g]:idx[2*g+1]]
		}
	}
	return groups
}

func overlapsAny(span domain.Span, claimed []domain.Span) bool {
	for _, c := range claimed {
		if span.Overlaps(c) {
			return true
		}
	}
	return false
}

// lexiconAlternation builds a regex alternation from a phrase list,
// longest phrase first so multi-word terms win over their substrings.
func lexiconAlternation(phrases []string) string {
	sorted := make([]string, len(phrases))
	copy(sorted, phrases)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, "|")
}

// stringField builds a plain string-valued field at a base confidence.
func stringField(confidence float64) matchBuilder {
	return func(groups []string, span domain.Span) *domain.ExtractedField {
		return &domain.ExtractedField{
			Kind:       domain.KindString,
			Value:      strings.TrimSpace(span.Text),
			Confidence: confidence,
			Span:       span,
		}
	}
}

// datedField builds a dated-event field from the captured date text. A
// malformed date does not reject the match; the field proceeds without a
// parsed date at reduced confidence and temporal resolution degrades it.
func datedField(confidence float64) matchBuilder {
	return func(groups []string, span domain.Span) *domain.ExtractedField {
		field := &domain.ExtractedField{
			Kind:       domain.KindDatedEvent,
			Value:      strings.TrimSpace(span.Text),
			Confidence: confidence,
			Span:       span,
		}
		if t, err := parseDate(span.Text); err == nil {
			field.Date = &t
		} else {
			field.Confidence = confidence * 0.7
		}
		return field
	}
}

// scaleField builds a scale-score field for a named clinical scale.
func scaleField(scale string, confidence float64) matchBuilder {
	return func(groups []string, span domain.Span) *domain.ExtractedField {
		value := ""
		if len(groups) > 1 {
			value = strings.TrimSpace(groups[len(groups)-1])
		}
		return &domain.ExtractedField{
			Kind:       domain.KindScaleScore,
			Value:      fmt.Sprintf("%s %s", scale, value),
			Scale:      &domain.ScaleScore{Scale: scale, Value: value},
			Confidence: confidence,
			Span:       span,
		}
	}
}

var (
	doseExpr  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?\s?(?:mg|mcg|g|units))\b`)
	routeExpr = regexp.MustCompile(`(?i)\b(po|iv|sc|oral|intravenous|subcutaneous)\b`)
	freqExpr  = regexp.MustCompile(`(?i)\b(daily|twice daily|three times daily|four times daily|nightly|as needed|every \d+ hours)\b`)
)

// medicationField builds either a structured dosage record or a bare
// drug mention depending on what the match captured.
func medicationField(groups []string, span domain.Span) *domain.ExtractedField {
	drug := strings.ToLower(strings.TrimSpace(groups[1]))
	if canonical, ok := drugAliases[drug]; ok {
		drug = canonical
	}

	tail := ""
	if len(groups) > 2 {
		tail = groups[2]
	}

	field := &domain.ExtractedField{
		Value: strings.TrimSpace(span.Text),
		Span:  span,
	}

	dose := firstGroup(doseExpr, tail)
	route := firstGroup(routeExpr, tail)
	freq := firstGroup(freqExpr, tail)

	if dose != "" || freq != "" || route != "" {
		field.Kind = domain.KindDosageRecord
		field.Confidence = 0.9
		field.Dosage = &domain.DosageRecord{
			Drug:      drug,
			Dose:      dose,
			Route:     strings.ToUpper(route),
			Frequency: strings.ToLower(freq),
		}
	} else {
		field.Kind = domain.KindString
		field.Confidence = 0.65
		field.Dosage = &domain.DosageRecord{Drug: drug}
	}
	return field
}

func firstGroup(expr *regexp.Regexp, s string) string {
	if m := expr.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// buildMatcherTable constructs the ordered matcher lists for every field.
// Base confidences are matcher-specific and uncalibrated; source-quality
// assessment dampens them later.
func buildMatcherTable() map[domain.FieldType][]fieldMatcher {
	drugs := lexiconAlternation(drugLexicon)
	complications := lexiconAlternation(complicationLexicon)
	procedures := lexiconAlternation(procedureLexicon)
	dispositions := lexiconAlternation(dispositionLexicon)

	return map[domain.FieldType][]fieldMatcher{
		domain.FieldDemographics: {
			{
				name:  "age_sex_phrase",
				expr:  regexp.MustCompile(`(?i)\b\d{1,3}[- ]year[- ]old\s+(?:male|female|man|woman|gentleman|lady)\b`),
				build: stringField(0.9),
			},
			{
				name:  "age_label",
				expr:  regexp.MustCompile(`(?i)\bage:?\s*\d{1,3}\b`),
				build: stringField(0.7),
			},
		},

		domain.FieldAdmissionDate: {
			{
				name:  "admission_cue_date",
				expr:  regexp.MustCompile(`(?i)(?:admitted[^.\n]{0,40}? on|admission date:?|date of admission:?)\s*` + datePattern),
				group: 1,
				build: datedField(0.9),
			},
		},

		domain.FieldDischargeDate: {
			{
				name:  "discharge_cue_date",
				expr:  regexp.MustCompile(`(?i)(?:discharged[^.\n]{0,40}? on|discharge date:?|date of discharge:?)\s*` + datePattern),
				group: 1,
				build: datedField(0.9),
			},
		},

		domain.FieldSurgeryDate: {
			{
				name:  "operative_cue_date",
				expr:  regexp.MustCompile(`(?i)(?:underwent[^.\n]{0,60}? on|taken to the operating room[^.\n]{0,30}? on|surgery date:?|procedure date:?|operative date:?)\s*` + datePattern),
				group: 1,
				build: datedField(0.85),
			},
		},

		domain.FieldDiagnosis: {
			{
				name:  "hunt_hess_grade",
				expr:  regexp.MustCompile(`(?i)\bhunt[- ]?(?:and[- ])?hess\s*(?:grade)?\s*:?\s*([1-5]|[IVive]{1,3})\b`),
				build: scaleField("Hunt-Hess", 0.9),
			},
			{
				name:  "fisher_grade",
				expr:  regexp.MustCompile(`(?i)\bfisher\s*(?:grade)?\s*:?\s*([1-4]|[IVive]{1,3})\b`),
				build: scaleField("Fisher", 0.9),
			},
			{
				name:  "diagnosis_label",
				expr:  regexp.MustCompile(`(?i)diagnosis:?\s*([^.\n;]{3,80})`),
				group: 1,
				build: stringField(0.85),
			},
			{
				name:  "admitted_with",
				expr:  regexp.MustCompile(`(?i)\badmitted\s+(?:with|for)\s+([^.\n;]{3,80})`),
				group: 1,
				build: stringField(0.8),
			},
			{
				name:  "presented_with",
				expr:  regexp.MustCompile(`(?i)\bpresent(?:ed|ing)\s+with\s+([^.\n;]{3,80})`),
				group: 1,
				build: stringField(0.75),
			},
		},

		domain.FieldProcedure: {
			{
				name:  "procedure_context",
				expr:  regexp.MustCompile(`(?i)\b(?:underwent|status post|placement of)\s+(?:a\s+|an\s+)?(` + procedures + `)`),
				group: 1,
				build: stringField(0.9),
			},
			{
				name:  "procedure_lexicon",
				expr:  regexp.MustCompile(`(?i)\b(` + procedures + `)\b`),
				build: stringField(0.75),
			},
		},

		domain.FieldComplication: {
			{
				name:  "complication_context",
				expr:  regexp.MustCompile(`(?i)\b(?:developed|complicated by|noted to have)\s+(?:a\s+|an\s+)?(` + complications + `)`),
				group: 1,
				build: stringField(0.9),
			},
			{
				name:  "complication_lexicon",
				expr:  regexp.MustCompile(`(?i)\b(` + complications + `)\b`),
				build: stringField(0.7),
			},
		},

		domain.FieldMedication: {
			{
				name: "medication_with_dosage",
				expr: regexp.MustCompile(`(?i)\b(` + drugs + `)\b` +
					`((?:\s+\d+(?:\.\d+)?\s?(?:mg|mcg|g|units))?` +
					`(?:\s+(?:po|iv|sc|oral|intravenous|subcutaneous))?` +
					`(?:\s+(?:daily|twice daily|three times daily|four times daily|nightly|as needed|every \d+ hours))?)`),
				build: medicationField,
			},
		},

		domain.FieldFunctionalScore: {
			{
				name:  "mrs_score",
				expr:  regexp.MustCompile(`(?i)\b(?:mRS|modified rankin(?: scale)?)\s*(?:score|of|:)?\s*([0-6])\b`),
				build: scaleField("mRS", 0.9),
			},
			{
				name:  "kps_score",
				expr:  regexp.MustCompile(`(?i)\b(?:KPS|karnofsky(?: performance status)?)\s*(?:score|of|:)?\s*(\d{1,3})\b`),
				build: scaleField("KPS", 0.9),
			},
			{
				name:  "ecog_score",
				expr:  regexp.MustCompile(`(?i)\bECOG\s*(?:performance status|score|of|:)?\s*([0-5])\b`),
				build: scaleField("ECOG", 0.9),
			},
			{
				name:  "gcs_score",
				expr:  regexp.MustCompile(`(?i)\b(?:GCS|glasgow coma scale)\s*(?:score|of|:)?\s*(\d{1,2})\b`),
				build: scaleField("GCS", 0.85),
			},
		},

		domain.FieldDisposition: {
			{
				name:  "discharged_to",
				expr:  regexp.MustCompile(`(?i)\bdischarged?\s+(?:to\s+)?(` + dispositions + `)\b`),
				group: 1,
				build: stringField(0.85),
			},
			{
				name:  "disposition_label",
				expr:  regexp.MustCompile(`(?i)\bdisposition:?\s*([^.\n]{2,60})`),
				group: 1,
				build: stringField(0.8),
			},
		},
	}
}
