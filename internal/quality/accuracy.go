package quality

import (
	"fmt"
	"strings"

	"github.com/clinnote-engine/internal/domain"
)

// criticalAccuracyFields are the fields where a hallucinated value is a
// critical finding rather than a major one.
var criticalAccuracyFields = map[domain.FieldType]struct{}{
	domain.FieldAdmissionDate: {},
	domain.FieldDischargeDate: {},
	domain.FieldSurgeryDate:   {},
	domain.FieldMedication:    {},
	domain.FieldProcedure:     {},
}

// scoreAccuracy verifies each extracted value against the source text.
// A value whose surface form appears nowhere in the source is flagged as
// potential hallucination. Without source text the dimension scores 0
// with an explicit issue.
func scoreAccuracy(note *domain.StructuredNote) domain.DimensionScore {
	if note.SourceText == "" {
		return domain.DimensionScore{
			Score: 0,
			Issues: []domain.Issue{{
				Type:        "missing_source",
				Severity:    domain.SeverityWarning,
				Description: "source note text unavailable, accuracy could not be assessed",
			}},
		}
	}

	source := strings.ToLower(note.SourceText)
	issues := make([]domain.Issue, 0)
	total, verified := 0, 0

	for _, ft := range domain.AllFieldTypes {
		for _, field := range note.Fields[ft] {
			total++
			// Reviewer corrections keep the original span text, so either
			// surface form counts as verified.
			if strings.Contains(source, strings.ToLower(field.Value)) ||
				(field.Span.Text != "" && strings.Contains(source, strings.ToLower(field.Span.Text))) {
				verified++
				continue
			}

			severity := domain.SeverityMajor
			if _, critical := criticalAccuracyFields[ft]; critical {
				severity = domain.SeverityCritical
			}
			issues = append(issues, domain.Issue{
				Type:        "potential_hallucination",
				Severity:    severity,
				Field:       ft,
				Description: fmt.Sprintf("value %q does not appear in the source note", field.Value),
				Suggestion:  "verify the value against the source note before accepting it",
			})
		}
	}

	if total == 0 {
		// Nothing extracted means nothing to be inaccurate about;
		// the gap is completeness's finding.
		return domain.DimensionScore{Score: 1.0, Issues: issues}
	}

	return domain.DimensionScore{
		Score:  float64(verified) / float64(total),
		Issues: issues,
	}
}
