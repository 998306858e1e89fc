package quality

import (
	"fmt"
	"strings"

	"github.com/clinnote-engine/internal/domain"
)

// scoreConsistency verifies the structured data against itself and
// against the narrative: date ordering, medication cross-references, and
// diagnosis agreement. Contradictions are surfaced, never silently
// corrected.
func scoreConsistency(note *domain.StructuredNote, narrative *domain.Narrative) domain.DimensionScore {
	score := 1.0
	issues := make([]domain.Issue, 0)

	// Admission must not follow discharge.
	if note.Anchors.Admission != nil && note.Anchors.Discharge != nil &&
		note.Anchors.Discharge.Before(*note.Anchors.Admission) {
		score -= 0.4
		issues = append(issues, domain.Issue{
			Type:        "inconsistent_structured_data",
			Severity:    domain.SeverityCritical,
			Field:       domain.FieldDischargeDate,
			Description: "discharge date precedes admission date",
			Suggestion:  "review the admission and discharge dates in the source note",
		})
	}

	// Every dated event must fall inside the admission-discharge window.
	for _, ft := range []domain.FieldType{domain.FieldSurgeryDate, domain.FieldProcedure, domain.FieldComplication} {
		for _, field := range note.Fields[ft] {
			if field.Date == nil {
				continue
			}
			outOfWindow := (note.Anchors.Admission != nil && field.Date.Before(*note.Anchors.Admission)) ||
				(note.Anchors.Discharge != nil && field.Date.After(*note.Anchors.Discharge))
			if !outOfWindow {
				continue
			}
			// Events classified as PAST or FUTURE are allowed outside
			// the window; that is what the classification means.
			if field.Temporal != nil &&
				(field.Temporal.Category == domain.TemporalPast || field.Temporal.Category == domain.TemporalFuture) {
				continue
			}
			score -= 0.3
			issues = append(issues, domain.Issue{
				Type:        "inconsistent_structured_data",
				Severity:    domain.SeverityCritical,
				Field:       ft,
				Description: fmt.Sprintf("%q is dated outside the admission-discharge window", field.Value),
				Suggestion:  "confirm the event date or its temporal classification",
			})
		}
	}

	if narrative != nil && narrative.FullText != "" {
		narrativeText := strings.ToLower(narrative.FullText)

		// Structured medications the narrative never mentions.
		for _, field := range note.Fields[domain.FieldMedication] {
			name := medicationName(field)
			if name == "" {
				continue
			}
			if !strings.Contains(narrativeText, strings.ToLower(name)) {
				score -= 0.1
				issues = append(issues, domain.Issue{
					Type:        "medication_not_in_narrative",
					Severity:    domain.SeverityMinor,
					Field:       domain.FieldMedication,
					Description: fmt.Sprintf("medication %q is in the structured data but absent from the narrative", name),
					Suggestion:  "include every discharge medication in the narrative medication list",
				})
			}
		}

		// Diagnosis agreement between structure and narrative.
		if diagnosis := note.FirstValue(domain.FieldDiagnosis); diagnosis != "" {
			if !strings.Contains(narrativeText, strings.ToLower(diagnosis)) {
				score -= 0.2
				issues = append(issues, domain.Issue{
					Type:        "diagnosis_mismatch",
					Severity:    domain.SeverityMajor,
					Field:       domain.FieldDiagnosis,
					Description: fmt.Sprintf("narrative does not state the extracted diagnosis %q", diagnosis),
					Suggestion:  "state the principal diagnosis in the narrative history section",
				})
			}
		}
	}

	if score < 0 {
		score = 0
	}
	return domain.DimensionScore{Score: score, Issues: issues}
}

// medicationName prefers the structured drug name over the surface form.
func medicationName(field domain.ExtractedField) string {
	if field.Dosage != nil && field.Dosage.Drug != "" {
		return field.Dosage.Drug
	}
	return field.Value
}
