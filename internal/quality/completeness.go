package quality

import (
	"fmt"

	"github.com/clinnote-engine/internal/domain"
)

// Field tiers for the completeness dimension. Critical fields dominate
// the score so a note missing all of them cannot exceed 0.3.
var (
	criticalFields = []domain.FieldType{
		domain.FieldProcedure,
		domain.FieldMedication,
		domain.FieldDisposition,
	}
	importantFields = []domain.FieldType{
		domain.FieldAdmissionDate,
		domain.FieldDischargeDate,
		domain.FieldDiagnosis,
	}
	optionalFields = []domain.FieldType{
		domain.FieldDemographics,
		domain.FieldSurgeryDate,
		domain.FieldComplication,
		domain.FieldFunctionalScore,
	}
)

const (
	criticalTierWeight  = 0.7
	importantTierWeight = 0.2
	optionalTierWeight  = 0.1
)

var fieldLabels = map[domain.FieldType]string{
	domain.FieldDemographics:    "patient demographics",
	domain.FieldAdmissionDate:   "admission date",
	domain.FieldDischargeDate:   "discharge date",
	domain.FieldSurgeryDate:     "surgery date",
	domain.FieldDiagnosis:       "diagnosis",
	domain.FieldProcedure:       "procedures",
	domain.FieldComplication:    "complications",
	domain.FieldMedication:      "medications",
	domain.FieldFunctionalScore: "functional scores",
	domain.FieldDisposition:     "discharge disposition",
}

// scoreCompleteness measures field coverage across the three tiers.
// Absent fields surface as issues, never as errors.
func scoreCompleteness(note *domain.StructuredNote) domain.DimensionScore {
	issues := make([]domain.Issue, 0)

	present := func(ft domain.FieldType) bool {
		return len(note.Fields[ft]) > 0
	}

	tierScore := func(fields []domain.FieldType, severity domain.Severity, issueType string) float64 {
		found := 0
		for _, ft := range fields {
			if present(ft) {
				found++
				continue
			}
			issues = append(issues, domain.Issue{
				Type:        issueType,
				Severity:    severity,
				Field:       ft,
				Description: fmt.Sprintf("no %s extracted from the note", fieldLabels[ft]),
				Suggestion:  fmt.Sprintf("document the %s explicitly in the source note", fieldLabels[ft]),
			})
		}
		return float64(found) / float64(len(fields))
	}

	score := criticalTierWeight*tierScore(criticalFields, domain.SeverityCritical, "missing_critical_section") +
		importantTierWeight*tierScore(importantFields, domain.SeverityMajor, "missing_important_section") +
		optionalTierWeight*tierScore(optionalFields, domain.SeverityMinor, "missing_optional_section")

	return domain.DimensionScore{Score: score, Issues: issues}
}
