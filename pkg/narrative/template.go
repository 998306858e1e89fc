package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clinnote-engine/internal/domain"
)

const templateSource = "template"

// TemplateGenerator assembles a narrative directly from structured data.
// It is the terminal fallback of the provider chain: deterministic, no
// I/O, and it never fails.
type TemplateGenerator struct{}

// NewTemplateGenerator creates the template fallback generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate implements domain.NarrativeGenerator. The error is always nil;
// the signature exists to satisfy the interface.
func (g *TemplateGenerator) Generate(_ context.Context, note *domain.StructuredNote) (*domain.Narrative, error) {
	sections := map[domain.NarrativeSection]string{
		domain.SectionHistory:       g.history(note),
		domain.SectionHospitalStay:  g.hospitalCourse(note),
		domain.SectionProcedures:    g.procedures(note),
		domain.SectionComplications: g.complications(note),
		domain.SectionMedications:   g.medications(note),
		domain.SectionDisposition:   g.disposition(note),
		domain.SectionFollowUp:      g.followUp(note),
	}

	return &domain.Narrative{
		Sections: sections,
		FullText: flattenSections(sections),
		Source:   templateSource,
	}, nil
}

func (g *TemplateGenerator) history(note *domain.StructuredNote) string {
	var b strings.Builder
	b.WriteString("The patient")
	if demo := note.FirstValue(domain.FieldDemographics); demo != "" {
		fmt.Fprintf(&b, ", a %s,", demo)
	}
	b.WriteString(" was admitted")
	if note.Anchors.Admission != nil {
		fmt.Fprintf(&b, " on %s", formatDate(note.Anchors.Admission))
	}
	if diagnosis := note.FirstValue(domain.FieldDiagnosis); diagnosis != "" {
		fmt.Fprintf(&b, " with %s", diagnosis)
	}
	b.WriteString(".")
	return b.String()
}

func (g *TemplateGenerator) hospitalCourse(note *domain.StructuredNote) string {
	complications := sortedValues(note, domain.FieldComplication)
	if len(complications) == 0 {
		return "The hospital course was without documented complications."
	}
	return fmt.Sprintf("The hospital course was subsequently notable for %s.", joinClause(complications))
}

func (g *TemplateGenerator) procedures(note *domain.StructuredNote) string {
	procedures := sortedValues(note, domain.FieldProcedure)
	if len(procedures) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The patient underwent %s", joinClause(procedures))
	if note.Anchors.Surgery != nil {
		fmt.Fprintf(&b, " on %s", formatDate(note.Anchors.Surgery))
	}
	b.WriteString(".")
	return b.String()
}

func (g *TemplateGenerator) complications(note *domain.StructuredNote) string {
	complications := sortedValues(note, domain.FieldComplication)
	if len(complications) == 0 {
		return ""
	}
	return fmt.Sprintf("Complications during this admission: %s.", joinClause(complications))
}

func (g *TemplateGenerator) medications(note *domain.StructuredNote) string {
	fields := note.Fields[domain.FieldMedication]
	if len(fields) == 0 {
		return ""
	}
	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, medicationEntry(f))
	}
	sort.Strings(entries)
	return fmt.Sprintf("Discharge medications include %s.", joinClause(entries))
}

func (g *TemplateGenerator) disposition(note *domain.StructuredNote) string {
	disposition := note.FirstValue(domain.FieldDisposition)
	if disposition == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The patient was discharged to %s", disposition)
	if note.Anchors.Discharge != nil {
		fmt.Fprintf(&b, " on %s", formatDate(note.Anchors.Discharge))
	}
	b.WriteString(".")
	return b.String()
}

func (g *TemplateGenerator) followUp(note *domain.StructuredNote) string {
	planned := make([]string, 0)
	for _, ft := range domain.AllFieldTypes {
		for _, f := range note.Fields[ft] {
			if f.Temporal != nil && f.Temporal.Category == domain.TemporalFuture {
				planned = append(planned, f.Value)
			}
		}
	}
	if len(planned) == 0 {
		return "Follow-up as clinically indicated."
	}
	sort.Strings(planned)
	return fmt.Sprintf("Planned following discharge: %s.", joinClause(planned))
}

// medicationEntry prefers the full structured dosage over the surface form.
func medicationEntry(f domain.ExtractedField) string {
	if f.Dosage == nil || f.Dosage.Drug == "" {
		return f.Value
	}
	parts := []string{f.Dosage.Drug}
	if f.Dosage.Dose != "" {
		parts = append(parts, f.Dosage.Dose)
	}
	if f.Dosage.Route != "" {
		parts = append(parts, f.Dosage.Route)
	}
	if f.Dosage.Frequency != "" {
		parts = append(parts, f.Dosage.Frequency)
	}
	return strings.Join(parts, " ")
}

// sortedValues returns the field's values in deterministic order.
func sortedValues(note *domain.StructuredNote, ft domain.FieldType) []string {
	values := note.FieldValues(ft)
	sort.Strings(values)
	return values
}

// joinClause joins values in prose style: "a", "a and b", "a, b, and c".
func joinClause(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	case 2:
		return values[0] + " and " + values[1]
	default:
		return strings.Join(values[:len(values)-1], ", ") + ", and " + values[len(values)-1]
	}
}

func formatDate(t *time.Time) string {
	return t.Format("January 2, 2006")
}
