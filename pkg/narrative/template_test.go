package narrative

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinnote-engine/internal/domain"
)

func TestTemplate_FullNote(t *testing.T) {
	g := NewTemplateGenerator()

	narrative, err := g.Generate(context.Background(), testNote())
	require.NoError(t, err)
	assert.Equal(t, "template", narrative.Source)

	assert.Equal(t,
		"The patient, a 62-year-old female, was admitted on March 10, 2024 with subarachnoid hemorrhage.",
		narrative.Sections[domain.SectionHistory])
	assert.Equal(t,
		"The patient underwent coiling on March 11, 2024.",
		narrative.Sections[domain.SectionProcedures])
	assert.Equal(t,
		"Complications during this admission: fever.",
		narrative.Sections[domain.SectionComplications])
	assert.Equal(t,
		"Discharge medications include aspirin 81mg daily.",
		narrative.Sections[domain.SectionMedications])
	assert.Equal(t,
		"The patient was discharged to acute rehab on March 20, 2024.",
		narrative.Sections[domain.SectionDisposition])

	assert.Contains(t, narrative.FullText, "subarachnoid hemorrhage")
	assert.Contains(t, narrative.FullText, "aspirin 81mg daily")
}

func TestTemplate_SparseNoteUsesNeutralDefaults(t *testing.T) {
	g := NewTemplateGenerator()

	narrative, err := g.Generate(context.Background(), &domain.StructuredNote{
		Fields: map[domain.FieldType][]domain.ExtractedField{},
	})
	require.NoError(t, err)

	assert.Equal(t, "The patient was admitted.", narrative.Sections[domain.SectionHistory])
	assert.Equal(t,
		"The hospital course was without documented complications.",
		narrative.Sections[domain.SectionHospitalStay])
	assert.Empty(t, narrative.Sections[domain.SectionProcedures])
	assert.Empty(t, narrative.Sections[domain.SectionMedications])
	assert.Equal(t, "Follow-up as clinically indicated.", narrative.Sections[domain.SectionFollowUp])
	assert.NotEmpty(t, narrative.FullText)
}

func TestTemplate_Deterministic(t *testing.T) {
	g := NewTemplateGenerator()

	first, err := g.Generate(context.Background(), testNote())
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), testNote())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTemplate_FollowUpCollectsFutureEvents(t *testing.T) {
	g := NewTemplateGenerator()

	note := testNote()
	note.Fields[domain.FieldProcedure] = append(note.Fields[domain.FieldProcedure], domain.ExtractedField{
		FieldType: domain.FieldProcedure,
		Value:     "angiogram",
		Temporal:  &domain.TemporalContext{Category: domain.TemporalFuture, Confidence: 0.9},
	})

	narrative, err := g.Generate(context.Background(), note)
	require.NoError(t, err)
	assert.Equal(t, "Planned following discharge: angiogram.", narrative.Sections[domain.SectionFollowUp])
}

func TestMedicationEntry_PrefersStructuredDosage(t *testing.T) {
	field := domain.ExtractedField{
		Value: "ASA 81mg",
		Dosage: &domain.DosageRecord{
			Drug: "aspirin", Dose: "81mg", Route: "po", Frequency: "daily",
		},
	}
	assert.Equal(t, "aspirin 81mg po daily", medicationEntry(field))

	bare := domain.ExtractedField{Value: "nimodipine"}
	assert.Equal(t, "nimodipine", medicationEntry(bare))
}

func TestJoinClause(t *testing.T) {
	assert.Equal(t, "", joinClause(nil))
	assert.Equal(t, "fever", joinClause([]string{"fever"}))
	assert.Equal(t, "fever and vasospasm", joinClause([]string{"fever", "vasospasm"}))
	assert.Equal(t, "fever, seizure, and vasospasm", joinClause([]string{"fever", "seizure", "vasospasm"}))
}
