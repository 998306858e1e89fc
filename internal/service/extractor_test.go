package service

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinnote-engine/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func extractFrom(t *testing.T, text string, targets ...domain.FieldType) map[domain.FieldType][]domain.ExtractedField {
	t.Helper()
	nt := NewNormalizer().Normalize(text)
	return NewExtractor(newTestLogger()).Extract(nt, targets)
}

func TestExtractor_Demographics(t *testing.T) {
	results := extractFrom(t, "The patient is a 62-year-old female with hypertension.", domain.FieldDemographics)

	require.Len(t, results[domain.FieldDemographics], 1)
	field := results[domain.FieldDemographics][0]
	assert.Equal(t, "62-year-old female", field.Value)
	assert.Equal(t, domain.KindString, field.Kind)
	assert.InDelta(t, 0.9, field.Confidence, 1e-9)
}

func TestExtractor_AnchorDates(t *testing.T) {
	text := "She was admitted on 3/10/2024. She underwent coiling on 3/11/2024. Discharged to home on 3/20/2024."
	results := extractFrom(t, text,
		domain.FieldAdmissionDate, domain.FieldSurgeryDate, domain.FieldDischargeDate)

	require.Len(t, results[domain.FieldAdmissionDate], 1)
	require.NotNil(t, results[domain.FieldAdmissionDate][0].Date)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *results[domain.FieldAdmissionDate][0].Date)

	require.Len(t, results[domain.FieldSurgeryDate], 1)
	require.NotNil(t, results[domain.FieldSurgeryDate][0].Date)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), *results[domain.FieldSurgeryDate][0].Date)

	require.Len(t, results[domain.FieldDischargeDate], 1)
	require.NotNil(t, results[domain.FieldDischargeDate][0].Date)
	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), *results[domain.FieldDischargeDate][0].Date)
}

func TestExtractor_DateFormats(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"slash", "Admission date: 3/10/2024", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"iso", "Admission date: 2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"month name", "Admission date: March 10, 2024", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := extractFrom(t, tt.text, domain.FieldAdmissionDate)
			require.Len(t, results[domain.FieldAdmissionDate], 1)
			require.NotNil(t, results[domain.FieldAdmissionDate][0].Date)
			assert.Equal(t, tt.want, *results[domain.FieldAdmissionDate][0].Date)
		})
	}
}

func TestExtractor_MedicationWithDosage(t *testing.T) {
	results := extractFrom(t, "Discharge medications: aspirin 81mg daily and nimodipine 60mg every 4 hours.", domain.FieldMedication)

	meds := results[domain.FieldMedication]
	require.Len(t, meds, 2)

	require.NotNil(t, meds[0].Dosage)
	assert.Equal(t, "aspirin", meds[0].Dosage.Drug)
	assert.Equal(t, "81mg", meds[0].Dosage.Dose)
	assert.Equal(t, "daily", meds[0].Dosage.Frequency)
	assert.Equal(t, domain.KindDosageRecord, meds[0].Kind)
	assert.InDelta(t, 0.9, meds[0].Confidence, 1e-9)

	require.NotNil(t, meds[1].Dosage)
	assert.Equal(t, "nimodipine", meds[1].Dosage.Drug)
	assert.Equal(t, "60mg", meds[1].Dosage.Dose)
	assert.Equal(t, "every 4 hours", meds[1].Dosage.Frequency)
}

func TestExtractor_BareMedicationMention(t *testing.T) {
	results := extractFrom(t, "She was continued on nimodipine.", domain.FieldMedication)

	meds := results[domain.FieldMedication]
	require.Len(t, meds, 1)
	assert.Equal(t, domain.KindString, meds[0].Kind)
	assert.InDelta(t, 0.65, meds[0].Confidence, 1e-9)
	require.NotNil(t, meds[0].Dosage)
	assert.Equal(t, "nimodipine", meds[0].Dosage.Drug)
	assert.Empty(t, meds[0].Dosage.Dose)
}

func TestExtractor_MedicationAliasCanonicalized(t *testing.T) {
	// The normalizer expands ASA before the matcher runs; the dosage
	// record carries the canonical drug name.
	results := extractFrom(t, "Continued ASA 81mg daily.", domain.FieldMedication)

	meds := results[domain.FieldMedication]
	require.Len(t, meds, 1)
	require.NotNil(t, meds[0].Dosage)
	assert.Equal(t, "aspirin", meds[0].Dosage.Drug)
}

func TestExtractor_DiagnosisGrades(t *testing.T) {
	results := extractFrom(t, "Admitted with subarachnoid hemorrhage, Hunt-Hess grade 3, Fisher grade 4.", domain.FieldDiagnosis)

	diagnoses := results[domain.FieldDiagnosis]
	require.NotEmpty(t, diagnoses)

	scales := make(map[string]string)
	for _, d := range diagnoses {
		if d.Scale != nil {
			scales[d.Scale.Scale] = d.Scale.Value
		}
	}
	assert.Equal(t, "3", scales["Hunt-Hess"])
	assert.Equal(t, "4", scales["Fisher"])
}

func TestExtractor_Procedures(t *testing.T) {
	results := extractFrom(t, "She underwent coiling of the aneurysm. An external ventricular drain was placed.", domain.FieldProcedure)

	procedures := results[domain.FieldProcedure]
	require.Len(t, procedures, 2)
	assert.Equal(t, "coiling", procedures[0].Value)
	assert.InDelta(t, 0.9, procedures[0].Confidence, 1e-9)
	assert.Equal(t, "external ventricular drain", procedures[1].Value)
	assert.InDelta(t, 0.75, procedures[1].Confidence, 1e-9)
}

func TestExtractor_AbbreviatedProcedureMention(t *testing.T) {
	// The normalizer expands EVD before the matcher runs.
	results := extractFrom(t, "An EVD was placed on 3/11/2024 for hydrocephalus.", domain.FieldProcedure)

	procedures := results[domain.FieldProcedure]
	require.Len(t, procedures, 1)
	assert.Equal(t, "external ventricular drain", procedures[0].Value)
	assert.InDelta(t, 0.75, procedures[0].Confidence, 1e-9)
}

func TestExtractor_FunctionalScores(t *testing.T) {
	results := extractFrom(t, "Discharged with an mRS of 2. GCS 15 on discharge.", domain.FieldFunctionalScore)

	scores := results[domain.FieldFunctionalScore]
	require.Len(t, scores, 2)
	require.NotNil(t, scores[0].Scale)
	assert.Equal(t, "mRS", scores[0].Scale.Scale)
	assert.Equal(t, "2", scores[0].Scale.Value)
	require.NotNil(t, scores[1].Scale)
	assert.Equal(t, "GCS", scores[1].Scale.Scale)
	assert.Equal(t, "15", scores[1].Scale.Value)
}

func TestExtractor_Disposition(t *testing.T) {
	results := extractFrom(t, "The patient was discharged to acute rehab in stable condition.", domain.FieldDisposition)

	dispositions := results[domain.FieldDisposition]
	require.Len(t, dispositions, 1)
	assert.Equal(t, "acute rehab", dispositions[0].Value)
}

func TestExtractor_MissingFieldsYieldEmptySlices(t *testing.T) {
	results := extractFrom(t, "Entirely unrelated text.", domain.AllFieldTypes...)

	for _, ft := range domain.AllFieldTypes {
		fields, ok := results[ft]
		require.True(t, ok, "field %s must be present in the result map", ft)
		assert.NotNil(t, fields, "field %s must be an empty slice, not nil", ft)
		assert.Empty(t, fields)
	}
}

func TestExtractor_SpansAddressNormalizedText(t *testing.T) {
	nt := NewNormalizer().Normalize("She developed fever and vasospasm during her stay.")
	results := NewExtractor(newTestLogger()).Extract(nt, []domain.FieldType{domain.FieldComplication})

	for _, field := range results[domain.FieldComplication] {
		assert.Equal(t, nt.Text[field.Span.Start:field.Span.End], field.Span.Text)
	}
	require.Len(t, results[domain.FieldComplication], 2)
}
