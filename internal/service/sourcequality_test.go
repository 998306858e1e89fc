package service

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinnote-engine/internal/domain"
)

const structuredNote = `History: 62-year-old female with hypertension admitted on 3/10/2024 with subarachnoid hemorrhage.
Hospital Course: She underwent coiling on 3/11/2024 and remained stable with nimodipine 60mg every 4 hours.
Medications: aspirin 81mg daily and levetiracetam 500mg twice daily were continued.
Assessment: Diagnosis of aneurysmal subarachnoid hemorrhage, Hunt-Hess grade 3.
Discharge: Discharged to acute rehab on 3/20/2024 with an mRS of 2.`

const sloppyNote = `ok so stuff looks fine, thing is the guy wants to go home asap. pls call if worse.`

func assess(t *testing.T, text string) *domain.SourceQualityAssessment {
	t.Helper()
	nt := NewNormalizer().Normalize(text)
	return NewSourceQualityAssessor(newTestLogger()).Assess(nt)
}

func TestSourceQuality_StructuredNoteGradesExcellent(t *testing.T) {
	assessment := assess(t, structuredNote)

	assert.Equal(t, domain.GradeExcellent, assessment.Grade)
	assert.InDelta(t, 1.0, assessment.Factors.Structure, 1e-9)
	assert.InDelta(t, 1.0, assessment.Factors.Completeness, 1e-9)
	assert.InDelta(t, 1.0, assessment.Factors.Formality, 1e-9)
	assert.InDelta(t, 1.0, assessment.Factors.Consistency, 1e-9)
	assert.Greater(t, assessment.Factors.Detail, 0.5)
	assert.Equal(t, 1.0, assessment.CalibrationFactor())
}

func TestSourceQuality_SloppyNoteGradesVeryPoor(t *testing.T) {
	assessment := assess(t, sloppyNote)

	assert.Equal(t, domain.GradeVeryPoor, assessment.Grade)
	assert.Zero(t, assessment.Factors.Structure)
	assert.Zero(t, assessment.Factors.Completeness)
	assert.Zero(t, assessment.Factors.Formality)
	assert.Equal(t, 0.55, assessment.CalibrationFactor())
}

func TestSourceQuality_ContradictionDeductions(t *testing.T) {
	t.Run("uncomplicated course naming a complication", func(t *testing.T) {
		assessment := assess(t, "Uncomplicated hospital course. However she developed vasospasm on 3/15/2024.")
		assert.InDelta(t, 0.7, assessment.Factors.Consistency, 1e-9)
	})

	t.Run("discharge recorded before admission", func(t *testing.T) {
		assessment := assess(t, "Admission date: 3/20/2024. Discharge date: 3/10/2024.")
		assert.InDelta(t, 0.6, assessment.Factors.Consistency, 1e-9)
	})

	t.Run("no contradiction", func(t *testing.T) {
		assessment := assess(t, "Admission date: 3/10/2024. Discharge date: 3/20/2024. No complications.")
		assert.InDelta(t, 1.0, assessment.Factors.Consistency, 1e-9)
	})
}

func TestSourceQuality_ContradictionLogsStableCode(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	assessor := NewSourceQualityAssessor(logger)

	assessor.Assess(NewNormalizer().Normalize(
		"Uncomplicated hospital course. However she developed vasospasm on 3/15/2024."))

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, domain.ErrInconsistentData, hook.LastEntry().Data["code"])
}

func TestSourceQuality_GradeBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		grade domain.SourceGrade
	}{
		{0.95, domain.GradeExcellent},
		{0.85, domain.GradeExcellent},
		{0.84, domain.GradeGood},
		{0.70, domain.GradeGood},
		{0.69, domain.GradeFair},
		{0.50, domain.GradeFair},
		{0.49, domain.GradePoor},
		{0.35, domain.GradePoor},
		{0.34, domain.GradeVeryPoor},
		{0.0, domain.GradeVeryPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, gradeFor(tt.score), "score %.2f", tt.score)
	}
}

func TestSourceQuality_Deterministic(t *testing.T) {
	first := assess(t, structuredNote)
	second := assess(t, structuredNote)
	require.Equal(t, first, second)
}
