package service

import (
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinnote-engine/internal/domain"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// entityAt builds a minimal entity positioned at the first occurrence of
// value within the normalized text.
func entityAt(t *testing.T, nt *NormalizedText, value string) domain.ExtractedField {
	t.Helper()
	idx := strings.Index(nt.Text, value)
	require.GreaterOrEqual(t, idx, 0, "value %q not found in %q", value, nt.Text)
	return domain.ExtractedField{
		FieldType:  domain.FieldComplication,
		Kind:       domain.KindString,
		Value:      value,
		Confidence: 0.7,
		Span:       domain.Span{Start: idx, End: idx + len(value), Text: value},
	}
}

func TestTemporalResolver_CuePhrases(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())

	tests := []struct {
		name     string
		text     string
		entity   string
		category domain.TemporalCategory
	}{
		{"on admission", "Severe headache on admission.", "headache", domain.TemporalAdmission},
		{"at discharge", "No deficits, stable headache at discharge.", "headache", domain.TemporalDischarge},
		{"history of", "History of seizures in childhood.", "seizures", domain.TemporalPast},
		{"planned", "Angiogram planned for next week.", "Angiogram", domain.TemporalFuture},
		{"follow-up", "Will return for follow-up angiogram.", "angiogram", domain.TemporalFuture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt := NewNormalizer().Normalize(tt.text)
			entity := entityAt(t, nt, tt.entity)

			resolved := resolver.Resolve([]domain.ExtractedField{entity}, nt, domain.Anchors{})
			require.Len(t, resolved, 1)
			require.NotNil(t, resolved[0].Temporal)
			assert.Equal(t, tt.category, resolved[0].Temporal.Category)
			assert.GreaterOrEqual(t, resolved[0].Temporal.Confidence, 0.85)
		})
	}
}

func TestTemporalResolver_CuesMatchWholeTokensOnly(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())
	anchors := domain.Anchors{
		Admission: datePtr(2024, time.March, 10),
		Discharge: datePtr(2024, time.March, 20),
	}

	tests := []struct {
		name   string
		text   string
		entity string
		date   *time.Time
	}{
		{
			name:   "will does not fire inside willing",
			text:   "The family was willing to pursue acute rehab on 3/18/2024.",
			entity: "acute rehab",
			date:   datePtr(2024, time.March, 18),
		},
		{
			name:   "prior does not fire inside priority",
			text:   "Early mobilization was a priority and she ambulated on 3/12/2024.",
			entity: "ambulated",
			date:   datePtr(2024, time.March, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt := NewNormalizer().Normalize(tt.text)
			entity := entityAt(t, nt, tt.entity)
			entity.Date = tt.date

			resolved := resolver.Resolve([]domain.ExtractedField{entity}, nt, anchors)
			require.NotNil(t, resolved[0].Temporal)
			// Without a cue the dated entity resolves positionally.
			assert.Equal(t, domain.TemporalPresent, resolved[0].Temporal.Category)
			assert.Equal(t, "position", resolved[0].Temporal.CueType)
		})
	}
}

func TestTemporalResolver_MalformedInputDegradesToUnknown(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	resolver := NewTemporalResolver(logger)

	entity := domain.ExtractedField{
		FieldType: domain.FieldComplication,
		Value:     "fever",
		Span:      domain.Span{Start: 0, End: 5, Text: "fever"},
	}

	resolved := resolver.Resolve([]domain.ExtractedField{entity}, nil, domain.Anchors{})
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].Temporal)
	assert.Equal(t, domain.TemporalUnknown, resolved[0].Temporal.Category)
	assert.Zero(t, resolved[0].Temporal.Confidence)

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, domain.ErrTemporalResolution, hook.LastEntry().Data["code"])
}

func TestTemporalResolver_PostOperativeDay(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())
	nt := NewNormalizer().Normalize("Developed fever on POD 3.")
	entity := entityAt(t, nt, "fever")

	anchors := domain.Anchors{Surgery: datePtr(2024, time.March, 11)}
	resolved := resolver.Resolve([]domain.ExtractedField{entity}, nt, anchors)

	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].Temporal)
	assert.Equal(t, domain.TemporalPresent, resolved[0].Temporal.Category)
	assert.InDelta(t, 0.7, resolved[0].Temporal.Confidence, 1e-9)
	require.NotNil(t, resolved[0].Date)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), *resolved[0].Date)
}

func TestTemporalResolver_PODFallsBackToAdmissionAnchor(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())
	nt := NewNormalizer().Normalize("Developed fever on POD 2.")
	entity := entityAt(t, nt, "fever")

	anchors := domain.Anchors{Admission: datePtr(2024, time.March, 10)}
	resolved := resolver.Resolve([]domain.ExtractedField{entity}, nt, anchors)

	require.NotNil(t, resolved[0].Date)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), *resolved[0].Date)
}

func TestTemporalResolver_PositionalInference(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())
	anchors := domain.Anchors{
		Admission: datePtr(2024, time.March, 10),
		Discharge: datePtr(2024, time.March, 20),
	}
	nt := NewNormalizer().Normalize("Stroke was documented.")

	tests := []struct {
		name     string
		date     *time.Time
		category domain.TemporalCategory
	}{
		{"before admission", datePtr(2024, time.March, 1), domain.TemporalPast},
		{"after discharge", datePtr(2024, time.April, 2), domain.TemporalFuture},
		{"within stay", datePtr(2024, time.March, 15), domain.TemporalPresent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := entityAt(t, nt, "Stroke")
			entity.Date = tt.date

			resolved := resolver.Resolve([]domain.ExtractedField{entity}, nt, anchors)
			require.NotNil(t, resolved[0].Temporal)
			assert.Equal(t, tt.category, resolved[0].Temporal.Category)
			// Positional inference sits below explicit-cue confidence.
			assert.Less(t, resolved[0].Temporal.Confidence, 0.85)
			assert.GreaterOrEqual(t, resolved[0].Temporal.Confidence, 0.5)
		})
	}
}

func TestTemporalResolver_EveryEntityGetsACategory(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())
	nt := NewNormalizer().Normalize("Vasospasm noted. Fever recorded. Seizure observed.")

	entities := []domain.ExtractedField{
		entityAt(t, nt, "Vasospasm"),
		entityAt(t, nt, "Fever"),
		entityAt(t, nt, "Seizure"),
	}

	resolved := resolver.Resolve(entities, nt, domain.Anchors{})
	require.Len(t, resolved, 3)
	for _, e := range resolved {
		require.NotNil(t, e.Temporal, "every entity must carry a temporal context")
		assert.Equal(t, domain.TemporalUnknown, e.Temporal.Category)
		assert.Zero(t, e.Temporal.Confidence)
	}
}

func TestTemporalResolver_EntityOutsideSentencesGetsUnknown(t *testing.T) {
	resolver := NewTemporalResolver(newTestLogger())
	nt := NewNormalizer().Normalize("Short note.")

	// A span beyond the text cannot be located in any sentence.
	entity := domain.ExtractedField{
		FieldType: domain.FieldComplication,
		Value:     "fever",
		Span:      domain.Span{Start: 500, End: 505, Text: "fever"},
	}

	resolved := resolver.Resolve([]domain.ExtractedField{entity}, nt, domain.Anchors{})
	require.NotNil(t, resolved[0].Temporal)
	assert.Equal(t, domain.TemporalUnknown, resolved[0].Temporal.Category)
}
