package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinnote-engine/internal/domain"
)

const sampleNote = `Patient is a 62-year-old female admitted on 3/10/2024 with subarachnoid hemorrhage. ` +
	`Hunt-Hess grade 3. She underwent coiling on 3/11/2024. No evidence of vasospasm. ` +
	`Developed fever on POD 3. Discharged to acute rehab on 3/20/2024. ` +
	`Discharge medications: aspirin 81mg daily, nimodipine 60mg every 4 hours.`

func newTestPipeline(corrections domain.CorrectionReader) *Pipeline {
	return NewPipeline(newTestLogger(), domain.DefaultOptions(), nil, corrections)
}

func TestPipeline_EmptyNoteRejected(t *testing.T) {
	p := newTestPipeline(nil)

	for _, text := range []string{"", "   \n\t  "} {
		note, metrics, err := p.Run(context.Background(), text)
		assert.Nil(t, note)
		assert.Nil(t, metrics)

		var perr *domain.PipelineError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, domain.ErrEmptyNote, perr.Code)
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	p := newTestPipeline(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	note, _, err := p.Run(ctx, sampleNote)
	assert.Nil(t, note)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipeline_EndToEnd(t *testing.T) {
	p := newTestPipeline(nil)

	note, metrics, err := p.Run(context.Background(), sampleNote)
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.NotEmpty(t, note.RunID)
	assert.NotEmpty(t, note.SourceText)

	// Anchor dates drive the temporal stage.
	require.NotNil(t, note.Anchors.Admission)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *note.Anchors.Admission)
	require.NotNil(t, note.Anchors.Surgery)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), *note.Anchors.Surgery)
	require.NotNil(t, note.Anchors.Discharge)
	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), *note.Anchors.Discharge)

	// The negated vasospasm is filtered; the fever survives with a date
	// resolved from the surgical anchor.
	assert.NotContains(t, note.FieldValues(domain.FieldComplication), "vasospasm")
	complications := note.Fields[domain.FieldComplication]
	require.Len(t, complications, 1)
	assert.Equal(t, "fever", complications[0].Value)
	require.NotNil(t, complications[0].Date)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), *complications[0].Date)

	filtered := make([]string, 0, len(note.Filtered))
	for _, f := range note.Filtered {
		filtered = append(filtered, f.Value)
	}
	assert.Contains(t, filtered, "vasospasm")

	// Both medications survive as structured dosage records.
	meds := note.FieldValues(domain.FieldMedication)
	assert.Contains(t, meds, "aspirin 81mg daily")
	assert.Contains(t, meds, "nimodipine 60mg every 4 hours")

	assert.Equal(t, "acute rehab", note.FirstValue(domain.FieldDisposition))

	// Every stage reports a timing entry.
	stages := make([]string, 0, len(metrics.Stages))
	for _, s := range metrics.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{"normalize", "extract", "negation", "temporal", "dedup", "source_quality"}, stages)
}

func TestPipeline_FieldMapsAlwaysPopulated(t *testing.T) {
	p := newTestPipeline(nil)

	note, _, err := p.Run(context.Background(), "Entirely unrelated text.")
	require.NoError(t, err)

	for _, ft := range domain.AllFieldTypes {
		fields, ok := note.Fields[ft]
		require.True(t, ok)
		assert.NotNil(t, fields)
		clusters, ok := note.Clusters[ft]
		require.True(t, ok)
		assert.NotNil(t, clusters)
	}
}

func TestPipeline_Deterministic(t *testing.T) {
	p := newTestPipeline(nil)

	first, _, err := p.Run(context.Background(), sampleNote)
	require.NoError(t, err)
	second, _, err := p.Run(context.Background(), sampleNote)
	require.NoError(t, err)

	// Everything except the run identity is identical across runs.
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, first.Filtered, second.Filtered)
	assert.Equal(t, first.Assessment, second.Assessment)
	assert.Equal(t, first.Anchors, second.Anchors)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipeline_ConfidencesStayBounded(t *testing.T) {
	p := newTestPipeline(nil)

	note, _, err := p.Run(context.Background(), sampleNote)
	require.NoError(t, err)

	for _, ft := range domain.AllFieldTypes {
		for _, cluster := range note.Clusters[ft] {
			assert.GreaterOrEqual(t, cluster.Representative.Confidence, 0.0)
			assert.LessOrEqual(t, cluster.Representative.Confidence, 1.0)
			for _, m := range cluster.Members {
				assert.LessOrEqual(t, m.Confidence, cluster.Representative.Confidence+1e-9)
			}
		}
	}
}

// recordingReader serves canned corrections and records the queried fields.
type recordingReader struct {
	corrections map[domain.FieldType][]*domain.Correction
	err         error
	queried     []domain.FieldType
}

func (r *recordingReader) ListForField(_ context.Context, ft domain.FieldType, _ int) ([]*domain.Correction, error) {
	r.queried = append(r.queried, ft)
	if r.err != nil {
		return nil, r.err
	}
	return r.corrections[ft], nil
}

func TestPipeline_AppliesCorrectionOverrides(t *testing.T) {
	reader := &recordingReader{
		corrections: map[domain.FieldType][]*domain.Correction{
			domain.FieldDisposition: {
				{FieldType: domain.FieldDisposition, Original: "Acute Rehab", Corrected: "inpatient rehabilitation facility"},
			},
		},
	}
	p := newTestPipeline(reader)

	note, _, err := p.Run(context.Background(), sampleNote)
	require.NoError(t, err)

	dispositions := note.Fields[domain.FieldDisposition]
	require.Len(t, dispositions, 1)
	assert.Equal(t, "inpatient rehabilitation facility", dispositions[0].Value)
	assert.Equal(t, 1.0, dispositions[0].Confidence)
	// The span still points at the original mention.
	assert.Equal(t, "acute rehab", dispositions[0].Span.Text)
}

func TestPipeline_CorrectionStoreFailureDegrades(t *testing.T) {
	reader := &recordingReader{err: errors.New("store offline")}
	p := newTestPipeline(reader)

	note, _, err := p.Run(context.Background(), sampleNote)
	require.NoError(t, err)
	assert.Equal(t, "acute rehab", note.FirstValue(domain.FieldDisposition))
	assert.NotEmpty(t, reader.queried)
}
