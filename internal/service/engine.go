package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// QualityScorer turns a pipeline run into a quality report. Missing
// inputs (nil narrative, nil metrics) degrade the affected dimensions
// rather than failing the score.
type QualityScorer interface {
	Score(ctx context.Context, note *domain.StructuredNote, narrative *domain.Narrative, metrics *domain.PerfMetrics) (*domain.QualityReport, error)
}

// ProcessResult bundles everything one end-to-end run produces.
type ProcessResult struct {
	Note      *domain.StructuredNote `json:"note"`
	Narrative *domain.Narrative      `json:"narrative,omitempty"`
	Report    *domain.QualityReport  `json:"report"`
	Metrics   *domain.PerfMetrics    `json:"metrics"`
}

// Engine composes the extraction pipeline, narrative generation, and
// quality scoring into one operation.
type Engine struct {
	logger    *logrus.Logger
	pipeline  *Pipeline
	generator domain.NarrativeGenerator
	scorer    QualityScorer
}

// NewEngine creates the processing engine. generator may be nil; scoring
// then proceeds without a narrative and the narrative quality dimension
// reports the absence.
func NewEngine(logger *logrus.Logger, pipeline *Pipeline, generator domain.NarrativeGenerator, scorer QualityScorer) *Engine {
	return &Engine{
		logger:    logger,
		pipeline:  pipeline,
		generator: generator,
		scorer:    scorer,
	}
}

// Process runs extraction, narrative generation and scoring for one note.
func (e *Engine) Process(ctx context.Context, text string) (*ProcessResult, error) {
	note, metrics, err := e.pipeline.Run(ctx, text)
	if err != nil {
		return nil, err
	}

	var narrative *domain.Narrative
	if e.generator != nil {
		start := time.Now()
		narrative, err = e.generator.Generate(ctx, note)
		metrics.Add("narrative", time.Since(start))
		if err != nil {
			// Generation failures are survivable: the scorer records the
			// missing narrative as an issue.
			e.logger.WithError(err).WithField("run_id", note.RunID).Warn("Narrative generation failed")
			narrative = nil
		}
	}

	report, err := e.scorer.Score(ctx, note, narrative, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to score run %s: %w", note.RunID, err)
	}

	return &ProcessResult{
		Note:      note,
		Narrative: narrative,
		Report:    report,
		Metrics:   metrics,
	}, nil
}
