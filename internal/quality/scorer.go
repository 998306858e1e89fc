package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// dimensionOrder fixes the evaluation and reporting order.
var dimensionOrder = []domain.DimensionName{
	domain.DimCompleteness,
	domain.DimAccuracy,
	domain.DimConsistency,
	domain.DimNarrativeQuality,
	domain.DimSpecificity,
	domain.DimTimeliness,
}

// remediations is the per-dimension recommendation text emitted for the
// lowest-scoring dimensions.
var remediations = map[domain.DimensionName]string{
	domain.DimCompleteness:     "document the missing sections in the source note so all critical fields can be extracted",
	domain.DimAccuracy:         "review flagged values against the source note and correct any that were not actually documented",
	domain.DimConsistency:      "reconcile the contradictory dates and cross-references between the structured data and the narrative",
	domain.DimNarrativeQuality: "improve the narrative's flow and clinical register",
	domain.DimSpecificity:      "replace vague quantifiers with the exact counts and values available in the structured data",
	domain.DimTimeliness:       "investigate the flagged pipeline stages exceeding their time budgets",
}

// Scorer computes the six dimension scores and aggregates them into a
// quality report. It never fails on missing optional inputs: a nil
// narrative or nil metrics degrades the affected dimensions with
// explicit issues.
type Scorer struct {
	logger *logrus.Logger
	opts   domain.Options
}

// NewScorer creates a quality scorer with the given options.
func NewScorer(logger *logrus.Logger, opts domain.Options) *Scorer {
	return &Scorer{logger: logger, opts: opts}
}

// Score produces the quality report for one pipeline run. The weighted
// dimension sum equals the overall score exactly.
func (s *Scorer) Score(ctx context.Context, note *domain.StructuredNote, narrative *domain.Narrative, metrics *domain.PerfMetrics) (*domain.QualityReport, error) {
	if note == nil {
		return nil, domain.NewPipelineError(domain.ErrInvalidInput, "structured note is nil", "", "")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scoring cancelled: %w", err)
	}

	targets := s.opts.TimelinessTargets
	if len(targets) == 0 {
		targets = domain.DefaultOptions().TimelinessTargets
	}

	dimensions := map[domain.DimensionName]domain.DimensionScore{
		domain.DimCompleteness:     scoreCompleteness(note),
		domain.DimAccuracy:         scoreAccuracy(note),
		domain.DimConsistency:      scoreConsistency(note, narrative),
		domain.DimNarrativeQuality: scoreNarrativeQuality(narrative),
		domain.DimSpecificity:      scoreSpecificity(note, narrative),
		domain.DimTimeliness:       scoreTimeliness(metrics, targets),
	}

	weights := s.opts.Weights()
	overall := 0.0
	for _, name := range dimensionOrder {
		dim := dimensions[name]
		dim.Weight = weights[name]
		dimensions[name] = dim
		overall += dim.Score * dim.Weight
	}

	report := &domain.QualityReport{
		ID: uuid.New().String(),
		Overall: domain.OverallScore{
			Score:      overall,
			Percentage: overall * 100,
			Rating:     ratingFor(overall),
			Confidence: s.confidence(note, narrative, metrics),
		},
		Dimensions:      dimensions,
		Recommendations: s.recommendations(dimensions),
		GeneratedAt:     time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": note.RunID,
		"score":  report.Overall.Score,
		"rating": report.Overall.Rating,
	}).Info("Generated quality report")

	return report, nil
}

// ratingFor maps the overall score onto its label.
func ratingFor(score float64) string {
	switch {
	case score >= 0.90:
		return "excellent"
	case score >= 0.75:
		return "good"
	case score >= 0.60:
		return "fair"
	case score >= 0.40:
		return "poor"
	default:
		return "very_poor"
	}
}

// confidence reflects how much of the input was available to assess.
func (s *Scorer) confidence(note *domain.StructuredNote, narrative *domain.Narrative, metrics *domain.PerfMetrics) float64 {
	confidence := 1.0
	if note.SourceText == "" || note.Assessment == nil {
		confidence -= 0.25
	}
	if narrative == nil || strings.TrimSpace(narrative.FullText) == "" {
		confidence -= 0.30
	}
	if metrics == nil || len(metrics.Stages) == 0 {
		confidence -= 0.10
	}
	return clamp01(confidence)
}

// recommendations emits remediation text for the lowest-scoring
// dimensions, ascending, capped at the configured limit.
func (s *Scorer) recommendations(dimensions map[domain.DimensionName]domain.DimensionScore) []string {
	limit := s.opts.RecommendationLimit
	if limit <= 0 {
		limit = domain.DefaultOptions().RecommendationLimit
	}

	names := make([]domain.DimensionName, 0, len(dimensions))
	for _, name := range dimensionOrder {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, b := dimensions[names[i]], dimensions[names[j]]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return names[i] < names[j]
	})

	recs := make([]string, 0, limit)
	for _, name := range names {
		if len(recs) == limit {
			break
		}
		if dimensions[name].Score >= 1.0 {
			continue
		}
		recs = append(recs, fmt.Sprintf("%s: %s", name, remediations[name]))
	}
	return recs
}
