package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// Pipeline runs the extraction stages in their fixed order:
// normalize, extract, negation, temporal, dedup, source quality,
// calibration, correction overrides. Given identical input and options
// it produces identical output.
type Pipeline struct {
	logger      *logrus.Logger
	opts        domain.Options
	normalizer  *Normalizer
	extractor   *Extractor
	negation    *NegationDetector
	temporal    *TemporalResolver
	dedup       *Deduplicator
	assessor    *SourceQualityAssessor
	corrections domain.CorrectionReader
}

// NewPipeline wires the extraction stages. corrections may be nil; the
// override stage is then skipped.
func NewPipeline(logger *logrus.Logger, opts domain.Options, semantic domain.SemanticComparator, corrections domain.CorrectionReader) *Pipeline {
	return &Pipeline{
		logger:      logger,
		opts:        opts,
		normalizer:  NewNormalizer(),
		extractor:   NewExtractor(logger),
		negation:    NewNegationDetector(logger, opts),
		temporal:    NewTemporalResolver(logger),
		dedup:       NewDeduplicator(logger, opts, semantic),
		assessor:    NewSourceQualityAssessor(logger),
		corrections: corrections,
	}
}

// Run executes the full extraction pipeline on one note. Empty or
// whitespace-only input is a caller error. The returned metrics carry
// one timing entry per stage.
func (p *Pipeline) Run(ctx context.Context, text string) (*domain.StructuredNote, *domain.PerfMetrics, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, domain.NewPipelineError(domain.ErrEmptyNote, "note text is empty", "", "")
	}

	runID := uuid.New().String()
	metrics := &domain.PerfMetrics{}
	log := p.logger.WithField("run_id", runID)

	// normalize
	start := time.Now()
	nt := p.normalizer.Normalize(text)
	metrics.Add("normalize", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline cancelled after normalize: %w", err)
	}

	// extract
	start = time.Now()
	fields := p.extractor.Extract(nt, domain.AllFieldTypes)
	metrics.Add("extract", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline cancelled after extract: %w", err)
	}

	// negation
	start = time.Now()
	kept := make([]domain.ExtractedField, 0)
	filtered := make([]domain.ExtractedField, 0)
	for _, ft := range domain.AllFieldTypes {
		res := p.negation.FilterNegated(fields[ft], nt)
		kept = append(kept, res.Kept...)
		filtered = append(filtered, res.Filtered...)
	}
	metrics.Add("negation", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline cancelled after negation: %w", err)
	}

	// temporal
	start = time.Now()
	anchors := anchorsFrom(kept)
	kept = p.temporal.Resolve(kept, nt, anchors)
	metrics.Add("temporal", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline cancelled after temporal: %w", err)
	}

	// dedup
	start = time.Now()
	clusters := p.dedup.Deduplicate(kept)
	metrics.Add("dedup", time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline cancelled after dedup: %w", err)
	}

	// source quality
	start = time.Now()
	assessment := p.assessor.Assess(nt)
	metrics.Add("source_quality", time.Since(start))

	note := &domain.StructuredNote{
		RunID:      runID,
		SourceText: nt.Text,
		Fields:     make(map[domain.FieldType][]domain.ExtractedField),
		Clusters:   make(map[domain.FieldType][]domain.EntityCluster),
		Filtered:   filtered,
		Assessment: assessment,
		Anchors:    anchors,
		CreatedAt:  time.Now().UTC(),
	}
	for _, ft := range domain.AllFieldTypes {
		note.Fields[ft] = make([]domain.ExtractedField, 0)
		note.Clusters[ft] = make([]domain.EntityCluster, 0)
	}

	// Calibration dampens every surviving confidence by the source grade
	// factor; it never raises one.
	factor := assessment.CalibrationFactor()
	for _, cluster := range clusters {
		cluster.Representative.Confidence = clamp01(cluster.Representative.Confidence * factor)
		for i := range cluster.Members {
			cluster.Members[i].Confidence = clamp01(cluster.Members[i].Confidence * factor)
		}
		ft := cluster.Representative.FieldType
		note.Clusters[ft] = append(note.Clusters[ft], cluster)
		note.Fields[ft] = append(note.Fields[ft], cluster.Representative)
	}

	if err := p.applyCorrections(ctx, note); err != nil {
		// Correction store trouble degrades the run, it does not fail it.
		log.WithError(err).Warn("Skipping correction overrides")
	}

	log.WithFields(logrus.Fields{
		"fields":   len(kept),
		"filtered": len(filtered),
		"grade":    assessment.Grade,
	}).Info("Completed extraction pipeline")

	return note, metrics, nil
}

// applyCorrections replaces extracted values that a reviewer has
// previously corrected. Overrides carry confidence 1.0 and are exempt
// from calibration.
func (p *Pipeline) applyCorrections(ctx context.Context, note *domain.StructuredNote) error {
	if p.corrections == nil {
		return nil
	}

	for _, ft := range domain.AllFieldTypes {
		if len(note.Fields[ft]) == 0 {
			continue
		}
		overrides, err := p.corrections.ListForField(ctx, ft, 100)
		if err != nil {
			return fmt.Errorf("failed to list corrections for %s: %w", ft, err)
		}
		if len(overrides) == 0 {
			continue
		}

		byOriginal := make(map[string]*domain.Correction, len(overrides))
		for _, c := range overrides {
			byOriginal[strings.ToLower(c.Original)] = c
		}

		for i, field := range note.Fields[ft] {
			c, ok := byOriginal[strings.ToLower(field.Value)]
			if !ok {
				continue
			}
			note.Fields[ft][i].Value = c.Corrected
			note.Fields[ft][i].Confidence = 1.0
			p.logger.WithFields(logrus.Fields{
				"field":     ft,
				"original":  c.Original,
				"corrected": c.Corrected,
			}).Debug("Applied reviewer correction")
		}
	}

	return nil
}

// anchorsFrom picks the first dated mention of each anchor field.
func anchorsFrom(entities []domain.ExtractedField) domain.Anchors {
	var anchors domain.Anchors
	for _, e := range entities {
		if e.Date == nil {
			continue
		}
		switch e.FieldType {
		case domain.FieldAdmissionDate:
			if anchors.Admission == nil {
				anchors.Admission = e.Date
			}
		case domain.FieldSurgeryDate:
			if anchors.Surgery == nil {
				anchors.Surgery = e.Date
			}
		case domain.FieldDischargeDate:
			if anchors.Discharge == nil {
				anchors.Discharge = e.Date
			}
		}
	}
	return anchors
}
