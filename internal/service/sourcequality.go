package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
)

// Factor weights for the overall source score. Documented here because
// the factor average is weighted, not uniform: structure and completeness
// carry the most signal about extraction reliability.
const (
	structureWeight    = 0.25
	completenessWeight = 0.25
	formalityWeight    = 0.15
	detailWeight       = 0.20
	consistencyWeight  = 0.15
)

var (
	sectionHeaderExpr = regexp.MustCompile(`(?im)^\s*(?:admission|history|hpi|past medical history|hospital course|physical exam|examination|medications|labs|imaging|assessment|plan|discharge|disposition|complications|procedures)[^:\n]{0,30}:`)
	numberExpr        = regexp.MustCompile(`\d+(?:\.\d+)?`)

	admissionDateExpr = regexp.MustCompile(`(?i)(?:admitted[^.\n]{0,40}? on|admission date:?|date of admission:?)\s*` + datePattern)
	dischargeDateExpr = regexp.MustCompile(`(?i)(?:discharged[^.\n]{0,40}? on|discharge date:?|date of discharge:?)\s*` + datePattern)
	noComplicationsExpr = regexp.MustCompile(`(?i)\bno complications\b|\buncomplicated\b|\bunremarkable (?:hospital )?course\b`)
)

// informalTokens are shorthand that marks a note as informally written.
// Clinical abbreviations the normalizer expands are not counted here.
var informalTokens = map[string]struct{}{
	"ok": {}, "okay": {}, "gonna": {}, "wanna": {}, "stuff": {},
	"thing": {}, "things": {}, "guy": {}, "pls": {}, "plz": {},
	"asap": {}, "fyi": {}, "btw": {}, "lots": {}, "kinda": {},
	"sorta": {}, "etc": {},
}

// expectedTopics is the coverage set for the completeness factor.
var expectedTopics = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\badmi(?:tted|ssion)\b`),
	regexp.MustCompile(`(?i)\bdischarge`),
	regexp.MustCompile(`(?i)\bmedication|\bmg\b`),
	regexp.MustCompile(`(?i)\bunderwent\b|\bprocedure\b|\bsurgery\b|\boperat`),
	regexp.MustCompile(`(?i)\bexam|\bdiagnos`),
	regexp.MustCompile(`(?i)\bhistory\b`),
}

// SourceQualityAssessor scores the input note itself; the result
// calibrates every downstream confidence multiplicatively and never
// raises one above its matcher ceiling.
type SourceQualityAssessor struct {
	logger *logrus.Logger
}

// NewSourceQualityAssessor creates a source quality assessor.
func NewSourceQualityAssessor(logger *logrus.Logger) *SourceQualityAssessor {
	return &SourceQualityAssessor{logger: logger}
}

// Assess scores the five quality factors and grades the note.
func (a *SourceQualityAssessor) Assess(nt *NormalizedText) *domain.SourceQualityAssessment {
	factors := domain.QualityFactors{
		Structure:    a.scoreStructure(nt),
		Completeness: a.scoreCompleteness(nt),
		Formality:    a.scoreFormality(nt),
		Detail:       a.scoreDetail(nt),
		Consistency:  a.scoreConsistency(nt),
	}

	score := structureWeight*factors.Structure +
		completenessWeight*factors.Completeness +
		formalityWeight*factors.Formality +
		detailWeight*factors.Detail +
		consistencyWeight*factors.Consistency

	assessment := &domain.SourceQualityAssessment{
		Grade:   gradeFor(score),
		Score:   score,
		Factors: factors,
	}

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"grade": assessment.Grade,
			"score": assessment.Score,
		}).Debug("Assessed source note quality")
	}

	return assessment
}

// gradeFor maps a score onto the fixed grade boundaries.
func gradeFor(score float64) domain.SourceGrade {
	switch {
	case score >= 0.85:
		return domain.GradeExcellent
	case score >= 0.70:
		return domain.GradeGood
	case score >= 0.50:
		return domain.GradeFair
	case score >= 0.35:
		return domain.GradePoor
	default:
		return domain.GradeVeryPoor
	}
}

// scoreStructure rewards the presence of section headers, saturating at
// five distinct headers.
func (a *SourceQualityAssessor) scoreStructure(nt *NormalizedText) float64 {
	headers := sectionHeaderExpr.FindAllString(nt.Text, -1)
	return clamp01(float64(len(headers)) / 5.0)
}

// scoreCompleteness measures coverage of the expected note topics.
func (a *SourceQualityAssessor) scoreCompleteness(nt *NormalizedText) float64 {
	covered := 0
	for _, topic := range expectedTopics {
		if topic.MatchString(nt.Text) {
			covered++
		}
	}
	return float64(covered) / float64(len(expectedTopics))
}

// scoreFormality penalizes informal shorthand proportionally to its
// density in the token stream.
func (a *SourceQualityAssessor) scoreFormality(nt *NormalizedText) float64 {
	tokens := tokenize(nt.Text)
	if len(tokens) == 0 {
		return 0
	}
	informal := 0
	for _, tok := range tokens {
		if _, ok := informalTokens[tok]; ok {
			informal++
		}
	}
	ratio := float64(informal) / float64(len(tokens))
	return clamp01(1.0 - ratio*20)
}

// scoreDetail blends average sentence length with numeric density: notes
// with specific values and dates score higher.
func (a *SourceQualityAssessor) scoreDetail(nt *NormalizedText) float64 {
	if len(nt.Sentences) == 0 {
		return 0
	}
	totalTokens := len(tokenize(nt.Text))
	avgLen := float64(totalTokens) / float64(len(nt.Sentences))
	numbers := len(numberExpr.FindAllString(nt.Text, -1))
	numericDensity := float64(numbers) / float64(len(nt.Sentences))

	return clamp01(avgLen/18.0)*0.6 + clamp01(numericDensity/1.5)*0.4
}

// firstDateMatch returns the first parseable date captured by expr.
func firstDateMatch(expr *regexp.Regexp, text string) *time.Time {
	m := expr.FindStringSubmatch(text)
	if m == nil || len(m) < 2 {
		return nil
	}
	t, err := parseDate(m[1])
	if err != nil {
		return nil
	}
	return &t
}

// scoreConsistency starts at 1.0 and deducts for contradictions the note
// makes against itself.
func (a *SourceQualityAssessor) scoreConsistency(nt *NormalizedText) float64 {
	score := 1.0

	// Discharge recorded before admission.
	admission := firstDateMatch(admissionDateExpr, nt.Text)
	discharge := firstDateMatch(dischargeDateExpr, nt.Text)
	if admission != nil && discharge != nil && discharge.Before(*admission) {
		score -= 0.4
		a.logContradiction("discharge date precedes admission date")
	}

	// Claims an uncomplicated course while naming complications.
	if noComplicationsExpr.MatchString(nt.Text) {
		for _, term := range complicationLexicon {
			if strings.Contains(strings.ToLower(nt.Text), term) {
				score -= 0.3
				a.logContradiction("note claims an uncomplicated course while naming " + term)
				break
			}
		}
	}

	return clamp01(score)
}

// logContradiction records a detected self-contradiction under its
// stable code.
func (a *SourceQualityAssessor) logContradiction(detail string) {
	if a.logger == nil {
		return
	}
	a.logger.WithFields(logrus.Fields{
		"code":   domain.ErrInconsistentData,
		"detail": detail,
	}).Warn("Source note contradicts itself")
}
