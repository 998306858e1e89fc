package domain

import (
	"time"
)

// Core Enums and Types

// FieldType identifies the clinical field an extracted value belongs to.
type FieldType string

const (
	FieldDemographics    FieldType = "DEMOGRAPHICS"
	FieldAdmissionDate   FieldType = "ADMISSION_DATE"
	FieldDischargeDate   FieldType = "DISCHARGE_DATE"
	FieldSurgeryDate     FieldType = "SURGERY_DATE"
	FieldDiagnosis       FieldType = "DIAGNOSIS"
	FieldProcedure       FieldType = "PROCEDURE"
	FieldComplication    FieldType = "COMPLICATION"
	FieldMedication      FieldType = "MEDICATION"
	FieldFunctionalScore FieldType = "FUNCTIONAL_SCORE"
	FieldDisposition     FieldType = "DISPOSITION"
)

// AllFieldTypes lists every field the extractor knows how to target.
var AllFieldTypes = []FieldType{
	FieldDemographics,
	FieldAdmissionDate,
	FieldDischargeDate,
	FieldSurgeryDate,
	FieldDiagnosis,
	FieldProcedure,
	FieldComplication,
	FieldMedication,
	FieldFunctionalScore,
	FieldDisposition,
}

// ValueKind tags the shape of an extracted value so consumers can
// pattern-match instead of runtime-checking types.
type ValueKind string

const (
	KindString       ValueKind = "STRING"
	KindDatedEvent   ValueKind = "DATED_EVENT"
	KindDosageRecord ValueKind = "DOSAGE_RECORD"
	KindScaleScore   ValueKind = "SCALE_SCORE"
)

// TemporalCategory classifies when an extracted event happened relative
// to the hospital course.
type TemporalCategory string

const (
	TemporalAdmission TemporalCategory = "ADMISSION"
	TemporalDischarge TemporalCategory = "DISCHARGE"
	TemporalPast      TemporalCategory = "PAST"
	TemporalPresent   TemporalCategory = "PRESENT"
	TemporalFuture    TemporalCategory = "FUTURE"
	TemporalUnknown   TemporalCategory = "UNKNOWN"
)

// SourceGrade grades the overall quality of an input note.
type SourceGrade string

const (
	GradeExcellent SourceGrade = "EXCELLENT"
	GradeGood      SourceGrade = "GOOD"
	GradeFair      SourceGrade = "FAIR"
	GradePoor      SourceGrade = "POOR"
	GradeVeryPoor  SourceGrade = "VERY_POOR"
)

// Severity ranks how much an issue should concern a reviewer.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityWarning  Severity = "warning"
)

// DimensionName names one of the six quality dimensions.
type DimensionName string

const (
	DimCompleteness     DimensionName = "completeness"
	DimAccuracy         DimensionName = "accuracy"
	DimConsistency      DimensionName = "consistency"
	DimNarrativeQuality DimensionName = "narrative_quality"
	DimSpecificity      DimensionName = "specificity"
	DimTimeliness       DimensionName = "timeliness"
)

// Extraction Models

// Span addresses a region of the normalized note text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Length returns the character length of the span.
func (s Span) Length() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share any characters.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// DosageRecord captures a structured medication mention.
type DosageRecord struct {
	Drug      string `json:"drug"`
	Dose      string `json:"dose,omitempty"`
	Route     string `json:"route,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// ScaleScore captures a standardized functional or severity scale value.
type ScaleScore struct {
	Scale string `json:"scale"` // e.g. "mRS", "KPS", "Hunt-Hess"
	Value string `json:"value"`
}

// TemporalContext places a date-bearing entity in the hospital course.
// Absence of a resolvable cue yields TemporalUnknown with confidence 0.
type TemporalContext struct {
	Category   TemporalCategory `json:"category"`
	Confidence float64          `json:"confidence"`
	CueType    string           `json:"cue_type,omitempty"`
}

// ExtractedField is one extracted clinical value with its provenance.
// Exactly one of Date, Dosage, Scale is populated depending on Kind;
// Value always carries the surface form.
type ExtractedField struct {
	FieldType        FieldType        `json:"field_type"`
	Kind             ValueKind        `json:"kind"`
	Value            string           `json:"value"`
	Date             *time.Time       `json:"date,omitempty"`
	Dosage           *DosageRecord    `json:"dosage,omitempty"`
	Scale            *ScaleScore      `json:"scale,omitempty"`
	Confidence       float64          `json:"confidence"`
	Span             Span             `json:"span"`
	Temporal         *TemporalContext `json:"temporal,omitempty"`
	PossibleNegation bool             `json:"possible_negation,omitempty"`
}

// EntityCluster groups near-duplicate mentions of the same entity.
// The representative is the highest-confidence member; its confidence is
// never lower than any other member's.
type EntityCluster struct {
	Representative ExtractedField   `json:"representative"`
	Members        []ExtractedField `json:"members"`
}

// QualityFactors holds the five independent source-quality factor scores,
// each on a 0-1 scale.
type QualityFactors struct {
	Structure    float64 `json:"structure"`
	Completeness float64 `json:"completeness"`
	Formality    float64 `json:"formality"`
	Detail       float64 `json:"detail"`
	Consistency  float64 `json:"consistency"`
}

// SourceQualityAssessment scores an input note once per run and drives
// downstream confidence calibration.
type SourceQualityAssessment struct {
	Grade   SourceGrade    `json:"grade"`
	Score   float64        `json:"score"`
	Factors QualityFactors `json:"factors"`
}

// CalibrationFactor returns the multiplicative dampening applied to every
// extracted confidence for this grade. It never exceeds 1.0.
func (a *SourceQualityAssessment) CalibrationFactor() float64 {
	switch a.Grade {
	case GradeExcellent:
		return 1.0
	case GradeGood:
		return 0.95
	case GradeFair:
		return 0.85
	case GradePoor:
		return 0.70
	default:
		return 0.55
	}
}

// StructuredNote is the final output of the extraction pipeline for one note.
// SourceText carries the normalized note text so the scorer can verify
// extracted values against their source; it is not serialized.
type StructuredNote struct {
	RunID      string                         `json:"run_id"`
	SourceText string                         `json:"-"`
	Fields     map[FieldType][]ExtractedField `json:"fields"`
	Clusters   map[FieldType][]EntityCluster  `json:"clusters,omitempty"`
	Filtered   []ExtractedField               `json:"filtered,omitempty"`
	Assessment *SourceQualityAssessment       `json:"assessment,omitempty"`
	Anchors    Anchors                        `json:"anchors"`
	CreatedAt  time.Time                      `json:"created_at"`
}

// Anchors holds the resolved anchor dates used for temporal inference.
type Anchors struct {
	Admission *time.Time `json:"admission,omitempty"`
	Surgery   *time.Time `json:"surgery,omitempty"`
	Discharge *time.Time `json:"discharge,omitempty"`
}

// FieldValues returns the surface values for a field, never nil.
func (n *StructuredNote) FieldValues(ft FieldType) []string {
	fields := n.Fields[ft]
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		values = append(values, f.Value)
	}
	return values
}

// FirstValue returns the first extracted value for a field, or "".
func (n *StructuredNote) FirstValue(ft FieldType) string {
	if fields := n.Fields[ft]; len(fields) > 0 {
		return fields[0].Value
	}
	return ""
}

// Quality Report Models

// Issue is one detected problem. Every detected problem surfaces as
// exactly one Issue; none are silently dropped.
type Issue struct {
	Type        string    `json:"type"`
	Severity    Severity  `json:"severity"`
	Field       FieldType `json:"field,omitempty"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion,omitempty"`
}

// DimensionScore is the result of one quality sub-scorer.
type DimensionScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Issues []Issue `json:"issues"`
}

// OverallScore aggregates the weighted dimension scores.
type OverallScore struct {
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Rating     string  `json:"rating"`
	Confidence float64 `json:"confidence"`
}

// QualityReport is the immutable final result handed to the caller.
type QualityReport struct {
	ID              string                           `json:"id"`
	Overall         OverallScore                     `json:"overall"`
	Dimensions      map[DimensionName]DimensionScore `json:"dimensions"`
	Recommendations []string                         `json:"recommendations"`
	GeneratedAt     time.Time                        `json:"generated_at"`
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// PerfMetrics collects per-stage durations for the Timeliness dimension.
type PerfMetrics struct {
	Stages []StageTiming `json:"stages"`
}

// Add records a stage duration.
func (p *PerfMetrics) Add(stage string, d time.Duration) {
	p.Stages = append(p.Stages, StageTiming{Stage: stage, Duration: d})
}

// Narrative Models

// NarrativeSection names a section of the generated narrative.
type NarrativeSection string

const (
	SectionHistory       NarrativeSection = "history"
	SectionHospitalStay  NarrativeSection = "hospital_course"
	SectionProcedures    NarrativeSection = "procedures"
	SectionComplications NarrativeSection = "complications"
	SectionMedications   NarrativeSection = "medications"
	SectionDisposition   NarrativeSection = "discharge_disposition"
	SectionFollowUp      NarrativeSection = "follow_up"
)

// Narrative is the generated prose keyed by section, with the flattened
// full text retained for lexical checks.
type Narrative struct {
	Sections map[NarrativeSection]string `json:"sections"`
	FullText string                      `json:"full_text"`
	Source   string                      `json:"source"` // provider name or "template"
}

// Correction is a reviewer-supplied field override. Overrides carry
// confidence 1.0 and bypass source-quality calibration.
type Correction struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	FieldType FieldType `json:"field_type"`
	Original  string    `json:"original"`
	Corrected string    `json:"corrected"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
