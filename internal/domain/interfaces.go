package domain

import "context"

// SemanticComparator scores the semantic similarity of two mentions on a
// 0-1 scale. Implementations may be embedding-backed; the deduplicator
// treats the comparator as optional.
type SemanticComparator interface {
	Similarity(a, b string) float64
}

// NarrativeGenerator turns a structured note into narrative prose. The
// pipeline treats it as a black box that must always yield a narrative,
// falling back internally when external providers fail.
type NarrativeGenerator interface {
	Generate(ctx context.Context, note *StructuredNote) (*Narrative, error)
}

// CorrectionReader is the read side of the optional correction store.
// It is the only correction access permitted during a pipeline run.
type CorrectionReader interface {
	ListForField(ctx context.Context, ft FieldType, limit int) ([]*Correction, error)
}

// CorrectionStore is the full narrow interface of the correction
// collaborator. Writes happen only after a run completes.
type CorrectionStore interface {
	CorrectionReader
	Append(ctx context.Context, c *Correction) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// ConfigManager provides access to the loaded configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetPipelineOptions() Options
	Validate() error
}
