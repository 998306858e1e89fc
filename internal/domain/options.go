package domain

import "time"

// Options is the configuration surface consumed by the pipeline core.
// It is passed explicitly into the pipeline, never read from global state.
// The stated defaults are calibration values, not correctness requirements.
type Options struct {
	// MergeThreshold is the pairwise similarity above which two mentions
	// are unioned into one cluster.
	MergeThreshold float64 `mapstructure:"merge_threshold"`

	// NegationWindow is the number of tokens inspected on each side of a
	// candidate entity for negation triggers.
	NegationWindow int `mapstructure:"negation_window"`

	// Similarity blend weights. When no semantic comparator is installed
	// the semantic weight is redistributed to the first two terms.
	JaccardWeight  float64 `mapstructure:"jaccard_weight"`
	EditWeight     float64 `mapstructure:"edit_weight"`
	SemanticWeight float64 `mapstructure:"semantic_weight"`

	// AmbiguousNegationPenalty scales confidence when a negation trigger
	// is near an entity but its scope cannot be proven to cover it.
	AmbiguousNegationPenalty float64 `mapstructure:"ambiguous_negation_penalty"`

	// TimelinessTargets maps stage name to its expected duration budget.
	TimelinessTargets map[string]time.Duration `mapstructure:"timeliness_targets"`

	// DimensionWeights override the fixed dimension weights. Only meant
	// for testing; when empty the fixed weights apply.
	DimensionWeights map[DimensionName]float64 `mapstructure:"dimension_weights"`

	// RecommendationLimit caps how many dimension remediations are emitted.
	RecommendationLimit int `mapstructure:"recommendation_limit"`
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{
		MergeThreshold:           0.75,
		NegationWindow:           6,
		JaccardWeight:            0.4,
		EditWeight:               0.2,
		SemanticWeight:           0.4,
		AmbiguousNegationPenalty: 0.6,
		TimelinessTargets: map[string]time.Duration{
			"normalize":      50 * time.Millisecond,
			"extract":        250 * time.Millisecond,
			"negation":       50 * time.Millisecond,
			"temporal":       50 * time.Millisecond,
			"dedup":          100 * time.Millisecond,
			"source_quality": 50 * time.Millisecond,
			"narrative":      10 * time.Second,
		},
		RecommendationLimit: 3,
	}
}

// FixedDimensionWeights are the published dimension weights; they sum to 1.0.
var FixedDimensionWeights = map[DimensionName]float64{
	DimCompleteness:     0.30,
	DimAccuracy:         0.25,
	DimConsistency:      0.20,
	DimNarrativeQuality: 0.15,
	DimSpecificity:      0.05,
	DimTimeliness:       0.05,
}

// Weights returns the effective dimension weights for these options.
func (o Options) Weights() map[DimensionName]float64 {
	if len(o.DimensionWeights) > 0 {
		return o.DimensionWeights
	}
	return FixedDimensionWeights
}
