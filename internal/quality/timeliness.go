package quality

import (
	"fmt"
	"time"

	"github.com/clinnote-engine/internal/domain"
)

// scoreTimeliness compares recorded stage durations against their
// configured targets and flags the slowest over-budget stage as the
// bottleneck. Missing metrics degrade the dimension, never the report.
func scoreTimeliness(metrics *domain.PerfMetrics, targets map[string]time.Duration) domain.DimensionScore {
	if metrics == nil || len(metrics.Stages) == 0 {
		return domain.DimensionScore{
			Score: 0,
			Issues: []domain.Issue{{
				Type:        "missing_metrics",
				Severity:    domain.SeverityWarning,
				Description: "no stage timings recorded, timeliness could not be assessed",
			}},
		}
	}

	issues := make([]domain.Issue, 0)
	measured, within := 0, 0
	var slowest domain.StageTiming
	slowestOverBudget := false

	for _, st := range metrics.Stages {
		target, ok := targets[st.Stage]
		if !ok || target <= 0 {
			continue
		}
		measured++
		if st.Duration <= target {
			within++
			continue
		}
		issues = append(issues, domain.Issue{
			Type:        "slow_stage",
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("stage %q took %s against a %s target", st.Stage, st.Duration, target),
		})
		if !slowestOverBudget || st.Duration > slowest.Duration {
			slowest = st
			slowestOverBudget = true
		}
	}

	if slowestOverBudget {
		issues = append(issues, domain.Issue{
			Type:        "bottleneck",
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("stage %q is the pipeline bottleneck at %s", slowest.Stage, slowest.Duration),
			Suggestion:  fmt.Sprintf("profile the %s stage", slowest.Stage),
		})
	}

	if measured == 0 {
		// Timings exist but none have configured targets.
		return domain.DimensionScore{Score: 1.0, Issues: issues}
	}

	return domain.DimensionScore{
		Score:  float64(within) / float64(measured),
		Issues: issues,
	}
}
