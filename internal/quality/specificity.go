package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clinnote-engine/internal/domain"
)

// vagueQuantifierExpr captures a vague quantifier and the noun it
// quantifies so the issue can suggest the exact count.
var vagueQuantifierExpr = regexp.MustCompile(`(?i)\b(multiple|several|some|many|a few|various|numerous)\s+([a-z]+)\b`)

var preciseValueExpr = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml|units)?`)

// quantifiedFields maps narrative nouns back to the structured field
// whose count can replace the vague quantifier.
var quantifiedFields = map[string]domain.FieldType{
	"complications": domain.FieldComplication,
	"complication":  domain.FieldComplication,
	"medications":   domain.FieldMedication,
	"medication":    domain.FieldMedication,
	"procedures":    domain.FieldProcedure,
	"procedure":     domain.FieldProcedure,
	"surgeries":     domain.FieldProcedure,
}

// scoreSpecificity penalizes vague quantifiers the structured data could
// have made exact, and rewards precise values and dosages in the prose.
func scoreSpecificity(note *domain.StructuredNote, narrative *domain.Narrative) domain.DimensionScore {
	if narrative == nil || strings.TrimSpace(narrative.FullText) == "" {
		return domain.DimensionScore{
			Score: 0,
			Issues: []domain.Issue{{
				Type:        "missing_narrative",
				Severity:    domain.SeverityWarning,
				Description: "no narrative available, specificity could not be assessed",
			}},
		}
	}

	issues := make([]domain.Issue, 0)

	matches := vagueQuantifierExpr.FindAllStringSubmatch(narrative.FullText, -1)
	for _, m := range matches {
		quantifier, noun := m[1], strings.ToLower(m[2])
		issue := domain.Issue{
			Type:        "vague_quantifier",
			Severity:    domain.SeverityMinor,
			Description: fmt.Sprintf("narrative says %q where a precise statement is possible", quantifier+" "+noun),
			Suggestion:  "replace the vague quantifier with the exact value",
		}
		if ft, ok := quantifiedFields[noun]; ok {
			issue.Field = ft
			if count := len(note.Fields[ft]); count > 0 {
				issue.Suggestion = fmt.Sprintf("replace %q with the exact count: %d %s", quantifier+" "+noun, count, noun)
			}
		}
		issues = append(issues, issue)
	}

	vaguePenalty := clamp01(1.0 - 0.2*float64(len(matches)))

	// Precise values per sentence, saturating at one each.
	sentences := len(narrativeSentenceExpr.Split(narrative.FullText, -1))
	if sentences < 1 {
		sentences = 1
	}
	precise := len(preciseValueExpr.FindAllString(narrative.FullText, -1))
	preciseScore := clamp01(float64(precise) / float64(sentences))

	score := 0.7*vaguePenalty + 0.3*preciseScore
	return domain.DimensionScore{Score: score, Issues: issues}
}
