package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clinnote-engine/internal/domain"
)

// transitionWords carry the narrative from one event to the next; their
// density is a cheap proxy for narrative flow.
var transitionWords = []string{
	"subsequently", "following", "thereafter", "afterwards", "during",
	"upon", "initially", "finally", "then", "later", "prior to",
	"at that time", "on hospital day",
}

// clinicalTerms is the terminology sample used to check register: a
// professional discharge narrative uses precise clinical vocabulary.
var clinicalTerms = []string{
	"patient", "admission", "admitted", "discharge", "diagnosis",
	"underwent", "procedure", "postoperative", "post-operative",
	"tolerated", "neurologically", "hemorrhage", "course", "examination",
	"stable", "follow-up",
}

// casualWords mark an unprofessional register in generated prose.
var casualWords = []string{
	"gonna", "stuff", "things", "okay", "ok", "pretty", "really",
	"a lot", "kind of", "sort of", "basically", "you", "i think",
}

var narrativeSentenceExpr = regexp.MustCompile(`[.!?]\s+`)

// allSections is the expected narrative section set.
var allSections = []domain.NarrativeSection{
	domain.SectionHistory,
	domain.SectionHospitalStay,
	domain.SectionProcedures,
	domain.SectionComplications,
	domain.SectionMedications,
	domain.SectionDisposition,
	domain.SectionFollowUp,
}

// scoreNarrativeQuality evaluates the generated prose on transition
// density, terminology, tone, and section coverage. A missing narrative
// scores 0 with an explicit issue.
func scoreNarrativeQuality(narrative *domain.Narrative) domain.DimensionScore {
	if narrative == nil || strings.TrimSpace(narrative.FullText) == "" {
		return domain.DimensionScore{
			Score: 0,
			Issues: []domain.Issue{{
				Type:        "missing_narrative",
				Severity:    domain.SeverityCritical,
				Description: "no narrative was generated for this run",
				Suggestion:  "check the narrative provider chain; the template fallback should always produce one",
			}},
		}
	}

	text := strings.ToLower(narrative.FullText)
	sentences := len(narrativeSentenceExpr.Split(narrative.FullText, -1))
	if sentences < 1 {
		sentences = 1
	}
	issues := make([]domain.Issue, 0)

	// One transition per three sentences is the saturation point.
	transitions := 0
	for _, w := range transitionWords {
		transitions += strings.Count(text, w)
	}
	transitionScore := clamp01(float64(transitions) * 3.0 / float64(sentences))
	if transitionScore < 0.4 {
		issues = append(issues, domain.Issue{
			Type:        "low_transition_density",
			Severity:    domain.SeverityMinor,
			Description: "narrative reads as disconnected statements rather than a continuous course",
			Suggestion:  "connect events with temporal transitions (subsequently, thereafter, on hospital day N)",
		})
	}

	terms := 0
	for _, w := range clinicalTerms {
		if strings.Contains(text, w) {
			terms++
		}
	}
	terminologyScore := clamp01(float64(terms) / 6.0)
	if terminologyScore < 0.5 {
		issues = append(issues, domain.Issue{
			Type:        "weak_terminology",
			Severity:    domain.SeverityMinor,
			Description: "narrative uses little standard clinical vocabulary",
			Suggestion:  "use standard discharge summary terminology",
		})
	}

	toneScore := 1.0
	for _, w := range casualWords {
		if strings.Contains(text, w) {
			toneScore -= 0.2
			issues = append(issues, domain.Issue{
				Type:        "informal_tone",
				Severity:    domain.SeverityMajor,
				Description: fmt.Sprintf("narrative contains informal phrasing %q", w),
				Suggestion:  "rephrase in a professional clinical register",
			})
		}
	}
	toneScore = clamp01(toneScore)

	filled := 0
	for _, section := range allSections {
		if strings.TrimSpace(narrative.Sections[section]) != "" {
			filled++
		}
	}
	coverageScore := float64(filled) / float64(len(allSections))

	score := 0.3*transitionScore + 0.25*terminologyScore + 0.25*toneScore + 0.2*coverageScore
	return domain.DimensionScore{Score: score, Issues: issues}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
