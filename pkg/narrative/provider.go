package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/clinnote-engine/internal/domain"
)

// Prompt is the deterministic provider input built from one structured
// note. Text is stable for identical notes so it can key the cache.
type Prompt struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// Provider turns a prompt into a narrative. Implementations fail with
// ErrProviderTimeout, ErrProviderFailure or ErrMalformedResponse.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt *Prompt) (*domain.Narrative, error)
}

// BuildPrompt renders a structured note into the provider input. Fields
// are emitted in a fixed order so identical notes yield identical
// prompts.
func BuildPrompt(note *domain.StructuredNote) *Prompt {
	var b strings.Builder
	b.WriteString("Write a professional discharge summary narrative from the following structured data.\n")

	for _, ft := range domain.AllFieldTypes {
		fields := note.Fields[ft]
		if len(fields) == 0 {
			continue
		}
		values := make([]string, 0, len(fields))
		for _, f := range fields {
			values = append(values, f.Value)
		}
		sort.Strings(values)
		fmt.Fprintf(&b, "%s: %s\n", ft, strings.Join(values, "; "))
	}

	return &Prompt{Text: b.String(), Style: "discharge_summary"}
}

// HTTPProviderConfig configures a JSON-over-HTTP completion provider.
type HTTPProviderConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// HTTPProvider is a generic JSON completion client. The upstream may
// answer with a section map or with raw text, which is then parsed into
// sections by heading.
type HTTPProvider struct {
	config  HTTPProviderConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProvider creates an HTTP completion provider.
func NewHTTPProvider(config HTTPProviderConfig) *HTTPProvider {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 1.0
	}
	return &HTTPProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Name returns the configured provider name.
func (p *HTTPProvider) Name() string {
	return p.config.Name
}

type completionRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
}

type completionResponse struct {
	Sections map[string]string `json:"sections,omitempty"`
	Text     string            `json:"text,omitempty"`
}

// Generate calls the upstream completion endpoint.
func (p *HTTPProvider) Generate(ctx context.Context, prompt *Prompt) (*domain.Narrative, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, providerErr(p.config.Name, ErrProviderTimeout, err)
	}

	body, err := json.Marshal(completionRequest{
		Model:  p.config.Model,
		Prompt: prompt.Text,
		Style:  prompt.Style,
	})
	if err != nil {
		return nil, providerErr(p.config.Name, ErrProviderFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, providerErr(p.config.Name, ErrProviderFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, providerErr(p.config.Name, ErrProviderTimeout, err)
		}
		return nil, providerErr(p.config.Name, ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providerErr(p.config.Name, ErrProviderFailure,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, providerErr(p.config.Name, ErrProviderFailure, err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, providerErr(p.config.Name, ErrMalformedResponse, err)
	}

	narrative, err := p.toNarrative(parsed)
	if err != nil {
		return nil, err
	}
	return narrative, nil
}

// toNarrative converts either response shape into a Narrative.
func (p *HTTPProvider) toNarrative(parsed completionResponse) (*domain.Narrative, error) {
	sections := make(map[domain.NarrativeSection]string)

	switch {
	case len(parsed.Sections) > 0:
		for name, text := range parsed.Sections {
			sections[domain.NarrativeSection(strings.ToLower(name))] = strings.TrimSpace(text)
		}
	case strings.TrimSpace(parsed.Text) != "":
		sections = parseSections(parsed.Text)
	default:
		return nil, providerErr(p.config.Name, ErrMalformedResponse,
			errors.New("response contains neither sections nor text"))
	}

	return &domain.Narrative{
		Sections: sections,
		FullText: flattenSections(sections),
		Source:   p.config.Name,
	}, nil
}

// sectionHeadings maps raw-text headings onto section names.
var sectionHeadings = map[string]domain.NarrativeSection{
	"history":               domain.SectionHistory,
	"hospital course":       domain.SectionHospitalStay,
	"procedures":            domain.SectionProcedures,
	"complications":         domain.SectionComplications,
	"medications":           domain.SectionMedications,
	"discharge medications": domain.SectionMedications,
	"disposition":           domain.SectionDisposition,
	"discharge disposition": domain.SectionDisposition,
	"follow-up":             domain.SectionFollowUp,
	"follow up":             domain.SectionFollowUp,
}

// parseSections splits raw narrative text into sections by "Heading:"
// lines. Text before the first recognized heading lands in history.
func parseSections(raw string) map[domain.NarrativeSection]string {
	sections := make(map[domain.NarrativeSection]string)
	current := domain.SectionHistory
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			if existing := sections[current]; existing != "" {
				text = existing + " " + text
			}
			sections[current] = text
		}
		buf.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if heading, rest, ok := matchHeading(trimmed); ok {
			flush()
			current = heading
			buf.WriteString(rest)
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(trimmed)
	}
	flush()

	return sections
}

// matchHeading reports whether a line starts with a recognized heading.
func matchHeading(line string) (domain.NarrativeSection, string, bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	heading := strings.ToLower(strings.TrimSpace(line[:idx]))
	if section, ok := sectionHeadings[heading]; ok {
		return section, strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}

// flattenSections joins section texts in the fixed section order.
func flattenSections(sections map[domain.NarrativeSection]string) string {
	order := []domain.NarrativeSection{
		domain.SectionHistory,
		domain.SectionHospitalStay,
		domain.SectionProcedures,
		domain.SectionComplications,
		domain.SectionMedications,
		domain.SectionDisposition,
		domain.SectionFollowUp,
	}
	parts := make([]string, 0, len(order))
	for _, section := range order {
		if text := strings.TrimSpace(sections[section]); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
