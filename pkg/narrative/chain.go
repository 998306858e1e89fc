package narrative

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinnote-engine/internal/domain"
)

// Chain tries an ordered list of providers sequentially, first success
// short-circuiting, and falls back to the template generator when every
// provider fails. Each provider sits behind its own circuit breaker.
// Chain implements domain.NarrativeGenerator and never returns an error
// from Generate: the template path requires no I/O.
type Chain struct {
	logger    *logrus.Logger
	providers []Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	cache     PromptCache
	template  *TemplateGenerator
}

// NewChain builds the fallback chain. cache may be nil to disable
// response caching; providers may be empty, in which case every note goes
// straight to the template.
func NewChain(logger *logrus.Logger, providers []Provider, cache PromptCache) *Chain {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, p := range providers {
		name := p.Name()
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"provider": name,
					"from":     from.String(),
					"to":       to.String(),
				}).Warn("Narrative provider circuit breaker state change")
			},
		})
	}

	return &Chain{
		logger:    logger,
		providers: providers,
		breakers:  breakers,
		cache:     cache,
		template:  NewTemplateGenerator(),
	}
}

// Generate produces a narrative for the note: cache, then each provider
// in order, then the deterministic template.
func (c *Chain) Generate(ctx context.Context, note *domain.StructuredNote) (*domain.Narrative, error) {
	prompt := BuildPrompt(note)
	key := CacheKey(prompt)

	if c.cache != nil {
		if cached, found, err := c.cache.Get(ctx, key); err == nil && found {
			c.logger.WithField("run_id", note.RunID).Debug("Narrative cache hit")
			return cached, nil
		}
	}

	for _, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			// Cancellation aborts the chain; partial results are discarded.
			return nil, err
		}

		narrative, err := c.tryProvider(ctx, provider, prompt)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"provider": provider.Name(),
				"run_id":   note.RunID,
			}).Warn("Narrative provider failed, trying next")
			continue
		}

		if c.cache != nil {
			if cacheErr := c.cache.Set(ctx, key, narrative); cacheErr != nil {
				c.logger.WithError(cacheErr).Warn("Failed to cache narrative")
			}
		}
		return narrative, nil
	}

	c.logger.WithField("run_id", note.RunID).Info("All narrative providers exhausted, using template")
	return c.template.Generate(ctx, note)
}

// tryProvider runs one provider behind its breaker.
func (c *Chain) tryProvider(ctx context.Context, provider Provider, prompt *Prompt) (*domain.Narrative, error) {
	breaker := c.breakers[provider.Name()]

	result, err := breaker.Execute(func() (interface{}, error) {
		return provider.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, providerErr(provider.Name(), ErrProviderFailure, err)
		}
		return nil, err
	}

	return result.(*domain.Narrative), nil
}
