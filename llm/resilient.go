package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agentmesh/conductor/internal/metrics"
	"github.com/agentmesh/conductor/internal/retry"
	"github.com/agentmesh/conductor/types"
)

// ResilienceConfig controls the resilient provider decorator.
type ResilienceConfig struct {
	// RetryPolicy governs retries on overload errors. Nil uses
	// DefaultPolicy with model-overload classification.
	RetryPolicy *retry.Policy
	// RequestsPerSecond caps outbound completion calls. Zero disables
	// the limiter.
	RequestsPerSecond float64
	// Burst is the limiter burst size, minimum 1 when limiting.
	Burst int
}

// DefaultResilienceConfig returns the default decorator settings.
func DefaultResilienceConfig() *ResilienceConfig {
	return &ResilienceConfig{
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// ResilientProvider decorates a Provider with retry on transient
// overload and client-side rate limiting. The wrapped provider is not
// modified.
type ResilientProvider struct {
	provider  Provider
	retryer   retry.Retryer
	limiter   *rate.Limiter
	logger    *zap.Logger
	collector *metrics.Collector
}

var _ Provider = (*ResilientProvider)(nil)

// NewResilientProvider wraps provider. A nil config uses defaults; a
// nil logger disables logging; collector may be nil.
func NewResilientProvider(provider Provider, cfg *ResilienceConfig, logger *zap.Logger, collector *metrics.Collector) *ResilientProvider {
	if cfg == nil {
		cfg = DefaultResilienceConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "resilient_provider"))

	policy := cfg.RetryPolicy
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if policy.RetryableErrors == nil {
		policy.RetryableErrors = []error{
			types.NewError(types.ErrModelOverloaded, "model overloaded"),
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &ResilientProvider{
		provider:  provider,
		retryer:   retry.NewBackoffRetryer(policy, logger),
		limiter:   limiter,
		logger:    logger,
		collector: collector,
	}
}

func (p *ResilientProvider) Name() string { return p.provider.Name() }

// Complete waits for a rate limiter slot, then calls the wrapped
// provider with retry on retryable errors.
func (p *ResilientProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := retry.DoWithResultTyped(p.retryer, ctx, func() (*CompletionResponse, error) {
		return p.provider.Complete(ctx, req)
	})

	tokens := 0
	if resp != nil {
		tokens = resp.Usage.TotalTokens
	}
	p.collector.RecordModelCall(err != nil, tokens)

	if err != nil {
		p.logger.Error("completion failed",
			zap.String("provider", p.provider.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	return resp, nil
}
