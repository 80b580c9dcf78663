package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/datacendia/council/internal/guardrail"
)

// RateLimiterConfig configures the rate limiter
type RateLimiterConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	BurstSize   int           `mapstructure:"burst_size"`
	// PerAgent keeps a separate bucket for every agent name.
	PerAgent bool `mapstructure:"per_agent"`
}

// RateLimiter caps how often prompts may be sent to the model.
type RateLimiter struct {
	config RateLimiterConfig
	limit  rate.Limit

	global *rate.Limiter

	mu       sync.Mutex
	perAgent map[string]*rate.Limiter
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimiterConfig) (*RateLimiter, error) {
	if config.MaxRequests <= 0 {
		return nil, fmt.Errorf("max_requests must be positive, got %d", config.MaxRequests)
	}
	if config.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", config.Window)
	}
	if config.BurstSize == 0 {
		config.BurstSize = config.MaxRequests
	}

	rl := &RateLimiter{
		config:   config,
		limit:    rate.Limit(float64(config.MaxRequests) / config.Window.Seconds()),
		perAgent: make(map[string]*rate.Limiter),
	}
	if !config.PerAgent {
		rl.global = rate.NewLimiter(rl.limit, config.BurstSize)
	}
	return rl, nil
}

func (r *RateLimiter) Name() string {
	return "rate-limiter"
}

func (r *RateLimiter) Type() guardrail.GuardrailType {
	return guardrail.GuardrailTypeRate
}

// CheckInput consumes one token from the relevant bucket or blocks.
func (r *RateLimiter) CheckInput(ctx context.Context, input guardrail.GuardrailInput) (guardrail.GuardrailResult, error) {
	limiter := r.global
	if r.config.PerAgent {
		limiter = r.forAgent(input.AgentName)
	}

	if limiter.Allow() {
		return guardrail.NewAllowResult(), nil
	}

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	result := guardrail.NewBlockResult(
		fmt.Sprintf("rate limit exceeded: max %d requests per %s", r.config.MaxRequests, r.config.Window),
	)
	result.Metadata["retry_after_seconds"] = delay.Seconds()
	if input.AgentName != "" {
		result.Metadata["agent"] = input.AgentName
	}
	return result, nil
}

// CheckOutput always allows; only outbound prompts are limited.
func (r *RateLimiter) CheckOutput(ctx context.Context, output guardrail.GuardrailOutput) (guardrail.GuardrailResult, error) {
	return guardrail.NewAllowResult(), nil
}

func (r *RateLimiter) forAgent(name string) *rate.Limiter {
	if name == "" {
		name = "default"
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.perAgent[name]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.config.BurstSize)
		r.perAgent[name] = limiter
	}
	return limiter
}
