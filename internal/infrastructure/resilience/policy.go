package resilience

import (
	"log/slog"
	"time"
)

// Operation names keyed by the executor. Breakers and overrides are per name.
const (
	OpOllamaEmbed       = "ollama.embed"
	OpOllamaChat        = "ollama.chat"
	OpGeminiEmbed       = "gemini.embed"
	OpGeminiGenerate    = "gemini.generate"
	OpAnthropicMessages = "anthropic.messages"
	OpNATSPublish       = "nats.publish"
)

// generationOps produce answers. A retried generation doubles the latency the user waits on.
var generationOps = []string{OpOllamaChat, OpGeminiGenerate, OpAnthropicMessages}

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// Operations overrides retry and breaker settings for single operation names.
	Operations map[string]OperationPolicy

	Logger *slog.Logger
}

// OperationPolicy fields left at zero inherit the executor-wide value.
type OperationPolicy struct {
	RetryMaxAttempts   int
	BreakerOpenTimeout time.Duration
}

// DefaultConfig performs a single attempt: retrying is an operator decision.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// GenerationPolicy caps the attempts of every answer generation call.
func GenerationPolicy(maxAttempts int) map[string]OperationPolicy {
	out := make(map[string]OperationPolicy, len(generationOps))
	for _, op := range generationOps {
		out[op] = OperationPolicy{RetryMaxAttempts: maxAttempts}
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}

	return out
}

// attempts returns the retry budget for operation.
func (c Config) attempts(operation string) int {
	if p, ok := c.Operations[operation]; ok && p.RetryMaxAttempts > 0 {
		return p.RetryMaxAttempts
	}
	return c.RetryMaxAttempts
}

func (c Config) openTimeout(operation string) time.Duration {
	if p, ok := c.Operations[operation]; ok && p.BreakerOpenTimeout > 0 {
		return p.BreakerOpenTimeout
	}
	return c.BreakerOpenTimeout
}
