package tokens

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE vocabulary used to count prompt tokens.
const DefaultEncoding = "cl100k_base"

type encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// Counter counts tokens with a tiktoken encoding. When the encoding cannot be
// loaded it falls back to the rune heuristic of Estimator.
type Counter struct {
	enc      encoder
	fallback *Estimator
}

// NewCounter loads the named encoding. An empty name selects the heuristic directly.
// tiktoken fetches the vocabulary on first use and caches it under TIKTOKEN_CACHE_DIR.
func NewCounter(encoding string, logger *slog.Logger) *Counter {
	c := &Counter{fallback: NewEstimator()}
	if encoding == "" {
		return c
	}
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("token_encoding_unavailable", "encoding", encoding, "error", err)
		return c
	}
	c.enc = enc
	return c
}

// Exact reports whether counts come from the tokenizer rather than the heuristic.
func (c *Counter) Exact() bool {
	return c.enc != nil
}

func (c *Counter) Estimate(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if c.enc == nil {
		return c.fallback.Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil)) + specialTokens
}
