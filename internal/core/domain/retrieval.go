package domain

// ExtractMode selects what a content extractor yields.
type ExtractMode string

const (
	ExtractText   ExtractMode = "text"
	ExtractTables ExtractMode = "tables"
)

// ExtractorCapabilities is declared by an extractor at construction time.
type ExtractorCapabilities struct {
	NativeTables bool `json:"native_tables"`
}

// ScoredFragment is a search hit from a namespace index.
type ScoredFragment struct {
	Fragment Fragment  `json:"fragment"`
	Vector   []float32 `json:"-"`
	Score    float64   `json:"score"`
}

// RetrievedFragment is a fragment selected into an answer's context.
type RetrievedFragment struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Page    string  `json:"page,omitempty"`
	Kind    string  `json:"kind"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type AnswerResult struct {
	Namespace    string              `json:"namespace"`
	Text         string              `json:"text"`
	Sources      []RetrievedFragment `json:"sources"`
	PromptTokens int                 `json:"prompt_tokens"`
	Oversized    bool                `json:"oversized"`
}
