package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestCandidateTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Olá, "), genai.Blob{MIMEType: "image/png"}, genai.Text("mundo")}},
		}},
	}
	if got := candidateText(resp); got != "Olá, mundo" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := candidateText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
