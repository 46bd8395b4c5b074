package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

func TestGeneratorSendsSystemContractAndOptions(t *testing.T) {
	var payload struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
		Options  struct {
			Temperature float64 `json:"temperature"`
			NumPredict  int     `json:"num_predict"`
		} `json:"options"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"resposta"}}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", nil))
	out, err := gen.Complete(context.Background(), ports.ChatRequest{
		System:      "contrato",
		Prompt:      "pergunta",
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "resposta" {
		t.Fatalf("unexpected answer %q", out)
	}
	if payload.Model != "gen" || payload.Stream || len(payload.Messages) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Messages[0].Role != "system" || payload.Messages[0].Content != "contrato" || payload.Messages[1].Content != "pergunta" {
		t.Fatalf("unexpected messages: %+v", payload.Messages)
	}
	if payload.Options.Temperature != 0.1 || payload.Options.NumPredict != 1000 {
		t.Fatalf("unexpected options: %+v", payload.Options)
	}
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	vectors, err := NewEmbedder(New(server.URL, "gen", "embed", nil)).Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 3 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be marked temporary, got %v", err)
	}
}
