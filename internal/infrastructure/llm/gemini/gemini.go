// Package gemini adapts the Google Gemini API to the chat and embedding ports.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/infrastructure/resilience"
)

var (
	_ ports.ChatModel = (*Client)(nil)
	_ ports.Embedder  = (*Client)(nil)
)

const (
	DefaultChatModel  = "gemini-1.5-flash"
	DefaultEmbedModel = "gemini-embedding-001"
)

type Config struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type Client struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	executor   *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{client: cl, chatModel: cfg.ChatModel, embedModel: cfg.EmbedModel, executor: executor}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	m := c.client.GenerativeModel(c.chatModel)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	m.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	var resp *genai.GenerateContentResponse
	err := c.executor.Execute(ctx, resilience.OpGeminiGenerate, func(ctx context.Context) error {
		out, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
		if err != nil {
			return fmt.Errorf("gemini generate: %w", err)
		}
		resp = out
		return nil
	}, resilience.ClassifyProviderError)
	if err != nil {
		return "", resilience.WrapTemporary("gemini generate", err)
	}
	return candidateText(resp), nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := c.client.EmbeddingModel(c.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	var out [][]float32
	err := c.executor.Execute(ctx, resilience.OpGeminiEmbed, func(ctx context.Context) error {
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return fmt.Errorf("gemini batch embed: %w", err)
		}
		out = make([][]float32, 0, len(resp.Embeddings))
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
		return nil
	}, resilience.ClassifyProviderError)
	if err != nil {
		return nil, resilience.WrapTemporary("gemini embed", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("gemini embed: %d vectors for %d inputs", len(out), len(texts))
	}
	return out, nil
}

// EmbedQuery embeds a single text. Gemini rejects empty content, so an empty
// dimension check is sent as a single space.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		text = " "
	}
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
