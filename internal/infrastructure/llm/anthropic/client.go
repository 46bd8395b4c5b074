// Package anthropic is the chat model adapter for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/infrastructure/resilience"
)

var _ ports.ChatModel = (*Client)(nil)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-20250514"
	DefaultTimeout = 120 * time.Second

	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 1000
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	executor   *resilience.Executor
}

type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func New(cfg Config, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		executor:   executor,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		Messages:    []messagesMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var text string
	err = c.executor.Execute(ctx, resilience.OpAnthropicMessages, func(ctx context.Context) error {
		out, err := c.send(ctx, body)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, resilience.ClassifyProviderError)
	if err != nil {
		return "", resilience.WrapTemporary("anthropic messages", err)
	}
	return text, nil
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result messagesResponse
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && result.Error != nil {
			msg = result.Error.Type + ": " + result.Error.Message
		}
		return "", &resilience.HTTPStatusError{
			Provider:   "anthropic",
			Operation:  "messages",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       msg,
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if result.Error != nil {
		return "", fmt.Errorf("anthropic error: %s: %s", result.Error.Type, result.Error.Message)
	}

	var b strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" || block.Type == "" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: empty response content")
	}
	return b.String(), nil
}
