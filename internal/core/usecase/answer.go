package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/observability/logging"
)

// InsufficientAnswer is the only reply allowed when the context does not support an answer.
const InsufficientAnswer = "Não encontrei informações suficientes no documento."

// SystemContract constrains every model call made by the answerer.
const SystemContract = `Você é um assistente jurídico especializado.
Analise cuidadosamente o contexto e responda de forma objetiva, usando apenas as informações do contexto.
Resposta sempre em Português Brasil. Não responda em inglês.
Responda sempre com uma formatação de texto única, com separação e espaços corretos entre as palavras.
Se o contexto não sustentar a resposta, responda exatamente: "` + InsufficientAnswer + `"`

const promptTemplate = `<context>
%s
</context>

Pergunta: %s

Resposta:`

type AnswerOptions struct {
	FetchK      int
	TopK        int
	Lambda      float64
	TokenLimit  int
	Temperature float64
	MaxTokens   int
}

func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{
		FetchK:      100,
		TopK:        20,
		Lambda:      0.8,
		TokenLimit:  7000,
		Temperature: 0.1,
		MaxTokens:   1000,
	}
}

func (o AnswerOptions) withDefaults() AnswerOptions {
	def := DefaultAnswerOptions()
	if o.FetchK <= 0 {
		o.FetchK = def.FetchK
	}
	if o.TopK <= 0 {
		o.TopK = def.TopK
	}
	if o.TopK > o.FetchK {
		o.FetchK = o.TopK
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		o.Lambda = def.Lambda
	}
	if o.TokenLimit <= 0 {
		o.TokenLimit = def.TokenLimit
	}
	if o.Temperature < 0 {
		o.Temperature = def.Temperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = def.MaxTokens
	}
	return o
}

// AnswererFactory binds index snapshots to the question-answering contract.
type AnswererFactory struct {
	store    ports.IndexStore
	embedder ports.Embedder
	chat     ports.ChatModel
	tokens   ports.TokenEstimator
	opts     AnswerOptions
	logger   *slog.Logger
}

func NewAnswererFactory(
	store ports.IndexStore,
	embedder ports.Embedder,
	chat ports.ChatModel,
	tokens ports.TokenEstimator,
	opts AnswerOptions,
	logger *slog.Logger,
) *AnswererFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswererFactory{
		store:    store,
		embedder: embedder,
		chat:     chat,
		tokens:   tokens,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Bind returns an answerer over a fixed snapshot. Later ingests do not affect it.
func (f *AnswererFactory) Bind(index ports.VectorIndex) *RAGAnswerer {
	return &RAGAnswerer{
		index:    index,
		embedder: f.embedder,
		chat:     f.chat,
		tokens:   f.tokens,
		opts:     f.opts,
		logger:   f.logger,
	}
}

// Open loads the persisted index of namespace and binds it.
func (f *AnswererFactory) Open(ctx context.Context, namespace string) (ports.Answerer, error) {
	index, ok, err := f.store.LoadOrInit(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if !ok {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "open answerer", fmt.Errorf("namespace %q has no index yet", namespace))
	}
	return f.Bind(index), nil
}

type RAGAnswerer struct {
	index    ports.VectorIndex
	embedder ports.Embedder
	chat     ports.ChatModel
	tokens   ports.TokenEstimator
	opts     AnswerOptions
	logger   *slog.Logger
}

func (a *RAGAnswerer) Namespace() string {
	return a.index.Namespace()
}

func (a *RAGAnswerer) Answer(ctx context.Context, question string) (*domain.AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is required"))
	}

	ctx = logging.WithAttrs(ctx, "namespace", a.Namespace())
	queryVector, err := a.embedder.EmbedQuery(ctx, QueryMarker+question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := a.index.Search(ctx, queryVector, a.opts.FetchK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	selected := selectMMR(candidates, a.opts.TopK, a.opts.Lambda)

	prompt := RenderPrompt(selected, question)
	promptTokens := a.tokens.Estimate(SystemContract + "\n" + prompt)
	oversized := promptTokens > a.opts.TokenLimit
	if oversized {
		a.logger.Warn("prompt_oversize",
			"namespace", a.Namespace(),
			"estimated_tokens", promptTokens,
			"limit", a.opts.TokenLimit,
		)
	}

	raw, err := a.chat.Complete(ctx, ports.ChatRequest{
		System:      SystemContract,
		Prompt:      prompt,
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrAnswerGeneration, "generate answer", err)
	}

	return &domain.AnswerResult{
		Namespace:    a.Namespace(),
		Text:         FormatAnswer(raw),
		Sources:      toRetrieved(selected),
		PromptTokens: promptTokens,
		Oversized:    oversized,
	}, nil
}

// RenderPrompt renders the user turn. Passage markers are removed from the context.
func RenderPrompt(fragments []domain.ScoredFragment, question string) string {
	var b strings.Builder
	for i, f := range fragments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] fonte=%s", i+1, f.Fragment.Source())
		if page := f.Fragment.Metadata[domain.MetaPage]; page != "" {
			fmt.Fprintf(&b, " página=%s", page)
		}
		if f.Fragment.Kind == domain.KindTable {
			b.WriteString(" tipo=tabela")
		}
		b.WriteString("\n")
		b.WriteString(stripMarker(f.Fragment.Content))
	}
	return fmt.Sprintf(promptTemplate, b.String(), question)
}

// FormatAnswer trims the model output and replaces every blank-line pair with one line break.
func FormatAnswer(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "\n\n", "\n")
}

func toRetrieved(selected []domain.ScoredFragment) []domain.RetrievedFragment {
	out := make([]domain.RetrievedFragment, 0, len(selected))
	for _, s := range selected {
		out = append(out, domain.RetrievedFragment{
			ID:      s.Fragment.ID,
			Source:  s.Fragment.Source(),
			Page:    s.Fragment.Metadata[domain.MetaPage],
			Kind:    string(s.Fragment.Kind),
			Content: stripMarker(s.Fragment.Content),
			Score:   s.Score,
		})
	}
	return out
}
