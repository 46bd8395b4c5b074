package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/observability/logging"
)

func newTestAnswerer(ix *indexFake, emb *embedderFake, chat *chatFake, opts AnswerOptions, logger *slog.Logger) *RAGAnswerer {
	return NewAnswererFactory(newStoreFake(), emb, chat, wordTokens{}, opts, logger).Bind(ix)
}

func unrelatedIndex() *indexFake {
	frag := domain.Fragment{
		ID:       "f1",
		Content:  "passage: horário de funcionamento das lojas",
		Kind:     domain.KindText,
		Metadata: map[string]string{domain.MetaSource: "manual.pdf", domain.MetaPage: "3"},
	}
	return &indexFake{
		namespace:  "supermercado",
		fragments:  []domain.Fragment{frag},
		candidates: []domain.ScoredFragment{{Fragment: frag, Vector: []float32{1, 0}, Score: 0.4}},
	}
}

func TestAnswerFallsBackToCanonicalSentence(t *testing.T) {
	chat := &chatFake{keyword: "multa contratual", reply: "A multa é de 2%."}
	a := newTestAnswerer(unrelatedIndex(), &embedderFake{}, chat, AnswerOptions{}, nil)

	res, err := a.Answer(context.Background(), "Qual é a multa contratual?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Text != InsufficientAnswer {
		t.Fatalf("expected canonical sentence, got %q", res.Text)
	}
	if len(chat.requests) != 1 {
		t.Fatalf("expected one model call, got %d", len(chat.requests))
	}
	req := chat.requests[0]
	if !strings.Contains(req.System, InsufficientAnswer) {
		t.Fatalf("system contract must carry the canonical sentence")
	}
	if req.Temperature != 0.1 || req.MaxTokens != 1000 {
		t.Fatalf("unexpected model settings: %+v", req)
	}
	if strings.Contains(req.Prompt, PassageMarker) {
		t.Fatalf("passage marker leaked into the prompt: %s", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "fonte=manual.pdf página=3") || !strings.Contains(req.Prompt, "Pergunta: Qual é a multa contratual?") {
		t.Fatalf("unexpected prompt: %s", req.Prompt)
	}
}

func TestAnswerUsesQueryMarkerAndRetrievalBudget(t *testing.T) {
	ix := unrelatedIndex()
	emb := &embedderFake{}
	chat := &chatFake{reply: "ok"}
	a := newTestAnswerer(ix, emb, chat, AnswerOptions{FetchK: 50, TopK: 5}, nil)

	res, err := a.Answer(context.Background(), "  horário?  ")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(emb.queries) != 1 || emb.queries[0] != QueryMarker+"horário?" {
		t.Fatalf("unexpected query embedding input: %v", emb.queries)
	}
	if ix.lastK != 50 {
		t.Fatalf("expected fetch of 50 candidates, got %d", ix.lastK)
	}
	if len(res.Sources) != 1 || res.Sources[0].Source != "manual.pdf" || strings.HasPrefix(res.Sources[0].Content, PassageMarker) {
		t.Fatalf("unexpected sources: %+v", res.Sources)
	}
}

func TestAnswerTagsProviderCallsWithNamespace(t *testing.T) {
	emb := &embedderFake{}
	a := newTestAnswerer(unrelatedIndex(), emb, &chatFake{reply: "ok"}, AnswerOptions{}, nil)

	if _, err := a.Answer(context.Background(), "horário?"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	attrs := logging.Attrs(emb.queryCtx)
	if len(attrs) != 2 || attrs[0] != "namespace" || attrs[1] != "supermercado" {
		t.Fatalf("query embedding context attrs = %v", attrs)
	}
}

func TestAnswerFormatsModelOutput(t *testing.T) {
	chat := &chatFake{reply: "\n\n  Primeiro ponto.\n\nSegundo ponto.\n\n\n\nTerceiro.  \n"}
	a := newTestAnswerer(unrelatedIndex(), &embedderFake{}, chat, AnswerOptions{}, nil)

	res, err := a.Answer(context.Background(), "resuma")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	want := "Primeiro ponto.\nSegundo ponto.\n\nTerceiro."
	if res.Text != want {
		t.Fatalf("got %q, want %q", res.Text, want)
	}
}

func TestAnswerWarnsOnOversizedPrompt(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	chat := &chatFake{reply: "ok"}
	a := newTestAnswerer(unrelatedIndex(), &embedderFake{}, chat, AnswerOptions{TokenLimit: 5}, logger)

	res, err := a.Answer(context.Background(), "qual o horário de funcionamento?")
	if err != nil {
		t.Fatalf("oversized prompt must not fail: %v", err)
	}
	if !res.Oversized || res.PromptTokens <= 5 {
		t.Fatalf("expected oversize flag, got %+v", res)
	}
	if !strings.Contains(logs.String(), "prompt_oversize") {
		t.Fatalf("expected warning log, got %s", logs.String())
	}
	if len(chat.requests) != 1 {
		t.Fatalf("model call must proceed")
	}
}

func TestAnswerWrapsModelFailureWithoutRetry(t *testing.T) {
	chat := &chatFake{err: errors.New("429 rate limited")}
	a := newTestAnswerer(unrelatedIndex(), &embedderFake{}, chat, AnswerOptions{}, nil)

	_, err := a.Answer(context.Background(), "pergunta")
	if !domain.IsKind(err, domain.ErrAnswerGeneration) {
		t.Fatalf("expected ErrAnswerGeneration, got %v", err)
	}
	if len(chat.requests) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(chat.requests))
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	chat := &chatFake{}
	a := newTestAnswerer(unrelatedIndex(), &embedderFake{}, chat, AnswerOptions{}, nil)
	if _, err := a.Answer(context.Background(), "   "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(chat.requests) != 0 {
		t.Fatalf("model must not be called")
	}
}

func TestFactoryOpenRequiresIndex(t *testing.T) {
	store := newStoreFake()
	f := NewAnswererFactory(store, &embedderFake{}, &chatFake{}, wordTokens{}, AnswerOptions{}, nil)
	if _, err := f.Open(context.Background(), "turismo"); !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}

	store.indexes["turismo"] = &indexFake{namespace: "turismo"}
	a, err := f.Open(context.Background(), "turismo")
	if err != nil || a.Namespace() != "turismo" {
		t.Fatalf("open: a=%v err=%v", a, err)
	}
}
