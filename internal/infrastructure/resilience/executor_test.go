package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/observability/logging"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestDefaultConfigDoesNotRetry(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt by default, got %d", attempts)
	}
}

func TestGenerationPolicyKeepsAnswersSingleAttempt(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
		Operations:          GenerationPolicy(1),
	})
	retryable := func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	errTemp := errors.New("temporary")

	chatCalls := 0
	_ = exec.Execute(context.Background(), OpOllamaChat, func(context.Context) error {
		chatCalls++
		return errTemp
	}, retryable)
	if chatCalls != 1 {
		t.Fatalf("generation ran %d times, want 1", chatCalls)
	}

	embedCalls := 0
	_ = exec.Execute(context.Background(), OpOllamaEmbed, func(context.Context) error {
		embedCalls++
		return errTemp
	}, retryable)
	if embedCalls != 3 {
		t.Fatalf("embedding ran %d times, want 3", embedCalls)
	}
}

func TestOperationOpenTimeoutOverride(t *testing.T) {
	cfg := Config{
		BreakerOpenTimeout: time.Minute,
		Operations:         map[string]OperationPolicy{OpNATSPublish: {BreakerOpenTimeout: time.Second}},
	}.normalize()
	if got := cfg.openTimeout(OpNATSPublish); got != time.Second {
		t.Fatalf("publish open timeout = %v", got)
	}
	if got := cfg.openTimeout(OpGeminiEmbed); got != time.Minute {
		t.Fatalf("embed open timeout = %v", got)
	}
}

func TestRetryEventCarriesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
		Logger:              slog.New(slog.NewJSONHandler(&buf, nil)),
	})

	ctx := logging.WithAttrs(context.Background(), "namespace", "farmacia")
	attempts := 0
	err := exec.Execute(ctx, OpOllamaEmbed, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("connection reset")
		}
		return nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one retry event, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "retry_attempt" || entry["namespace"] != "farmacia" || entry["operation"] != OpOllamaEmbed {
		t.Fatalf("unexpected retry event %v", entry)
	}
}

func TestDefaultClassifierSkipsRejectedInput(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.5,
		BreakerHalfOpenMaxCalls: 1,
	})
	rejected := domain.WrapError(domain.ErrInvalidInput, "embed", errors.New("empty batch"))
	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error { return rejected }, nil)
		if IsCircuitOpen(err) {
			t.Fatalf("rejected input opened the breaker on call %d", i)
		}
	}
}
