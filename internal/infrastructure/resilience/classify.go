package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mewerton/universal-system/internal/core/domain"
)

// HTTPStatusError is a non-2xx reply from a model provider.
type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "provider status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Provider, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Provider, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// ClassifyCommon settles the cases every transport shares. ok is false when the
// caller must decide from its own error types.
//
// Cancellation and rejected input never count against the breaker. Errors
// already marked temporary are retried, so are calls refused by an open breaker.
func ClassifyCommon(err error) (ErrorClassification, bool) {
	switch {
	case err == nil:
		return ErrorClassification{}, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: false}, true
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}, true
	case domain.IsKind(err, domain.ErrInvalidInput):
		return ErrorClassification{Retryable: false, RecordFailure: false}, true
	case domain.IsKind(err, domain.ErrTemporary):
		return ErrorClassification{Retryable: true, RecordFailure: true}, true
	case domain.IsKind(err, domain.ErrAnswerGeneration):
		return ErrorClassification{Retryable: false, RecordFailure: true}, true
	}
	return ErrorClassification{}, false
}

// ClassifyProviderError decides retry and breaker accounting for model provider calls.
// 4xx replies other than 408/429 are not retried.
func ClassifyProviderError(err error) ErrorClassification {
	if class, ok := ClassifyCommon(err); ok {
		return class
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if IsRetryableHTTPStatus(statusErr.StatusCode) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return ErrorClassification{Retryable: false, RecordFailure: true}
}

// WrapTemporary marks transient provider failures with domain.ErrTemporary.
func WrapTemporary(operation string, err error) error {
	return WrapTemporaryWith(operation, err, ClassifyProviderError)
}

// WrapTemporaryWith marks err temporary when classifier deems it retryable.
func WrapTemporaryWith(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
