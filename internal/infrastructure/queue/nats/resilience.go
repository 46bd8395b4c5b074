package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/mewerton/universal-system/internal/infrastructure/resilience"
)

// classifyNATSError retries publishes that failed while the connection was down or slow.
func classifyNATSError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapPublishError(err error) error {
	return resilience.WrapTemporaryWith("nats publish", err, classifyNATSError)
}
