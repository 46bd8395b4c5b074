package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNamespaceNotFound = errors.New("namespace not found")
	ErrIndexNotFound     = errors.New("index not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")

	// ErrExtraction reports an unreadable or non-PDF source file.
	ErrExtraction = errors.New("extraction failed")
	// ErrNoDocuments reports a first ingest that produced no fragments.
	ErrNoDocuments = errors.New("no fragments available to build the index")
	// ErrIndexCorruption is logged and self-healed by the index store, never returned to callers.
	ErrIndexCorruption = errors.New("index corrupted")
	// ErrAnswerGeneration wraps any failure of the language model call.
	ErrAnswerGeneration = errors.New("answer generation failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
