// Package inproc broadcasts index events inside one process when no broker is configured.
package inproc

import (
	"context"
	"sync"

	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.IndexEvents = (*Events)(nil)

type Events struct {
	mu       sync.RWMutex
	handlers []func(context.Context, string)
}

func NewEvents() *Events {
	return &Events{}
}

func (e *Events) PublishIndexUpdated(ctx context.Context, namespace string) error {
	e.mu.RLock()
	handlers := append([]func(context.Context, string){}, e.handlers...)
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, namespace)
	}
	return nil
}

// SubscribeIndexUpdated registers handler and blocks until ctx is done.
func (e *Events) SubscribeIndexUpdated(ctx context.Context, handler func(context.Context, string)) error {
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	idx := len(e.handlers) - 1
	e.mu.Unlock()

	<-ctx.Done()

	e.mu.Lock()
	e.handlers[idx] = func(context.Context, string) {}
	e.mu.Unlock()
	return nil
}
