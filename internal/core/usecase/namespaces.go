package usecase

import (
	"context"
	"fmt"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.NamespaceCatalog = (*NamespaceCatalog)(nil)

// NamespaceCatalog is the fixed set of configured namespaces joined with their index state.
type NamespaceCatalog struct {
	namespaces []domain.Namespace
	byID       map[string]domain.Namespace
	store      ports.IndexStore
}

func NewNamespaceCatalog(namespaces []domain.Namespace, store ports.IndexStore) *NamespaceCatalog {
	byID := make(map[string]domain.Namespace, len(namespaces))
	for _, ns := range namespaces {
		byID[ns.ID] = ns
	}
	return &NamespaceCatalog{namespaces: namespaces, byID: byID, store: store}
}

func (c *NamespaceCatalog) Resolve(namespace string) (domain.Namespace, error) {
	ns, ok := c.byID[namespace]
	if !ok {
		return domain.Namespace{}, domain.WrapError(domain.ErrNamespaceNotFound, "resolve namespace", fmt.Errorf("unknown namespace %q", namespace))
	}
	return ns, nil
}

func (c *NamespaceCatalog) List(ctx context.Context) ([]domain.NamespaceSummary, error) {
	out := make([]domain.NamespaceSummary, 0, len(c.namespaces))
	for _, ns := range c.namespaces {
		stats, err := c.store.Stats(ctx, ns.ID)
		if err != nil {
			return nil, fmt.Errorf("index stats for %s: %w", ns.ID, err)
		}
		out = append(out, domain.NamespaceSummary{Namespace: ns, Index: stats})
	}
	return out, nil
}
