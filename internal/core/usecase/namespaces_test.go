package usecase

import (
	"context"
	"testing"

	"github.com/mewerton/universal-system/internal/core/domain"
)

func TestNamespaceCatalogListAndResolve(t *testing.T) {
	store := newStoreFake()
	store.indexes["farmacia"] = &indexFake{namespace: "farmacia", fragments: []domain.Fragment{{ID: "1"}}}
	store.ledgers["farmacia"] = []string{"h1"}
	c := NewNamespaceCatalog([]domain.Namespace{{ID: "farmacia", Title: "Farmácia"}, {ID: "turismo", Title: "Turismo"}}, store)

	list, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "farmacia" || !list[0].Index.Exists || list[0].Index.Files != 1 {
		t.Fatalf("unexpected summaries: %+v", list)
	}
	if list[1].Index.Exists {
		t.Fatalf("turismo has no index yet")
	}

	if ns, err := c.Resolve("turismo"); err != nil || ns.Title != "Turismo" {
		t.Fatalf("resolve: %+v err=%v", ns, err)
	}
	if _, err := c.Resolve("cassino"); !domain.IsKind(err, domain.ErrNamespaceNotFound) {
		t.Fatalf("expected ErrNamespaceNotFound, got %v", err)
	}
}
