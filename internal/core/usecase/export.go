package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.TableExporter = (*ExportTablesUseCase)(nil)

type ExportTablesUseCase struct {
	catalog ports.NamespaceCatalog
	store   ports.IndexStore
	writer  ports.TableWorkbookWriter
}

func NewExportTablesUseCase(catalog ports.NamespaceCatalog, store ports.IndexStore, writer ports.TableWorkbookWriter) *ExportTablesUseCase {
	return &ExportTablesUseCase{catalog: catalog, store: store, writer: writer}
}

// ExportTables writes every table fragment of namespace to w and returns how many were written.
func (uc *ExportTablesUseCase) ExportTables(ctx context.Context, namespace string, w io.Writer) (int, error) {
	if _, err := uc.catalog.Resolve(namespace); err != nil {
		return 0, err
	}
	index, ok, err := uc.store.LoadOrInit(ctx, namespace)
	if err != nil {
		return 0, fmt.Errorf("load index: %w", err)
	}
	if !ok {
		return 0, domain.WrapError(domain.ErrIndexNotFound, "export tables", fmt.Errorf("namespace %q has no index yet", namespace))
	}

	var tables []domain.Fragment
	for f := range index.Fragments() {
		if f.Kind != domain.KindTable {
			continue
		}
		f.Content = stripMarker(f.Content)
		tables = append(tables, f)
	}
	if err := uc.writer.WriteTables(w, tables); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(tables), nil
}
