package usecase

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/mewerton/universal-system/internal/core/domain"
)

type workbookFake struct {
	tables []domain.Fragment
}

func (f *workbookFake) WriteTables(w io.Writer, tables []domain.Fragment) error {
	f.tables = tables
	_, err := w.Write([]byte("xlsx"))
	return err
}

func TestExportTablesWritesOnlyTables(t *testing.T) {
	store := newStoreFake()
	store.indexes["rh"] = &indexFake{namespace: "rh", fragments: []domain.Fragment{
		{ID: "1", Content: "passage: texto", Kind: domain.KindText},
		{ID: "2", Content: `passage: [{"a":"1"}]`, Kind: domain.KindTable},
	}}
	writer := &workbookFake{}
	uc := NewExportTablesUseCase(newCatalogFake("rh"), store, writer)

	var buf bytes.Buffer
	n, err := uc.ExportTables(context.Background(), "rh", &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 1 || len(writer.tables) != 1 || writer.tables[0].Content != `[{"a":"1"}]` {
		t.Fatalf("unexpected tables n=%d %+v", n, writer.tables)
	}
	if buf.String() != "xlsx" {
		t.Fatalf("workbook not written")
	}
}

func TestExportTablesMissingIndex(t *testing.T) {
	uc := NewExportTablesUseCase(newCatalogFake("rh"), newStoreFake(), &workbookFake{})
	if _, err := uc.ExportTables(context.Background(), "rh", io.Discard); !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}
