// Package xlsx renders table fragments as a spreadsheet, one sheet per table.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.TableWorkbookWriter = (*Writer)(nil)

const (
	defaultSheet = "Sheet1"
	// Row 1 holds provenance; the table header starts on row 3.
	headerRow = 3
)

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func SheetName(i int) string {
	return fmt.Sprintf("Tabela %d", i+1)
}

// WriteTables writes every fragment whose content parses as table records.
// Unparseable fragments are skipped; an empty workbook carries a single blank sheet.
func (w *Writer) WriteTables(out io.Writer, tables []domain.Fragment) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	written := 0
	for _, frag := range tables {
		header, rows, ok := domain.ParseTableRecords(frag.Content)
		if !ok {
			continue
		}
		name := SheetName(written)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, frag, header, rows, bold); err != nil {
			return err
		}
		written++
	}

	if written > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("delete default sheet: %w", err)
		}
		f.SetActiveSheet(0)
	}
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, frag domain.Fragment, header []string, rows [][]string, headerStyle int) error {
	provenance := []any{"fonte", frag.Source(), "página", frag.Metadata[domain.MetaPage]}
	if err := f.SetSheetRow(sheet, "A1", &provenance); err != nil {
		return fmt.Errorf("write provenance: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, headerRow)
	if err != nil {
		return err
	}
	headerCells := toCells(header)
	if err := f.SetSheetRow(sheet, cell, &headerCells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), headerRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell, last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return err
		}
		values := toCells(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
