package layout

import "testing"

func TestLineFromGlyphsSplitsWideGaps(t *testing.T) {
	line := LineFromGlyphs([]Glyph{
		{X: 120, W: 20, FontSize: 10, S: "1.200"},
		{X: 10, W: 30, FontSize: 10, S: "Receita"},
		{X: 43, W: 20, FontSize: 10, S: "bruta"},
	})
	if len(line.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %q", line.Cells)
	}
	if line.Cells[0] != "Receita bruta" || line.Cells[1] != "1.200" {
		t.Fatalf("unexpected cells: %q", line.Cells)
	}
}

func TestLineFromTextSplitsAlignedColumns(t *testing.T) {
	line := LineFromText("Loja   Vendas\tMargem")
	if len(line.Cells) != 3 || line.Cells[2] != "Margem" {
		t.Fatalf("unexpected cells: %q", line.Cells)
	}
	if LineFromText("Uma frase comum com espaços simples").Tabular() {
		t.Fatalf("single-spaced prose must not be tabular")
	}
}

func TestGroupSeparatesTablesFromProse(t *testing.T) {
	lines := []Line{
		{Cells: []string{"Resumo do trimestre."}},
		{Cells: []string{"Loja", "Vendas"}},
		{Cells: []string{"A", "10"}},
		{Cells: []string{"B", "12"}},
		{Cells: []string{"Fim", "do relatório"}},
		{},
		{Cells: []string{"Assinado."}},
	}
	blocks := Group(lines)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Table || !blocks[1].Table || blocks[2].Table {
		t.Fatalf("unexpected block kinds: %+v", blocks)
	}
	if got := blocks[1].Text(); got != "Loja\tVendas\nA\t10\nB\t12\nFim\tdo relatório" {
		t.Fatalf("unexpected table text: %q", got)
	}
}

func TestGroupTreatsLoneTabularLineAsProse(t *testing.T) {
	blocks := Group([]Line{
		{Cells: []string{"Título"}},
		{Cells: []string{"Data:", "01/02"}},
		{Cells: []string{"Texto."}},
	})
	if len(blocks) != 1 || blocks[0].Table {
		t.Fatalf("expected one prose block, got %+v", blocks)
	}
	if got := blocks[0].Text(); got != "Título\nData: 01/02\nTexto." {
		t.Fatalf("unexpected prose text: %q", got)
	}
}
