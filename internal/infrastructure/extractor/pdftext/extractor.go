// Package pdftext extracts prose and tables from PDF files using page geometry.
package pdftext

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/infrastructure/extractor/layout"
)

var _ ports.ContentExtractor = (*Extractor)(nil)

// Extractor reads PDFs page by page. Tables are detected from row geometry,
// so the extractor serves table mode natively.
type Extractor struct {
	chunker ports.Chunker
}

func NewExtractor(chunker ports.Chunker) *Extractor {
	return &Extractor{chunker: chunker}
}

func (e *Extractor) Capabilities() domain.ExtractorCapabilities {
	return domain.ExtractorCapabilities{NativeTables: true}
}

func (e *Extractor) Extract(ctx context.Context, path string, mode domain.ExtractMode) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		stopped := false
		emit := func(f domain.Fragment, err error) bool {
			if stopped {
				return false
			}
			if !yield(f, err) {
				stopped = true
			}
			return !stopped
		}
		defer func() {
			if r := recover(); r != nil {
				emit(domain.Fragment{}, domain.WrapError(domain.ErrExtraction, "read pdf", fmt.Errorf("malformed document: %v", r)))
			}
		}()

		f, reader, err := pdf.Open(path)
		if err != nil {
			emit(domain.Fragment{}, domain.WrapError(domain.ErrExtraction, "open pdf", err))
			return
		}
		defer f.Close()

		source := filepath.Base(path)
		for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
			if err := ctx.Err(); err != nil {
				emit(domain.Fragment{}, err)
				return
			}
			page := reader.Page(pageIndex)
			if page.V.IsNull() {
				continue
			}
			blocks, err := pageBlocks(page)
			if err != nil {
				emit(domain.Fragment{}, domain.WrapError(domain.ErrExtraction, "read pdf page "+strconv.Itoa(pageIndex), err))
				return
			}
			meta := map[string]string{
				domain.MetaSource: source,
				domain.MetaPage:   strconv.Itoa(pageIndex),
			}
			for _, frag := range e.fragments(blocks, mode, meta) {
				if !emit(frag, nil) {
					return
				}
			}
		}
	}
}

func (e *Extractor) fragments(blocks []layout.Block, mode domain.ExtractMode, meta map[string]string) []domain.Fragment {
	if mode == domain.ExtractTables {
		return layout.TableFragments(blocks, meta)
	}
	return layout.TextFragments(blocks, e.chunker.Split, meta)
}

func pageBlocks(page pdf.Page) ([]layout.Block, error) {
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
		lines := make([]layout.Line, 0, len(rows))
		for _, row := range rows {
			glyphs := make([]layout.Glyph, 0, len(row.Content))
			for _, t := range row.Content {
				glyphs = append(glyphs, layout.Glyph{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
			}
			lines = append(lines, layout.LineFromGlyphs(glyphs))
		}
		return layout.Group(lines), nil
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, fmt.Errorf("plain text: %w", err)
	}
	raw := strings.Split(text, "\n")
	lines := make([]layout.Line, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, layout.LineFromText(l))
	}
	return layout.Group(lines), nil
}
