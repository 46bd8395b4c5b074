// Package plaintext extracts text through docconv. It has no table mode:
// aligned column runs are only tagged so the caller can reparse them.
package plaintext

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/infrastructure/extractor/layout"
)

var _ ports.ContentExtractor = (*Extractor)(nil)

const pdfMimeType = "application/pdf"

type Extractor struct {
	chunker ports.Chunker
}

func NewExtractor(chunker ports.Chunker) *Extractor {
	return &Extractor{chunker: chunker}
}

func (e *Extractor) Capabilities() domain.ExtractorCapabilities {
	return domain.ExtractorCapabilities{NativeTables: false}
}

func (e *Extractor) Extract(ctx context.Context, path string, mode domain.ExtractMode) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		if mode == domain.ExtractTables {
			yield(domain.Fragment{}, domain.WrapError(domain.ErrInvalidInput, "extract tables", errors.New("docconv extractor has no table mode")))
			return
		}

		body, err := convert(path)
		if err != nil {
			yield(domain.Fragment{}, domain.WrapError(domain.ErrExtraction, "convert pdf", err))
			return
		}

		if err := ctx.Err(); err != nil {
			yield(domain.Fragment{}, err)
			return
		}
		for _, frag := range bodyFragments(body, filepath.Base(path), e.chunker.Split) {
			if !yield(frag, nil) {
				return
			}
		}
	}
}

// bodyFragments groups converter output into fragments. docconv runs pdftotext with
// -nopgbrk, so page boundaries are gone and fragments carry no page key.
func bodyFragments(body, source string, split func(string) []string) []domain.Fragment {
	rawLines := strings.Split(body, "\n")
	lines := make([]layout.Line, 0, len(rawLines))
	for _, l := range rawLines {
		lines = append(lines, layout.LineFromText(l))
	}
	meta := map[string]string{domain.MetaSource: source}
	return layout.TextFragments(layout.Group(lines), split, meta)
}

func convert(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, pdfMimeType, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}
