package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

// tableStrategy turns the text stream of one document into text fragments followed
// by table fragments. The strategy is picked once, from the extractor capabilities.
type tableStrategy interface {
	name() string
	split(ctx context.Context, extractor ports.ContentExtractor, path string, text []domain.Fragment) (kept, tables []domain.Fragment, err error)
}

func newTableStrategy(caps domain.ExtractorCapabilities) tableStrategy {
	if caps.NativeTables {
		return nativeTables{}
	}
	return reparseTables{}
}

// nativeTables asks the extractor for its own table pass. Table-tagged text fragments
// are left out of the text stream, the table pass owns them.
type nativeTables struct{}

func (nativeTables) name() string { return "native" }

func (nativeTables) split(ctx context.Context, extractor ports.ContentExtractor, path string, text []domain.Fragment) ([]domain.Fragment, []domain.Fragment, error) {
	kept := make([]domain.Fragment, 0, len(text))
	for _, f := range text {
		if !f.IsTableCandidate() {
			kept = append(kept, f)
		}
	}
	tables, err := collect(extractor.Extract(ctx, path, domain.ExtractTables))
	if err != nil {
		return nil, nil, fmt.Errorf("extract tables: %w", err)
	}
	return kept, tables, nil
}

// reparseTables reads table-tagged text fragments as delimited text and converts the
// rows to JSON records. Fragments that do not parse stay in the text stream.
type reparseTables struct{}

func (reparseTables) name() string { return "reparse" }

func (reparseTables) split(_ context.Context, _ ports.ContentExtractor, _ string, text []domain.Fragment) ([]domain.Fragment, []domain.Fragment, error) {
	kept := make([]domain.Fragment, 0, len(text))
	var tables []domain.Fragment
	for _, f := range text {
		if !f.IsTableCandidate() {
			kept = append(kept, f)
			continue
		}
		rows, ok := parseDelimited(f.Content)
		if !ok {
			kept = append(kept, f)
			continue
		}
		records, ok := domain.TableRecordsJSON(rows)
		if !ok {
			kept = append(kept, f)
			continue
		}
		table := f.WithMeta(domain.MetaNote, domain.NoteConvertedJS)
		table.Content = records
		table.Kind = domain.KindTable
		tables = append(tables, table)
	}
	return kept, tables, nil
}

var tableDelimiters = []rune{'\t', ';', ',', '|'}

// parseDelimited tries each delimiter and keeps the first one that yields at least two
// rows with more than one column.
func parseDelimited(content string) ([][]string, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}
	for _, delim := range tableDelimiters {
		if !strings.ContainsRune(content, delim) {
			continue
		}
		r := csv.NewReader(strings.NewReader(content))
		r.Comma = delim
		r.LazyQuotes = true
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true

		var rows [][]string
		for {
			rec, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				rows = nil
				break
			}
			rows = append(rows, rec)
		}
		if len(rows) >= 2 && len(rows[0]) > 1 {
			return rows, true
		}
	}
	return nil, false
}
