package layout

import (
	"strings"

	"github.com/mewerton/universal-system/internal/core/domain"
)

// TextFragments chunks prose blocks with split and emits every table block
// as a single tab-delimited fragment tagged with the table subtype.
func TextFragments(blocks []Block, split func(string) []string, meta map[string]string) []domain.Fragment {
	var out []domain.Fragment
	var prose []string
	flush := func() {
		if len(prose) == 0 {
			return
		}
		for _, chunk := range split(strings.Join(prose, "\n\n")) {
			out = append(out, domain.Fragment{Content: chunk, Kind: domain.KindText, Metadata: copyMeta(meta)})
		}
		prose = prose[:0]
	}
	for _, block := range blocks {
		if block.Table {
			flush()
			out = append(out, domain.Fragment{
				Content:  block.Text(),
				Kind:     domain.KindText,
				Metadata: tableMeta(meta),
			})
			continue
		}
		prose = append(prose, block.Text())
	}
	flush()
	return out
}

// TableFragments emits each table block as a JSON array of records.
func TableFragments(blocks []Block, meta map[string]string) []domain.Fragment {
	var out []domain.Fragment
	for _, block := range blocks {
		if !block.Table {
			continue
		}
		rows := make([][]string, 0, len(block.Lines))
		for _, line := range block.Lines {
			rows = append(rows, line.Cells)
		}
		content, ok := domain.TableRecordsJSON(rows)
		if !ok {
			continue
		}
		out = append(out, domain.Fragment{
			Content:  content,
			Kind:     domain.KindTable,
			Metadata: tableMeta(meta),
		})
	}
	return out
}

func tableMeta(meta map[string]string) map[string]string {
	out := copyMeta(meta)
	out[domain.MetaSubtype] = domain.SubtypeTable
	return out
}

func copyMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
