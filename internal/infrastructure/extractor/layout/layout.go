// Package layout groups positioned text into lines and detects tabular blocks.
package layout

import (
	"regexp"
	"sort"
	"strings"
)

// Glyph is a positioned text run on a page row.
type Glyph struct {
	X        float64
	W        float64
	FontSize float64
	S        string
}

// Line is one visual row split into cells at wide horizontal gaps.
type Line struct {
	Cells []string
}

func (l Line) Text() string {
	return strings.Join(l.Cells, " ")
}

func (l Line) Tabular() bool {
	return len(l.Cells) >= 2
}

// Block is a run of consecutive lines that are either all prose or all tabular.
type Block struct {
	Table bool
	Lines []Line
}

// Text renders prose blocks space-joined per line and tables tab-delimited.
func (b Block) Text() string {
	rows := make([]string, 0, len(b.Lines))
	for _, line := range b.Lines {
		if b.Table {
			rows = append(rows, strings.Join(line.Cells, "\t"))
			continue
		}
		rows = append(rows, line.Text())
	}
	return strings.Join(rows, "\n")
}

// gapFactor scales the font size into the minimum horizontal gap that separates cells.
const gapFactor = 1.5

// LineFromGlyphs orders glyphs left to right and cuts cells where the gap
// to the previous glyph exceeds gapFactor times the font size.
func LineFromGlyphs(glyphs []Glyph) Line {
	if len(glyphs) == 0 {
		return Line{}
	}
	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []string
	var cell strings.Builder
	prevEnd := sorted[0].X
	for i, g := range sorted {
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		gap := g.X - prevEnd
		if i > 0 && gap > size*gapFactor {
			if c := strings.TrimSpace(cell.String()); c != "" {
				cells = append(cells, c)
			}
			cell.Reset()
		} else if i > 0 && gap > size*0.2 && !strings.HasSuffix(cell.String(), " ") {
			cell.WriteByte(' ')
		}
		cell.WriteString(g.S)
		end := g.X + g.W
		if end > prevEnd {
			prevEnd = end
		}
	}
	if c := strings.TrimSpace(cell.String()); c != "" {
		cells = append(cells, c)
	}
	return Line{Cells: collapseSpaces(cells)}
}

var wideGap = regexp.MustCompile(`\t+| {2,}`)

// LineFromText splits a text line into cells at tabs or runs of two or more spaces.
func LineFromText(text string) Line {
	parts := wideGap.Split(strings.TrimSpace(text), -1)
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return Line{Cells: collapseSpaces(cells)}
}

// Group splits lines into blocks. A table needs at least two consecutive
// tabular lines; a lone tabular line is treated as prose.
func Group(lines []Line) []Block {
	var blocks []Block
	for i := 0; i < len(lines); {
		if len(lines[i].Cells) == 0 {
			i++
			continue
		}
		j := i
		for j < len(lines) && lines[j].Tabular() {
			j++
		}
		if j-i >= 2 {
			blocks = append(blocks, Block{Table: true, Lines: lines[i:j]})
			i = j
			continue
		}
		if j == i {
			j = i + 1
		}
		if n := len(blocks); n > 0 && !blocks[n-1].Table {
			blocks[n-1].Lines = append(blocks[n-1].Lines, lines[i:j]...)
		} else {
			blocks = append(blocks, Block{Lines: append([]Line(nil), lines[i:j]...)})
		}
		i = j
	}
	return blocks
}

func collapseSpaces(cells []string) []string {
	for i, c := range cells {
		cells[i] = strings.Join(strings.Fields(c), " ")
	}
	return cells
}
