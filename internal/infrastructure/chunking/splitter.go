package chunking

import (
	"strings"
	"unicode/utf8"
)

// Splitter packs paragraphs into chunks of at most ChunkSize runes.
// Paragraphs longer than ChunkSize are cut into overlapping windows.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	out := make([]string, 0, len(paragraphs))
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen > 0 {
			out = append(out, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, p := range paragraphs {
		pLen := utf8.RuneCountInString(p)
		if pLen > s.ChunkSize {
			flush()
			out = append(out, s.window(p)...)
			continue
		}
		if currentLen > 0 && currentLen+1+pLen > s.ChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(p)
		currentLen += pLen
	}
	flush()
	return out
}

func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(text, "\n\n")
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Fields(strings.ReplaceAll(block, "\n", " "))
		if len(lines) == 0 {
			continue
		}
		out = append(out, strings.Join(lines, " "))
	}
	return out
}
