package usecase

import (
	"strings"

	"github.com/mewerton/universal-system/internal/core/domain"
)

// Role markers expected by the e5 embedding family.
const (
	PassageMarker = "passage: "
	QueryMarker   = "query: "
)

// PrepareFragments trims content, drops empty fragments and prefixes every fragment with
// the passage marker exactly once. The ID of a prepared fragment is the digest of its
// prepared content, so identical passages collapse to one ID across files.
func PrepareFragments(fragments []domain.Fragment) []domain.Fragment {
	out := make([]domain.Fragment, 0, len(fragments))
	for _, f := range fragments {
		content := strings.TrimSpace(stripMarker(strings.TrimSpace(f.Content)))
		if content == "" {
			continue
		}
		f.Content = PassageMarker + content
		f.ID = domain.FingerprintString(f.Content)
		if f.Kind == "" {
			f.Kind = domain.KindText
		}
		out = append(out, f)
	}
	return out
}

func stripMarker(content string) string {
	return strings.TrimPrefix(content, PassageMarker)
}
