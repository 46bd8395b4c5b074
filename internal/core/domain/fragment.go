package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

type FragmentKind string

const (
	KindText  FragmentKind = "text"
	KindTable FragmentKind = "table"
)

// Metadata keys set by extractors and the table strategy.
const (
	MetaSource  = "source"
	MetaPage    = "page"
	MetaSubtype = "subtype"
	MetaNote    = "note"

	SubtypeTable    = "table"
	NoteConvertedJS = "converted_to_json"
)

// Fragment is an indexable unit of content. ID is set once the fragment is prepared.
type Fragment struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Kind     FragmentKind      `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (f Fragment) Source() string {
	return f.Metadata[MetaSource]
}

// IsTableCandidate reports whether a text-stream fragment was tagged as tabular by its extractor.
func (f Fragment) IsTableCandidate() bool {
	return f.Metadata[MetaSubtype] == SubtypeTable
}

// WithMeta returns a copy of f with key set to value.
func (f Fragment) WithMeta(key, value string) Fragment {
	meta := make(map[string]string, len(f.Metadata)+1)
	for k, v := range f.Metadata {
		meta[k] = v
	}
	meta[key] = value
	f.Metadata = meta
	return f
}

// Fingerprint is the hex SHA-256 digest used both for fragment IDs and file ledger entries.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func FingerprintString(s string) string {
	return Fingerprint([]byte(s))
}
