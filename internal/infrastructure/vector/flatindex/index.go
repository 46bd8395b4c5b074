// Package flatindex keeps one exhaustive cosine index per namespace on the local filesystem.
package flatindex

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"

	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.VectorIndex = (*Index)(nil)

// Index is an immutable snapshot. Appends return a new Index and leave the receiver untouched.
type Index struct {
	namespace string
	dim       int
	fragments []domain.Fragment
	vectors   [][]float32
	norms     []float64
	byID      map[string]int
	files     []string
}

func newIndex(namespace string, dim int) *Index {
	return &Index{
		namespace: namespace,
		dim:       dim,
		byID:      map[string]int{},
	}
}

func (ix *Index) Namespace() string { return ix.namespace }
func (ix *Index) Len() int          { return len(ix.fragments) }
func (ix *Index) Dimension() int    { return ix.dim }

// Files returns the fingerprints of source files already ingested.
func (ix *Index) Files() []string {
	return slices.Clone(ix.files)
}

func (ix *Index) HasFile(hash string) bool {
	return slices.Contains(ix.files, hash)
}

func (ix *Index) Has(id string) bool {
	_, ok := ix.byID[id]
	return ok
}

func (ix *Index) Fragments() iter.Seq[domain.Fragment] {
	return func(yield func(domain.Fragment) bool) {
		for _, f := range ix.fragments {
			if !yield(f) {
				return
			}
		}
	}
}

// Search ranks every stored vector by cosine similarity to query and returns the best k.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.dim {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search index", fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim))
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	qNorm := norm(query)

	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = hit{pos: i, score: cosine(query, qNorm, v, ix.norms[i])}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k > len(hits) {
		k = len(hits)
	}

	out := make([]domain.ScoredFragment, 0, k)
	for _, h := range hits[:k] {
		out = append(out, domain.ScoredFragment{
			Fragment: ix.fragments[h.pos],
			Vector:   ix.vectors[h.pos],
			Score:    h.score,
		})
	}
	return out, nil
}

// withFragments returns a new snapshot with the fragments appended. Callers guarantee
// that the IDs are new and the vectors match the index dimension.
func (ix *Index) withFragments(fragments []domain.Fragment, vectors [][]float32) *Index {
	next := &Index{
		namespace: ix.namespace,
		dim:       ix.dim,
		fragments: make([]domain.Fragment, 0, len(ix.fragments)+len(fragments)),
		vectors:   make([][]float32, 0, len(ix.vectors)+len(vectors)),
		norms:     make([]float64, 0, len(ix.norms)+len(vectors)),
		byID:      make(map[string]int, len(ix.byID)+len(fragments)),
		files:     ix.files,
	}
	next.fragments = append(append(next.fragments, ix.fragments...), fragments...)
	next.vectors = append(append(next.vectors, ix.vectors...), vectors...)
	next.norms = append(next.norms, ix.norms...)
	for _, v := range vectors {
		next.norms = append(next.norms, norm(v))
	}
	for i, f := range next.fragments {
		next.byID[f.ID] = i
	}
	return next
}

// withFile returns a snapshot whose ledger includes hash.
func (ix *Index) withFile(hash string) *Index {
	if hash == "" || ix.HasFile(hash) {
		return ix
	}
	next := *ix
	next.files = append(slices.Clone(ix.files), hash)
	return &next
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
