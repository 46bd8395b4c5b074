package usecase

import (
	"math"

	"github.com/mewerton/universal-system/internal/core/domain"
)

// selectMMR picks k candidates by maximal marginal relevance. Each step takes the
// candidate maximising lambda*relevance - (1-lambda)*max similarity to those already
// picked. Candidates arrive sorted by relevance; ties keep that order.
func selectMMR(candidates []domain.ScoredFragment, k int, lambda float64) []domain.ScoredFragment {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k >= len(candidates) && lambda >= 1 {
		return candidates
	}
	k = min(k, len(candidates))
	lambda = math.Max(0, math.Min(1, lambda))

	norms := make([]float64, len(candidates))
	for i, c := range candidates {
		norms[i] = vectorNorm(c.Vector)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))
	// maxSim[i] is the highest similarity of candidate i to any selected candidate.
	maxSim := make([]float64, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			if len(selected) > 0 {
				redundancy = maxSim[i]
			}
			score := lambda*c.Score - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			sim := cosineSimilarity(c.Vector, norms[i], candidates[best].Vector, norms[best])
			if len(selected) == 1 || sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	out := make([]domain.ScoredFragment, 0, len(selected))
	for _, i := range selected {
		out = append(out, candidates[i])
	}
	return out
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
