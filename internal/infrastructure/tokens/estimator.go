// Package tokens counts subword tokens for prompt budgeting.
package tokens

import "unicode"

// specialTokens accounts for the sequence start/end markers of the embedding tokenizer.
const specialTokens = 2

// Estimator is the offline heuristic behind Counter. It counts words in runs of at
// most CharsPerToken runes and every punctuation or symbol rune as its own token.
type Estimator struct {
	CharsPerToken int
}

func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4}
}

func (e *Estimator) Estimate(text string) int {
	per := e.CharsPerToken
	if per <= 0 {
		per = 4
	}

	total := 0
	word := 0
	flush := func() {
		if word > 0 {
			total += (word + per - 1) / per
			word = 0
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			word++
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			total++
		}
	}
	flush()
	if total == 0 {
		return 0
	}
	return total + specialTokens
}
