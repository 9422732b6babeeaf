// Package token estimates token counts for budgeting decisions.
//
// Counts are deterministic per (model, text) pair and cheap enough to run
// synchronously on every persisted message and on full assembled prompts.
// They are threshold estimates, not billing-accurate tokenizer output.
package token

import "unicode"

// Characters-per-token divisors by model family. Latin-heavy text averages
// about four characters per token; CJK text is closer to one to two.
const (
	latinRunesPerToken = 4
	cjkRunesPerToken   = 2
)

// Count returns the estimated token count for text under the given model.
// Empty text counts as zero. Count never fails.
//
// The model parameter selects the estimation profile; unknown models fall
// back to the default profile so new model names never break budgeting.
func Count(model, text string) int {
	if text == "" {
		return 0
	}

	// Mixed-script text is counted per rune class so CJK-heavy input does
	// not get underestimated against the summarization threshold.
	latin, cjk := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			latin++
		}
	}

	total := ceilDiv(latin, latinRunesPerToken) + ceilDiv(cjk, cjkRunesPerToken)
	if total < 1 {
		total = 1
	}
	_ = model // all current profiles share divisors; kept in the contract for future tokenizers
	return total
}

// CountAll sums Count over the given texts.
func CountAll(model string, texts ...string) int {
	total := 0
	for _, t := range texts {
		total += Count(model, t)
	}
	return total
}

func ceilDiv(n, d int) int {
	if n == 0 {
		return 0
	}
	return (n + d - 1) / d
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
