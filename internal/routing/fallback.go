package routing

import (
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

const (
	baseConfidence    = 0.7
	matchConfidence   = 0.05
	maxConfidence     = 0.95
	defaultConfidence = 0.75
)

// confidenceFor scores how well the text supports the classified
// category: min(0.95, 0.7 + 0.05*matches), or 0.75 with no matches.
func confidenceFor(text string, category domain.Category) float64 {
	matches := countMatches(strings.ToLower(text), confidenceKeywords[category])
	if matches > 0 {
		return min(maxConfidence, baseConfidence+float64(matches)*matchConfidence)
	}
	return defaultConfidence
}

// fallbackClassify picks the category whose keyword set matches the text
// most often. Used whenever the external labeler cannot serve.
func fallbackClassify(text string) (domain.Category, float64) {
	lower := strings.ToLower(text)

	best := domain.CategoryGeneral
	bestMatches := 0
	for _, category := range domain.Categories {
		matches := countMatches(lower, fallbackKeywords[category])
		if matches > bestMatches {
			best = category
			bestMatches = matches
		}
	}

	if bestMatches == 0 {
		return domain.CategoryGeneral, defaultConfidence
	}
	return best, min(maxConfidence, baseConfidence+float64(bestMatches)*matchConfidence)
}

func countMatches(lower string, keywords []string) int {
	matches := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			matches++
		}
	}
	return matches
}
