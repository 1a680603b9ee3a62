package services

import (
	"sort"

	"github.com/google/uuid"
)

// Source weights encode decreasing trust: peer behavior over inferred
// taste over generic popularity.
const (
	collaborativeWeight = 3.0
	contentBasedWeight  = 2.0
	popularWeight       = 0.5
)

// MergeCandidates fuses the three candidate lists into one ranked id
// list. Collaborative and content-based scores accumulate; popularity is
// a pure fallback and only contributes for products neither of the
// smarter signals surfaced. Ties break on product id ascending so the
// ranking is reproducible.
func MergeCandidates(collaborative, contentBased, popular []Candidate, limit int) []uuid.UUID {
	scores := make(map[uuid.UUID]float64)

	for _, c := range collaborative {
		scores[c.ProductID] += c.Score * collaborativeWeight
	}
	for _, c := range contentBased {
		scores[c.ProductID] += c.Score * contentBasedWeight
	}
	for _, c := range popular {
		if _, seen := scores[c.ProductID]; seen {
			continue
		}
		scores[c.ProductID] = c.Score * popularWeight
	}

	ranked := make([]uuid.UUID, 0, len(scores))
	for productID := range scores {
		ranked = append(ranked, productID)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i].String() < ranked[j].String()
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
