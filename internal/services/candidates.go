package services

import (
	"context"

	"github.com/google/uuid"
)

// Candidate is a scored product id from a single source. Scores are only
// comparable within a source; fusion reconciles them across sources.
type Candidate struct {
	ProductID uuid.UUID `json:"product_id"`
	Score     float64   `json:"score"`
	Source    string    `json:"source"`
}

// CandidateGenerator produces scored candidates for a user. A generator
// that lacks enough signal returns an empty list, never an error: cold
// start is not a failure.
type CandidateGenerator interface {
	Name() string
	Generate(ctx context.Context, userID uuid.UUID, excludeProductIDs []uuid.UUID, limit int) ([]Candidate, error)
}

const (
	sourceCollaborative = "collaborative"
	sourceContentBased  = "content_based"
	sourcePopular       = "popular"
)
