package concept

import "context"

// Scored is a concept label returned by an external collaborator together
// with its annotation or correlation score.
type Scored struct {
	Concept string  `json:"concept"`
	Score   float64 `json:"score"`
}

// Annotator maps free text to zero or more concept identifications.
// An empty result is valid and means nothing matched.
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]Scored, error)
}

// Relater returns up to limit concepts related to label at the requested
// specificity level. Results may include label itself.
type Relater interface {
	RelatedConcepts(ctx context.Context, label string, level, limit int) ([]Scored, error)
}

// ViewCounter returns the recent average daily page views for a concept.
type ViewCounter interface {
	ViewCount(ctx context.Context, label string) (uint64, error)
}
