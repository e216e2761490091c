package apptype

// Item is the wire form of a stored item
type Item struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Concepts    []ConceptRelevance `json:"concepts"`
	Fields      map[string]any     `json:"fields,omitempty"`
}

// ConceptRelevance pairs a concept with a relevance in [0, 1]
type ConceptRelevance struct {
	Concept   string  `json:"concept"`
	Relevance float64 `json:"relevance"`
}

// ScoredConcept pairs a concept with a relatedness score
type ScoredConcept struct {
	Concept string  `json:"concept"`
	Score   float64 `json:"score"`
}

// ConceptViewCount pairs a concept with its recent daily mean page views
type ConceptViewCount struct {
	Concept   string `json:"concept"`
	ViewCount uint64 `json:"viewCount"`
}
