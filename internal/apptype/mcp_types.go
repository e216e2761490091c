package apptype

// EventArgs carries the optional event details of an item. Times are RFC 3339.
type EventArgs struct {
	StartTime string `json:"startTime,omitempty" jsonschema:"Start time in RFC 3339 format."`
	EndTime   string `json:"endTime,omitempty" jsonschema:"End time in RFC 3339 format."`
	Location  string `json:"location,omitempty" jsonschema:"Where the event takes place."`
	Picture   string `json:"picture,omitempty" jsonschema:"URL of a picture for the event."`
	URL       string `json:"url,omitempty" jsonschema:"Link to the event page."`
}

// AddItemArgs represents the arguments for the add_item tool
type AddItemArgs struct {
	Name        string         `json:"name" jsonschema:"Unique name of the item."`
	Description string         `json:"description" jsonschema:"Free text the item's concepts are extracted from."`
	Fields      map[string]any `json:"fields,omitempty" jsonschema:"Additional attributes stored with the item."`
	Event       *EventArgs     `json:"event,omitempty" jsonschema:"Event details when the item happens at a time and place."`
}

// ItemArgs names a single item (get_item, delete_item)
type ItemArgs struct {
	Name string `json:"name" jsonschema:"The name of the item."`
}

// ItemResult is returned by add_item and get_item
type ItemResult struct {
	Item Item `json:"item"`
}

// ListItemsArgs represents the arguments for the list_items tool
type ListItemsArgs struct {
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum number of items to return (default 20)."`
	Offset int `json:"offset,omitempty" jsonschema:"Number of items to skip (for pagination)."`
}

// ItemsResult is returned by list_items
type ItemsResult struct {
	Items []Item `json:"items"`
}

// RegisterUserArgs represents the arguments for the register_user tool
type RegisterUserArgs struct {
	UserID   string `json:"userId,omitempty" jsonschema:"Requested user id. A random id is generated when empty."`
	Password string `json:"password,omitempty" jsonschema:"Opaque password stored with the account."`
}

// UserArgs names a single user
type UserArgs struct {
	UserID string `json:"userId" jsonschema:"The id of the user."`
}

// UserItemArgs pairs a user with an item (express_interest, express_disinterest)
type UserItemArgs struct {
	UserID   string `json:"userId" jsonschema:"The id of the user."`
	ItemName string `json:"itemName" jsonschema:"The name of the item the user reacted to."`
}

// InputInterestsArgs represents the arguments for the input_interests tool
type InputInterestsArgs struct {
	UserID string   `json:"userId" jsonschema:"The id of the user."`
	Texts  []string `json:"texts" jsonschema:"Free-text interests, each resolved to its best matching concept."`
}

// InterestsResult carries a user's concepts by relevance descending
type InterestsResult struct {
	UserID    string             `json:"userId"`
	Interests []ConceptRelevance `json:"interests"`
}

// RecommendResult is returned by recommend_item. Item is absent when no
// stored item shares a concept with the user.
type RecommendResult struct {
	UserID string  `json:"userId"`
	Found  bool    `json:"found"`
	Item   *Item   `json:"item,omitempty"`
	Score  float64 `json:"score"`
}

// RelatedConceptsArgs represents the arguments for the related_concepts tool
type RelatedConceptsArgs struct {
	Concept string `json:"concept" jsonschema:"Concept label to look up."`
	Level   int    `json:"level,omitempty" jsonschema:"Popularity level of the related concepts (0 is most popular)."`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of related concepts to return."`
}

// RelatedConceptsResult is returned by related_concepts
type RelatedConceptsResult struct {
	Concept string          `json:"concept"`
	Related []ScoredConcept `json:"related"`
}

// ViewCountsResult is returned by refresh_view_counts
type ViewCountsResult struct {
	UserID     string             `json:"userId"`
	ViewCounts []ConceptViewCount `json:"viewCounts"`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"buildDate"`
	Database  string `json:"database"`
}
