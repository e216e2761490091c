package recommend

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// ErrMalformedRecord is returned when a persisted item or user cannot be decoded
var ErrMalformedRecord = errors.New("malformed record")

// Item is anything that can be recommended: an event, a talk, a recipe.
// Its concept model is derived from the description.
type Item struct {
	Name        string
	Description string
	Model       *concept.Model
	// Fields holds domain specific attributes flattened into the item record
	Fields map[string]any
}

// ItemOption tunes NewItem.
type ItemOption func(*itemOptions)

type itemOptions struct {
	keepScores bool
	fields     map[string]any
}

// WithAnnotationScores keeps the annotation score of each concept as its
// initial relevance instead of resetting it to 0.
func WithAnnotationScores() ItemOption {
	return func(o *itemOptions) { o.keepScores = true }
}

// WithFields attaches domain fields to the item.
func WithFields(fields map[string]any) ItemOption {
	return func(o *itemOptions) {
		if o.fields == nil {
			o.fields = make(map[string]any, len(fields))
		}
		maps.Copy(o.fields, fields)
	}
}

// NewItem annotates description once and builds the item's concept model.
// Every concept starts at relevance 0 unless WithAnnotationScores is given.
// An empty description yields an empty model.
func NewItem(ctx context.Context, ann concept.Annotator, name, description string, opts ...ItemOption) (*Item, error) {
	var o itemOptions
	for _, opt := range opts {
		opt(&o)
	}
	model, err := concept.FromText(ctx, ann, description)
	if err != nil {
		return nil, fmt.Errorf("failed to build model for item %q: %w", name, err)
	}
	if !o.keepScores {
		for _, n := range model.Nodes() {
			n.SetRelevance(0.0)
		}
	}
	return &Item{
		Name:        name,
		Description: description,
		Model:       model,
		Fields:      o.fields,
	}, nil
}

// Concepts returns the item's concepts sorted lexically.
func (i *Item) Concepts() []string {
	return i.Model.Concepts()
}

// Relevancies returns the item's concepts sorted by relevance descending.
// Every concept must carry a relevance.
func (i *Item) Relevancies() ([]concept.Relevance, error) {
	for _, n := range i.Model.Nodes() {
		if !n.HasRelevance() {
			return nil, fmt.Errorf("item %q concept %q: %w", i.Name, n.Concept, concept.ErrPropertyNotFound)
		}
	}
	return i.Model.Relevancies(), nil
}

// MarshalJSON flattens Fields next to name, description and model.
func (i *Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Fields)+3)
	maps.Copy(out, i.Fields)
	out["name"] = i.Name
	out["description"] = i.Description
	model := i.Model
	if model == nil {
		model = concept.New()
	}
	out["model"] = model
	return json.Marshal(out)
}

// UnmarshalJSON decodes an item record. Keys other than name, description
// and model become Fields.
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: item: %v", ErrMalformedRecord, err)
	}
	var decoded Item
	if err := json.Unmarshal(raw["name"], &decoded.Name); err != nil || decoded.Name == "" {
		return fmt.Errorf("%w: item has no name", ErrMalformedRecord)
	}
	delete(raw, "name")
	if d, ok := raw["description"]; ok {
		if err := json.Unmarshal(d, &decoded.Description); err != nil {
			return fmt.Errorf("%w: item %q description: %v", ErrMalformedRecord, decoded.Name, err)
		}
		delete(raw, "description")
	}
	decoded.Model = concept.New()
	if m, ok := raw["model"]; ok {
		if err := decoded.Model.UnmarshalJSON(m); err != nil {
			return fmt.Errorf("item %q: %w", decoded.Name, err)
		}
		delete(raw, "model")
	}
	if len(raw) > 0 {
		decoded.Fields = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("%w: item %q field %q: %v", ErrMalformedRecord, decoded.Name, k, err)
			}
			decoded.Fields[k] = val
		}
	}
	*i = decoded
	return nil
}
