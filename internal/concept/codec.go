package concept

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrMalformedModel is returned when a serialized model cannot be decoded
var ErrMalformedModel = errors.New("malformed concept model")

// node-link document, the layout networkx uses for undirected graphs
type nodeLink struct {
	Directed   bool             `json:"directed"`
	Multigraph bool             `json:"multigraph"`
	Graph      map[string]any   `json:"graph"`
	Nodes      []map[string]any `json:"nodes"`
	Links      []linkJSON       `json:"links"`
}

type linkJSON struct {
	Source *string  `json:"source"`
	Target *string  `json:"target"`
	Weight *float64 `json:"weight"`
}

// MarshalJSON encodes the model as a node-link document. Node properties are
// flattened next to the "id" key.
func (m *Model) MarshalJSON() ([]byte, error) {
	doc := nodeLink{
		Graph: map[string]any{},
		Nodes: make([]map[string]any, 0, m.Len()),
		Links: []linkJSON{},
	}
	for _, n := range m.Nodes() {
		entry := n.Properties()
		entry[PropID] = n.Concept
		doc.Nodes = append(doc.Nodes, entry)
	}
	for _, e := range m.Edges() {
		doc.Links = append(doc.Links, linkJSON{Source: &e.Source, Target: &e.Target, Weight: &e.Weight})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON replaces the model with the decoded node-link document. The
// link list may be keyed "links" or "edges". Integral property values decode
// as int64, others as float64.
func (m *Model) UnmarshalJSON(data []byte) error {
	var doc struct {
		Nodes []map[string]any `json:"nodes"`
		Links []linkJSON       `json:"links"`
		Edges []linkJSON       `json:"edges"`
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformedModel)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}

	decoded := New()
	for i, entry := range doc.Nodes {
		id, ok := entry[PropID].(string)
		if !ok {
			return fmt.Errorf("%w: node %d has no string id", ErrMalformedModel, i)
		}
		delete(entry, PropID)
		n, err := NewNode(id, entry)
		if err != nil {
			return fmt.Errorf("%w: node %q: %v", ErrMalformedModel, id, err)
		}
		decoded.AddNode(n)
	}

	links := doc.Links
	if links == nil {
		links = doc.Edges
	}
	for i, l := range links {
		if l.Source == nil || l.Target == nil || l.Weight == nil {
			return fmt.Errorf("%w: link %d needs source, target and weight", ErrMalformedModel, i)
		}
		if err := decoded.SetEdge(*l.Source, *l.Target, *l.Weight); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedModel, err)
		}
	}

	*m = *decoded
	return nil
}
