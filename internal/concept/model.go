package concept

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrSelfLoop is returned when an edge would connect a concept to itself
var ErrSelfLoop = errors.New("self-loop not allowed")

// Edge is an undirected weighted edge. Source sorts before Target.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Neighbor is one incident edge seen from a vertex.
type Neighbor struct {
	Concept string  `json:"concept"`
	Weight  float64 `json:"weight"`
}

// Relevance pairs a concept with its relevance value.
type Relevance struct {
	Concept   string  `json:"concept"`
	Relevance float64 `json:"relevance"`
}

// ViewCount pairs a concept with its view count.
type ViewCount struct {
	Concept   string `json:"concept"`
	ViewCount uint64 `json:"view_count"`
}

// Model is a weighted undirected graph of concepts. There is at most one
// vertex per concept, at most one edge per pair and no self-loops.
//
// A Model is not safe for concurrent mutation.
type Model struct {
	nodes map[string]*Node
	adj   map[string]map[string]float64
}

// New returns a model containing the given concepts and no edges.
func New(concepts ...string) *Model {
	m := &Model{
		nodes: make(map[string]*Node, len(concepts)),
		adj:   make(map[string]map[string]float64, len(concepts)),
	}
	for _, c := range concepts {
		m.Add(c)
	}
	return m
}

// Len returns the number of vertices.
func (m *Model) Len() int { return len(m.nodes) }

// Contains reports whether concept is a vertex.
func (m *Model) Contains(concept string) bool {
	_, ok := m.nodes[concept]
	return ok
}

// Add inserts a bare vertex for concept. It is a no-op when the concept is
// already present.
func (m *Model) Add(concept string) {
	if m.Contains(concept) {
		return
	}
	m.nodes[concept] = &Node{Concept: concept}
	m.adj[concept] = make(map[string]float64)
}

// AddNode inserts n, replacing the property bag of an existing vertex.
// Edges of an existing vertex are kept.
func (m *Model) AddNode(n *Node) {
	if _, ok := m.adj[n.Concept]; !ok {
		m.adj[n.Concept] = make(map[string]float64)
	}
	m.nodes[n.Concept] = n
}

// SetEdge connects a and b, adding either vertex if missing. An existing edge
// has its weight replaced.
func (m *Model) SetEdge(a, b string, weight float64) error {
	if a == b {
		return fmt.Errorf("edge %q-%q: %w", a, b, ErrSelfLoop)
	}
	m.Add(a)
	m.Add(b)
	m.adj[a][b] = weight
	m.adj[b][a] = weight
	return nil
}

// Weight returns the weight of the edge between a and b.
func (m *Model) Weight(a, b string) (float64, bool) {
	w, ok := m.adj[a][b]
	return w, ok
}

// Node returns the vertex for concept.
func (m *Model) Node(concept string) (*Node, error) {
	n, ok := m.nodes[concept]
	if !ok {
		return nil, fmt.Errorf("%q: %w", concept, ErrConceptNotFound)
	}
	return n, nil
}

// Concepts returns every concept sorted lexically.
func (m *Model) Concepts() []string {
	return slices.Sorted(maps.Keys(m.nodes))
}

// Nodes returns every vertex sorted by concept.
func (m *Model) Nodes() []*Node {
	out := make([]*Node, 0, len(m.nodes))
	for _, c := range m.Concepts() {
		out = append(out, m.nodes[c])
	}
	return out
}

// Edges returns every edge once, sorted by weight descending.
func (m *Model) Edges() []Edge {
	var out []Edge
	for a, nbrs := range m.adj {
		for b, w := range nbrs {
			if a < b {
				out = append(out, Edge{Source: a, Target: b, Weight: w})
			}
		}
	}
	slices.SortFunc(out, func(x, y Edge) int {
		if c := cmp.Compare(y.Weight, x.Weight); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Source, y.Source); c != 0 {
			return c
		}
		return cmp.Compare(x.Target, y.Target)
	})
	return out
}

// Degree returns the number of edges incident to concept.
func (m *Model) Degree(concept string) int {
	return len(m.adj[concept])
}

// Neighborhood returns the edges touching concept sorted by weight
// descending.
func (m *Model) Neighborhood(concept string) ([]Neighbor, error) {
	if !m.Contains(concept) {
		return nil, fmt.Errorf("neighborhood of %q: %w", concept, ErrConceptNotFound)
	}
	out := make([]Neighbor, 0, len(m.adj[concept]))
	for c, w := range m.adj[concept] {
		out = append(out, Neighbor{Concept: c, Weight: w})
	}
	slices.SortFunc(out, func(x, y Neighbor) int {
		if c := cmp.Compare(y.Weight, x.Weight); c != 0 {
			return c
		}
		return cmp.Compare(x.Concept, y.Concept)
	})
	return out, nil
}

// Remove deletes concept and all of its edges.
func (m *Model) Remove(concept string) error {
	if !m.Contains(concept) {
		return fmt.Errorf("remove %q: %w", concept, ErrConceptNotFound)
	}
	for nbr := range m.adj[concept] {
		delete(m.adj[nbr], concept)
	}
	delete(m.adj, concept)
	delete(m.nodes, concept)
	return nil
}

// MergeWith composes other into m. For concepts present in both, other's
// property bag replaces m's entirely. Edges are unioned and other's weight
// wins on conflict. other is not modified.
func (m *Model) MergeWith(other *Model) {
	for _, n := range other.nodes {
		m.AddNode(n.Clone())
	}
	for a, nbrs := range other.adj {
		for b, w := range nbrs {
			m.adj[a][b] = w
		}
	}
}

// Copy returns a deep copy of m.
func (m *Model) Copy() *Model {
	c := New()
	c.MergeWith(m)
	return c
}

// Equal reports whether both models hold the same vertices, properties and
// edge weights.
func (m *Model) Equal(other *Model) bool {
	if m.Len() != other.Len() {
		return false
	}
	for c, n := range m.nodes {
		o, ok := other.nodes[c]
		if !ok || !propertiesEqual(n, o) {
			return false
		}
		if !maps.Equal(m.adj[c], other.adj[c]) {
			return false
		}
	}
	return true
}

// ReconcileOverlap returns the concepts present in both models, sorted. It
// also writes, into BOTH models, the mean of the two relevance values for each
// overlapping concept. Nothing is modified if any overlapping vertex lacks a
// relevance.
func (m *Model) ReconcileOverlap(other *Model) ([]string, error) {
	overlap := m.Overlap(other)
	means := make([]float64, len(overlap))
	for i, c := range overlap {
		a, err := m.nodes[c].Relevance()
		if err != nil {
			return nil, err
		}
		b, err := other.nodes[c].Relevance()
		if err != nil {
			return nil, err
		}
		means[i] = (a + b) / 2
	}
	for i, c := range overlap {
		m.nodes[c].SetRelevance(means[i])
		other.nodes[c].SetRelevance(means[i])
	}
	return overlap, nil
}

// Overlap returns the concepts present in both models, sorted. It does not
// modify either model.
func (m *Model) Overlap(other *Model) []string {
	ours := mapset.NewThreadUnsafeSet(m.Concepts()...)
	theirs := mapset.NewThreadUnsafeSet(other.Concepts()...)
	out := ours.Intersect(theirs).ToSlice()
	slices.Sort(out)
	return out
}

// Relevancies returns every vertex carrying a relevance, sorted by relevance
// descending.
func (m *Model) Relevancies() []Relevance {
	out := make([]Relevance, 0, len(m.nodes))
	for c, n := range m.nodes {
		if r, err := n.Relevance(); err == nil {
			out = append(out, Relevance{Concept: c, Relevance: r})
		}
	}
	slices.SortFunc(out, func(x, y Relevance) int {
		if c := cmp.Compare(y.Relevance, x.Relevance); c != 0 {
			return c
		}
		return cmp.Compare(x.Concept, y.Concept)
	})
	return out
}

// ConceptsByViewCount returns every concept with its view count, sorted by
// view count descending. Every vertex must carry a view count.
func (m *Model) ConceptsByViewCount() ([]ViewCount, error) {
	out := make([]ViewCount, 0, len(m.nodes))
	for c, n := range m.nodes {
		v, err := n.ViewCount()
		if err != nil {
			return nil, err
		}
		out = append(out, ViewCount{Concept: c, ViewCount: v})
	}
	slices.SortFunc(out, func(x, y ViewCount) int {
		if c := cmp.Compare(y.ViewCount, x.ViewCount); c != 0 {
			return c
		}
		return cmp.Compare(x.Concept, y.Concept)
	})
	return out, nil
}
