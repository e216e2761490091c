package concept

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"strconv"

	"github.com/goccy/go-json"
)

// Reserved property keys
const (
	PropRelevance = "relevance"
	PropViewCount = "view_count"
	// PropID carries the concept in node-link documents and cannot be set
	PropID = "id"
)

var (
	// ErrConceptNotFound is returned when a concept is not a vertex of a model
	ErrConceptNotFound = errors.New("concept not found")
	// ErrPropertyNotFound is returned when a node does not carry a property
	ErrPropertyNotFound = errors.New("property not found")
	// ErrReservedProperty is returned when setting a key the codec owns
	ErrReservedProperty = errors.New("reserved property")
)

// Node is a concept plus its property bag. The well-known properties are
// typed; everything else lives in an open extension map.
type Node struct {
	Concept string

	relevance *float64
	viewCount *uint64
	extra     map[string]any
}

// NewNode creates a node for concept with the given properties.
func NewNode(concept string, props map[string]any) (*Node, error) {
	n := &Node{Concept: concept}
	for k, v := range props {
		if err := n.SetProperty(k, v); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Property returns the value stored under key.
func (n *Node) Property(key string) (any, error) {
	switch key {
	case PropRelevance:
		if n.relevance == nil {
			return nil, fmt.Errorf("%q on %q: %w", key, n.Concept, ErrPropertyNotFound)
		}
		return *n.relevance, nil
	case PropViewCount:
		if n.viewCount == nil {
			return nil, fmt.Errorf("%q on %q: %w", key, n.Concept, ErrPropertyNotFound)
		}
		return *n.viewCount, nil
	}
	v, ok := n.extra[key]
	if !ok {
		return nil, fmt.Errorf("%q on %q: %w", key, n.Concept, ErrPropertyNotFound)
	}
	return v, nil
}

// SetProperty stores value under key. Reserved keys must be numeric; no range
// validation is applied. Numbers are normalised: integers to int64 (uint64
// above its range), floats to float64, recursively through maps and slices.
func (n *Node) SetProperty(key string, value any) error {
	value = normalizeValue(value)
	switch key {
	case PropID:
		return fmt.Errorf("%q on %q: %w", key, n.Concept, ErrReservedProperty)
	case PropRelevance:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("property %q must be numeric, got %T", key, value)
		}
		n.SetRelevance(f)
		return nil
	case PropViewCount:
		u, ok := toUint(value)
		if !ok {
			return fmt.Errorf("property %q must be a non-negative integer, got %v", key, value)
		}
		n.SetViewCount(u)
		return nil
	}
	if n.extra == nil {
		n.extra = make(map[string]any)
	}
	n.extra[key] = value
	return nil
}

// DeleteProperty removes key from the node. Missing keys are ignored.
func (n *Node) DeleteProperty(key string) {
	switch key {
	case PropRelevance:
		n.relevance = nil
	case PropViewCount:
		n.viewCount = nil
	default:
		delete(n.extra, key)
	}
}

// Relevance returns the relevance property or ErrPropertyNotFound.
func (n *Node) Relevance() (float64, error) {
	if n.relevance == nil {
		return 0, fmt.Errorf("%q on %q: %w", PropRelevance, n.Concept, ErrPropertyNotFound)
	}
	return *n.relevance, nil
}

// SetRelevance sets the relevance property.
func (n *Node) SetRelevance(r float64) { n.relevance = &r }

// HasRelevance reports whether the relevance property is set.
func (n *Node) HasRelevance() bool { return n.relevance != nil }

// ViewCount returns the view count property or ErrPropertyNotFound.
func (n *Node) ViewCount() (uint64, error) {
	if n.viewCount == nil {
		return 0, fmt.Errorf("%q on %q: %w", PropViewCount, n.Concept, ErrPropertyNotFound)
	}
	return *n.viewCount, nil
}

// SetViewCount sets the view count property.
func (n *Node) SetViewCount(v uint64) { n.viewCount = &v }

// Properties returns a flattened copy of every property on the node.
func (n *Node) Properties() map[string]any {
	out := make(map[string]any, len(n.extra)+2)
	maps.Copy(out, n.extra)
	if n.relevance != nil {
		out[PropRelevance] = *n.relevance
	}
	if n.viewCount != nil {
		out[PropViewCount] = *n.viewCount
	}
	return out
}

// Clone returns a deep copy of the node's property bag. Extension values are
// copied shallowly.
func (n *Node) Clone() *Node {
	c := &Node{Concept: n.Concept}
	if n.relevance != nil {
		c.SetRelevance(*n.relevance)
	}
	if n.viewCount != nil {
		c.SetViewCount(*n.viewCount)
	}
	if len(n.extra) > 0 {
		c.extra = maps.Clone(n.extra)
	}
	return c
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func toUint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case int:
		return uint64(x), x >= 0
	case int32:
		return uint64(x), x >= 0
	case int64:
		return uint64(x), x >= 0
	case float64:
		// float64(math.MaxUint64) rounds up to 1<<64, which is out of range
		if x < 0 || x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxUint64 {
			return 0, false
		}
		return uint64(x), true
	case float32:
		return toUint(float64(x))
	}
	return 0, false
}

// normalizeValue gives numbers one representation so that a value survives a
// JSON round trip unchanged.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		return normalizeNumber(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case float32:
		return float64(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func normalizeNumber(num json.Number) any {
	if i, err := num.Int64(); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(num.String(), 10, 64); err == nil {
		return u
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}

// valuesEqual compares property values, treating numbers by value so that a
// float64 3 and an int64 3 are equal.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, e := range x {
			f, ok := y[k]
			if !ok || !valuesEqual(e, f) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	return okA && okB && fa == fb
}

// propertiesEqual reports whether two nodes carry the same properties.
func propertiesEqual(a, b *Node) bool {
	pa, pb := a.Properties(), b.Properties()
	if len(pa) != len(pb) {
		return false
	}
	for k, v := range pa {
		w, ok := pb[k]
		if !ok || !valuesEqual(v, w) {
			return false
		}
	}
	return true
}
