package recommend

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// Policy holds the constants of the interest decay model.
type Policy struct {
	// Boost scales the mean relevance of concepts shared with a liked item
	Boost float64 `koanf:"boost" validate:"gt=0"`
	// Decay scales user concepts absent from a liked item
	Decay float64 `koanf:"decay" validate:"gt=0,lte=1"`
	// Disinterest scales user concepts shared with a disliked item
	Disinterest float64 `koanf:"disinterest" validate:"gt=0,lte=1"`
	// PruneThreshold removes concepts whose relevance falls to or below it
	PruneThreshold float64 `koanf:"prune_threshold" validate:"gte=0,lt=1"`
}

// DefaultPolicy returns the standard decay constants.
func DefaultPolicy() Policy {
	return Policy{
		Boost:          1.2,
		Decay:          0.9,
		Disinterest:    0.75,
		PruneThreshold: 0.2,
	}
}

// User owns a long-term interest model. Node relevance is interest strength.
type User struct {
	ID       string
	Password string
	Model    *concept.Model
	// Exceptions holds the names of items already acted upon
	Exceptions mapset.Set[string]
	Policy     Policy
}

// NewUser returns a user with an empty model and the default policy.
func NewUser(id, password string) *User {
	return &User{
		ID:         id,
		Password:   password,
		Model:      concept.New(),
		Exceptions: mapset.NewSet[string](),
		Policy:     DefaultPolicy(),
	}
}

// Interests returns the user's concepts sorted by relevance descending.
func (u *User) Interests() []concept.Relevance {
	return u.Model.Relevancies()
}

// InterestIn scores item against the user's model as the sum of the
// relevances of their shared concepts. Scoring reconciles the shared
// concepts first, so both the user's and the item's relevances for them are
// set to their mean.
func (u *User) InterestIn(item *Item) (float64, error) {
	overlap, err := u.Model.ReconcileOverlap(item.Model)
	if err != nil {
		return 0, fmt.Errorf("failed to score item %q: %w", item.Name, err)
	}
	var score float64
	for _, c := range overlap {
		n, err := u.Model.Node(c)
		if err != nil {
			return 0, err
		}
		r, err := n.Relevance()
		if err != nil {
			return 0, err
		}
		score += r
	}
	return score, nil
}

// BestItem returns the item the user is most interested in, skipping items
// named in Exceptions. Ties go to the later item. It returns nil when every
// item is excepted.
func (u *User) BestItem(items []*Item) (*Item, float64, error) {
	var best *Item
	bestScore := 0.0
	for _, item := range items {
		if u.exceptions().Contains(item.Name) {
			continue
		}
		score, err := u.InterestIn(item)
		if err != nil {
			return nil, 0, err
		}
		if score >= bestScore {
			best, bestScore = item, score
		}
	}
	return best, bestScore, nil
}

// ExpressInterest reinforces the concepts the user shares with item, decays
// the rest, merges in the item's concepts and prunes. item is not modified.
func (u *User) ExpressInterest(item *Item) error {
	incoming := item.Model.Copy()
	overlap := u.Model.Overlap(incoming)
	boosted := make([]float64, len(overlap))
	for i, c := range overlap {
		ur, err := u.relevance(c)
		if err != nil {
			return err
		}
		n, err := incoming.Node(c)
		if err != nil {
			return err
		}
		ir, err := n.Relevance()
		if err != nil {
			return fmt.Errorf("item %q: %w", item.Name, err)
		}
		boosted[i] = min(1.0, (ur+ir)/2*u.Policy.Boost)
	}

	for i, c := range overlap {
		n, _ := incoming.Node(c)
		n.SetRelevance(boosted[i])
	}
	for _, n := range u.Model.Nodes() {
		if incoming.Contains(n.Concept) {
			continue
		}
		if r, err := n.Relevance(); err == nil {
			n.SetRelevance(r * u.Policy.Decay)
		}
	}
	u.Model.MergeWith(incoming)
	u.prune()
	u.exceptions().Add(item.Name)
	return nil
}

// ExpressDisinterest weakens the concepts the user shares with item and
// prunes. No new concepts are added.
func (u *User) ExpressDisinterest(item *Item) error {
	overlap := u.Model.Overlap(item.Model)
	current := make([]float64, len(overlap))
	for i, c := range overlap {
		r, err := u.relevance(c)
		if err != nil {
			return err
		}
		current[i] = r
	}
	for i, c := range overlap {
		n, _ := u.Model.Node(c)
		n.SetRelevance(current[i] * u.Policy.Disinterest)
	}
	u.prune()
	u.exceptions().Add(item.Name)
	return nil
}

// InputInterest resolves free text to a concept and merges that concept,
// at relevance 1, into the user's model together with its related
// concepts. Each related concept takes its correlation to the seed as
// relevance. Text that resolves to nothing is ignored.
func (u *User) InputInterest(ctx context.Context, ann concept.Annotator, rel concept.Relater, text string, level, limit int, opts ...concept.ExpandOption) error {
	label, ok, err := concept.Conceptualize(ctx, ann, text)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	seed, err := concept.NewNode(label, map[string]any{concept.PropRelevance: 1.0})
	if err != nil {
		return err
	}
	mapped := concept.New()
	mapped.AddNode(seed)
	if err := mapped.Explode(ctx, rel, level, limit, opts...); err != nil {
		return err
	}
	nbrs, err := mapped.Neighborhood(label)
	if err != nil {
		return err
	}
	for _, nb := range nbrs {
		n, err := mapped.Node(nb.Concept)
		if err != nil {
			return err
		}
		n.SetRelevance(nb.Weight)
	}
	u.Model.MergeWith(mapped)
	return nil
}

// InputInterests applies InputInterest to each text in order.
func (u *User) InputInterests(ctx context.Context, ann concept.Annotator, rel concept.Relater, texts []string, level, limit int, opts ...concept.ExpandOption) error {
	for _, text := range texts {
		if err := u.InputInterest(ctx, ann, rel, text, level, limit, opts...); err != nil {
			return fmt.Errorf("failed to input interest %q: %w", text, err)
		}
	}
	return nil
}

func (u *User) exceptions() mapset.Set[string] {
	if u.Exceptions == nil {
		u.Exceptions = mapset.NewSet[string]()
	}
	return u.Exceptions
}

func (u *User) relevance(c string) (float64, error) {
	n, err := u.Model.Node(c)
	if err != nil {
		return 0, err
	}
	r, err := n.Relevance()
	if err != nil {
		return 0, fmt.Errorf("user %q: %w", u.ID, err)
	}
	return r, nil
}

// prune drops concepts at or below the threshold. Concepts without a
// relevance are kept.
func (u *User) prune() {
	for _, n := range u.Model.Nodes() {
		if r, err := n.Relevance(); err == nil && r <= u.Policy.PruneThreshold {
			_ = u.Model.Remove(n.Concept)
		}
	}
}

type userJSON struct {
	ID         string         `json:"id"`
	Password   string         `json:"password"`
	Model      *concept.Model `json:"model"`
	Exceptions []string       `json:"exceptions"`
}

// MarshalJSON encodes the account record with sorted exceptions.
func (u *User) MarshalJSON() ([]byte, error) {
	doc := userJSON{
		ID:         u.ID,
		Password:   u.Password,
		Model:      u.Model,
		Exceptions: []string{},
	}
	if doc.Model == nil {
		doc.Model = concept.New()
	}
	if u.Exceptions != nil {
		doc.Exceptions = u.Exceptions.ToSlice()
		slices.Sort(doc.Exceptions)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a user record. The policy is not persisted and is
// reset to DefaultPolicy.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         *string         `json:"id"`
		Password   string          `json:"password"`
		Model      json.RawMessage `json:"model"`
		Exceptions []string        `json:"exceptions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: user: %v", ErrMalformedRecord, err)
	}
	if raw.ID == nil {
		return fmt.Errorf("%w: user has no id", ErrMalformedRecord)
	}
	decoded := NewUser(*raw.ID, raw.Password)
	if len(raw.Model) > 0 && string(raw.Model) != "null" {
		if err := decoded.Model.UnmarshalJSON(raw.Model); err != nil {
			return fmt.Errorf("user %q: %w", *raw.ID, err)
		}
	}
	decoded.Exceptions.Append(raw.Exceptions...)
	*u = *decoded
	return nil
}
