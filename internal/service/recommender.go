// Package service runs the load, mutate and save workflows of the
// recommender over a Store and the concept collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
)

var (
	// ErrInvalidInput is returned for empty names, ids or texts
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserExists is returned when registering a taken user id
	ErrUserExists = errors.New("user already exists")
)

// Store persists items and users. *database.DBManager implements it.
type Store interface {
	SaveItem(ctx context.Context, item *recommend.Item) error
	GetItem(ctx context.Context, name string) (*recommend.Item, error)
	ListItems(ctx context.Context, limit, offset int) ([]*recommend.Item, error)
	DeleteItem(ctx context.Context, name string) error
	ItemsWithConcepts(ctx context.Context, concepts []string) ([]*recommend.Item, error)

	SaveUser(ctx context.Context, user *recommend.User) error
	GetUser(ctx context.Context, id string) (*recommend.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	DeleteUser(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

var _ Store = (*database.DBManager)(nil)

// Config tunes the recommender workflows.
type Config struct {
	// Level and Limit are passed to related-concept lookups
	Level int `koanf:"level" validate:"gte=0,lte=5"`
	Limit int `koanf:"limit" validate:"gte=1,lte=100"`
	// ExplodeParallelism bounds concurrent related-concept fetches
	ExplodeParallelism int `koanf:"explode_parallelism" validate:"gte=1,lte=64"`
	// AnnotationScores keeps annotation scores as initial item relevance
	AnnotationScores bool             `koanf:"annotation_scores"`
	Policy           recommend.Policy `koanf:"policy"`
}

// DefaultConfig returns the default workflow settings.
func DefaultConfig() Config {
	return Config{
		Level:              0,
		Limit:              50,
		ExplodeParallelism: 4,
		Policy:             recommend.DefaultPolicy(),
	}
}

// Recommender is the application service behind the tool surface.
type Recommender struct {
	store  Store
	collab *insights.Collaborators
	cfg    Config

	// serializes read-modify-write workflows on stored users
	mu sync.Mutex
}

// New returns a Recommender.
func New(store Store, collab *insights.Collaborators, cfg Config) *Recommender {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.ExplodeParallelism <= 0 {
		cfg.ExplodeParallelism = 1
	}
	if cfg.Policy == (recommend.Policy{}) {
		cfg.Policy = recommend.DefaultPolicy()
	}
	return &Recommender{store: store, collab: collab, cfg: cfg}
}

// ItemInput describes an item to add. Event is optional.
type ItemInput struct {
	Name        string
	Description string
	Fields      map[string]any
	Event       *recommend.Event
}

// AddItem annotates the description, builds the item and stores it,
// replacing any item with the same name.
func (r *Recommender) AddItem(ctx context.Context, in ItemInput) (*recommend.Item, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: item name must be a non-empty string", ErrInvalidInput)
	}
	opts := []recommend.ItemOption{recommend.WithFields(in.Fields)}
	if r.cfg.AnnotationScores {
		opts = append(opts, recommend.WithAnnotationScores())
	}

	var (
		item *recommend.Item
		err  error
	)
	if in.Event != nil {
		item, err = recommend.NewEvent(ctx, r.collab.Annotator, in.Name, in.Description, *in.Event, opts...)
	} else {
		item, err = recommend.NewItem(ctx, r.collab.Annotator, in.Name, in.Description, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build item %q: %w", in.Name, err)
	}
	if len(item.Fields) == 0 {
		item.Fields = nil
	}
	if err := r.store.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	logging.Info().Str("item", item.Name).Int("concepts", item.Model.Len()).Msg("item added")
	return item, nil
}

// GetItem loads a stored item.
func (r *Recommender) GetItem(ctx context.Context, name string) (*recommend.Item, error) {
	return r.store.GetItem(ctx, name)
}

// ListItems pages through stored items.
func (r *Recommender) ListItems(ctx context.Context, limit, offset int) ([]*recommend.Item, error) {
	return r.store.ListItems(ctx, limit, offset)
}

// DeleteItem removes a stored item.
func (r *Recommender) DeleteItem(ctx context.Context, name string) error {
	if err := r.store.DeleteItem(ctx, name); err != nil {
		return err
	}
	logging.Info().Str("item", name).Msg("item deleted")
	return nil
}

// RegisterUser creates a user with an empty interest model. An empty id is
// replaced by a generated one.
func (r *Recommender) RegisterUser(ctx context.Context, id, password string) (*recommend.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if _, err := r.store.GetUser(ctx, id); err == nil {
		return nil, fmt.Errorf("user %q: %w", id, ErrUserExists)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	user := recommend.NewUser(id, password)
	user.Policy = r.cfg.Policy
	if err := r.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	logging.Info().Str("user", id).Msg("user registered")
	return user, nil
}

// DeleteUser removes a user and its interest model.
func (r *Recommender) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	logging.Info().Str("user", id).Msg("user deleted")
	return nil
}

// Users lists every registered user id.
func (r *Recommender) Users(ctx context.Context) ([]string, error) {
	return r.store.ListUserIDs(ctx)
}

// UserInterests returns a user's concepts by relevance descending.
func (r *Recommender) UserInterests(ctx context.Context, id string) ([]concept.Relevance, error) {
	user, err := r.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Interests(), nil
}

// ExpressInterest applies the like update for itemName and stores the user.
func (r *Recommender) ExpressInterest(ctx context.Context, userID, itemName string) ([]concept.Relevance, error) {
	return r.react(ctx, userID, itemName, (*recommend.User).ExpressInterest, "interest")
}

// ExpressDisinterest applies the dislike update for itemName and stores the user.
func (r *Recommender) ExpressDisinterest(ctx context.Context, userID, itemName string) ([]concept.Relevance, error) {
	return r.react(ctx, userID, itemName, (*recommend.User).ExpressDisinterest, "disinterest")
}

func (r *Recommender) react(ctx context.Context, userID, itemName string, apply func(*recommend.User, *recommend.Item) error, kind string) ([]concept.Relevance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := r.store.GetItem(ctx, itemName)
	if err != nil {
		return nil, err
	}
	if err := apply(user, item); err != nil {
		return nil, fmt.Errorf("failed to apply %s in %q: %w", kind, itemName, err)
	}
	if err := r.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	logging.Debug().Str("user", userID).Str("item", itemName).Str("kind", kind).
		Int("concepts", user.Model.Len()).Msg("user reaction applied")
	return user.Interests(), nil
}

// InputInterests folds free-text interests into the user's model and stores
// the user. Texts that match no concept are skipped.
func (r *Recommender) InputInterests(ctx context.Context, userID string, texts []string) ([]concept.Relevance, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: at least one interest text is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = user.InputInterests(ctx, r.collab.Annotator, r.collab.Relater, texts,
		r.cfg.Level, r.cfg.Limit, concept.WithParallelism(r.cfg.ExplodeParallelism))
	if err != nil {
		return nil, fmt.Errorf("failed to input interests: %w", err)
	}
	if err := r.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user.Interests(), nil
}

// Recommendation is the outcome of Recommend. Item is nil when no stored
// item shares a concept with the user.
type Recommendation struct {
	Item  *recommend.Item
	Score float64
}

// Recommend returns the best not yet acted upon item for the user. Only
// items sharing at least one concept with the user are scored, and the
// relevance reconciliation done while scoring is not persisted.
func (r *Recommender) Recommend(ctx context.Context, userID string) (Recommendation, error) {
	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return Recommendation{}, err
	}
	candidates, err := r.store.ItemsWithConcepts(ctx, user.Model.Concepts())
	if err != nil {
		return Recommendation{}, err
	}
	best, score, err := user.BestItem(candidates)
	if err != nil {
		return Recommendation{}, fmt.Errorf("failed to score items: %w", err)
	}
	ev := logging.Debug().Str("user", userID).Int("candidates", len(candidates))
	if best != nil {
		ev = ev.Str("item", best.Name).Float64("score", score)
	}
	ev.Msg("recommendation computed")
	return Recommendation{Item: best, Score: score}, nil
}

// RelatedConcepts looks up concepts related to label. Zero level or limit
// fall back to the configured values.
func (r *Recommender) RelatedConcepts(ctx context.Context, label string, level, limit int) ([]concept.Scored, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: concept label must be a non-empty string", ErrInvalidInput)
	}
	if level <= 0 {
		level = r.cfg.Level
	}
	if limit <= 0 {
		limit = r.cfg.Limit
	}
	related, err := r.collab.Relater.RelatedConcepts(ctx, label, level, limit)
	if err != nil {
		return nil, err
	}
	out := related[:0:0]
	for _, s := range related {
		if s.Concept != "" && s.Concept != label {
			out = append(out, s)
		}
	}
	return out, nil
}

// RefreshViewCounts fetches view counts for every concept of the user,
// stores them and returns the concepts by view count descending.
func (r *Recommender) RefreshViewCounts(ctx context.Context, userID string) ([]concept.ViewCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.Model.SetViewCounts(ctx, r.collab.ViewCounter); err != nil {
		return nil, fmt.Errorf("failed to refresh view counts: %w", err)
	}
	if err := r.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user.Model.ConceptsByViewCount()
}

// Health reports whether the store is reachable.
func (r *Recommender) Health(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Recommender) loadUser(ctx context.Context, id string) (*recommend.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: user id must be a non-empty string", ErrInvalidInput)
	}
	user, err := r.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Policy = r.cfg.Policy
	return user, nil
}
