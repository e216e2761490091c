package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// saveModel replaces the stored concept model of an owner
func saveModel(ctx context.Context, tx *sql.Tx, kind, owner string, model *concept.Model) error {
	if err := deleteModel(ctx, tx, kind, owner); err != nil {
		return err
	}
	if model == nil {
		return nil
	}

	for _, node := range model.Nodes() {
		props, err := json.Marshal(node.Properties())
		if err != nil {
			return fmt.Errorf("failed to encode properties of %q: %w", node.Concept, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO concepts (owner_kind, owner, concept, properties) VALUES (?, ?, ?, ?)",
			kind, owner, node.Concept, string(props)); err != nil {
			return fmt.Errorf("failed to insert concept %q: %w", node.Concept, err)
		}
	}
	for _, e := range model.Edges() {
		// Edges() already orders each pair with source < target
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO concept_edges (owner_kind, owner, source, target, weight) VALUES (?, ?, ?, ?, ?)",
			kind, owner, e.Source, e.Target, e.Weight); err != nil {
			return fmt.Errorf("failed to insert edge %q-%q: %w", e.Source, e.Target, err)
		}
	}
	return nil
}

// loadModel reads the concept model of an owner; a missing model is empty
func loadModel(ctx context.Context, q queryer, kind, owner string) (*concept.Model, error) {
	model := concept.New()

	rows, err := q.QueryContext(ctx,
		"SELECT concept, properties FROM concepts WHERE owner_kind = ? AND owner = ? ORDER BY concept",
		kind, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		var props map[string]any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&props); err != nil {
			return nil, fmt.Errorf("failed to decode properties of %q: %w", name, err)
		}
		node, err := concept.NewNode(name, props)
		if err != nil {
			return nil, fmt.Errorf("invalid properties of %q: %w", name, err)
		}
		model.AddNode(node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edges, err := q.QueryContext(ctx,
		"SELECT source, target, weight FROM concept_edges WHERE owner_kind = ? AND owner = ?",
		kind, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edges.Close()
	for edges.Next() {
		var source, target string
		var weight float64
		if err := edges.Scan(&source, &target, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if err := model.SetEdge(source, target, weight); err != nil {
			return nil, fmt.Errorf("invalid edge %q-%q: %w", source, target, err)
		}
	}
	if err := edges.Err(); err != nil {
		return nil, err
	}
	return model, nil
}

// deleteModel removes the concept model of an owner
func deleteModel(ctx context.Context, tx *sql.Tx, kind, owner string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM concept_edges WHERE owner_kind = ? AND owner = ?", kind, owner); err != nil {
		return fmt.Errorf("failed to delete edges of %s %q: %w", kind, owner, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM concepts WHERE owner_kind = ? AND owner = ?", kind, owner); err != nil {
		return fmt.Errorf("failed to delete concepts of %s %q: %w", kind, owner, err)
	}
	return nil
}
