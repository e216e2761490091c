package database

// owner kinds of a stored concept model
const (
	ownerItem = "item"
	ownerUser = "user"
)

// schema returns the DDL applied on startup
func schema() []string {
	return []string{
		// Create items table
		`CREATE TABLE IF NOT EXISTS items (
        name TEXT PRIMARY KEY,
        description TEXT NOT NULL DEFAULT '',
        fields TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		// Create users table
		`CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        password TEXT NOT NULL DEFAULT '',
        exceptions TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		// Concept vertices of item and user models
		`CREATE TABLE IF NOT EXISTS concepts (
        owner_kind TEXT NOT NULL,
        owner TEXT NOT NULL,
        concept TEXT NOT NULL,
        properties TEXT NOT NULL DEFAULT '{}',
        PRIMARY KEY (owner_kind, owner, concept)
    )`,

		// Weighted undirected edges, stored once with source < target
		`CREATE TABLE IF NOT EXISTS concept_edges (
        owner_kind TEXT NOT NULL,
        owner TEXT NOT NULL,
        source TEXT NOT NULL,
        target TEXT NOT NULL,
        weight REAL NOT NULL,
        PRIMARY KEY (owner_kind, owner, source, target),
        CHECK (source < target)
    )`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_concept ON concepts(concept, owner_kind)`,
	}
}
