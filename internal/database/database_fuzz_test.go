package database

import (
	"context"
	"testing"
)

func FuzzImportItems(f *testing.F) {
	f.Add([]byte(`{"items": [{"name": "a", "model": {"nodes": [{"id": "X"}], "links": []}}]}`))
	f.Add([]byte(`{"items": [{"name": "b", "model": {"nodes": [{"id": "X"}, {"id": "Y"}], "edges": [{"source": "X", "target": "Y", "weight": 0.5}]}}]}`))
	f.Add([]byte(`{"items": [{}]}`))
	f.Add([]byte(`{"items": null}`))

	db, cleanup := setupTestDB(f)
	defer cleanup()
	ctx := context.Background()

	f.Fuzz(func(t *testing.T, data []byte) {
		n, err := db.ImportItems(ctx, data)
		if err != nil {
			if n != 0 {
				t.Fatalf("failed import reported %d items", n)
			}
			return
		}
		if n < 0 {
			t.Fatalf("negative count %d", n)
		}
		if _, err := db.ExportItems(ctx); err != nil {
			t.Fatalf("export after import: %v", err)
		}
	})
}
