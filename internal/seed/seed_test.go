package seed

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dapurkita/resep/internal/db"
	"github.com/dapurkita/resep/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	for i := 0; i < 5; i++ {
		stats, err := Run(database)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 13 {
				t.Fatalf("expected 13 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM ingredients`, 4)
	assertCount(t, database, `SELECT COUNT(*) FROM channels`, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM recipes`, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM recipe_ingredients`, 4)
	assertCount(t, database, `SELECT COUNT(*) FROM recipe_sub_recipes`, 1)

	var usable bool
	if err := database.QueryRow(`SELECT usable_as_ingredient FROM recipes WHERE name = ?`, toppingRecipeName).Scan(&usable); err != nil {
		t.Fatalf("query sub-recipe flag: %v", err)
	}
	if !usable {
		t.Fatalf("expected %q to be usable as ingredient", toppingRecipeName)
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, want int) {
	t.Helper()

	var got int
	if err := database.QueryRow(query).Scan(&got); err != nil {
		t.Fatalf("count query %q: %v", query, err)
	}
	if got != want {
		t.Fatalf("count query %q = %d, want %d", query, got, want)
	}
}
