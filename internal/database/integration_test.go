package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"learnquest/migrations"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	tables := []string{"activity_results", "stars", "badge_types", "earned_badges", "child_levels", "notifications", "parent_contacts"}
	for _, table := range tables {
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		var name string
		if err := db.QueryRowContext(ctx, query, table).Scan(&name); err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)

	applied, err := db.RunMigrations(context.Background(), migrations.FS)
	if err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("Expected no migrations on second run, got %v", applied)
	}
}

// TestDatabaseTransactions tests transaction support
func TestDatabaseTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()
	insert := "INSERT INTO badge_types (id, name, description, subject, level, required_achievement, required_value) VALUES (?, ?, ?, ?, ?, ?, ?)"

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, insert, "first-steps", "First Steps", "", "General", 1, "activities_completed", 1)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to commit transaction: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM badge_types WHERE id = ?", "first-steps").Scan(&count); err != nil {
		t.Fatalf("Failed to query after commit: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 badge, got %d", count)
	}

	// A failing callback rolls back
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, insert, "rolled-back", "Nope", "", "General", 1, "total_stars", 1); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insert, "broken", "Broken", "", "General", 9, "total_stars", 1)
		return err
	})
	if err == nil {
		t.Fatal("Expected level check constraint to fail")
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM badge_types WHERE id = ?", "rolled-back").Scan(&count); err != nil {
		t.Fatalf("Failed to query after rollback: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 badges after rollback, got %d", count)
	}
}

func TestInsertIgnoreSkipsDuplicates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO badge_types (id, name, description, subject, level, required_achievement, required_value) VALUES (?, ?, ?, ?, ?, ?, ?)",
		"star-1", "Star", "", "General", 1, "total_stars", 10)
	if err != nil {
		t.Fatalf("Failed to seed badge: %v", err)
	}

	query := db.Dialect.InsertIgnoreQuery("earned_badges", "child_id", "badge_id", "earned_at")
	for i, want := range []int64{1, 0} {
		res, err := db.ExecContext(ctx, query, "child-1", "star-1", time.Now().UTC())
		if err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
		n, _ := res.RowsAffected()
		if n != want {
			t.Errorf("insert %d affected %d rows, want %d", i, n, want)
		}
	}
}

func TestExecReturningID(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openMigrated(t)
	ctx := context.Background()

	query := `INSERT INTO stars (child_id, activity_id, amount, subject, reason, is_perfect, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	first, err := db.ExecReturningID(ctx, query, "c1", "a1", 3, "Maths", "Good score", false, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExecReturningID failed: %v", err)
	}
	second, err := db.ExecReturningID(ctx, query, "c1", "a2", 5, "Maths", "perfect score", true, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExecReturningID failed: %v", err)
	}
	if second <= first {
		t.Errorf("expected increasing ids, got %d then %d", first, second)
	}
}
