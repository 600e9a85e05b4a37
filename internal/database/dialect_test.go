package database

import (
	"testing"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for SQLite")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if result {
			t.Error("SupportsLastInsertId() should return false for PostgreSQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for MySQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO users (name, email) VALUES (?, ?)",
			expected: "INSERT INTO users (name, email) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET name = ?, email = ? WHERE id = ?",
			expected: "UPDATE users SET name = ?, email = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInsertIgnoreQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		expected string
	}{
		{
			name:     "SQLite",
			dialect:  NewSQLiteDialect(),
			expected: "INSERT OR IGNORE INTO earned_badges (child_id, badge_id) VALUES (?, ?)",
		},
		{
			name:     "PostgreSQL",
			dialect:  NewPostgresDialect(),
			expected: "INSERT INTO earned_badges (child_id, badge_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		},
		{
			name:     "MySQL",
			dialect:  NewMySQLDialect(),
			expected: "INSERT IGNORE INTO earned_badges (child_id, badge_id) VALUES (?, ?)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.InsertIgnoreQuery("earned_badges", "child_id", "badge_id")
			if result != tt.expected {
				t.Errorf("InsertIgnoreQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		config   DialectConfig
		expected string
	}{
		{
			name:     "SQLite adds pragmas",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "./learnquest.db"},
			expected: "file:./learnquest.db?_foreign_keys=on&_busy_timeout=5000",
		},
		{
			name:     "SQLite keeps explicit options",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "file:test.db?mode=memory"},
			expected: "file:test.db?mode=memory",
		},
		{
			name:     "PostgreSQL passthrough",
			dialect:  NewPostgresDialect(),
			config:   DialectConfig{URL: "postgres://u:p@localhost/db"},
			expected: "postgres://u:p@localhost/db",
		},
		{
			name:     "MySQL adds parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "u:p@tcp(localhost:3306)/db"},
			expected: "u:p@tcp(localhost:3306)/db?parseTime=true",
		},
		{
			name:     "MySQL appends parseTime to existing params",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "u:p@tcp(localhost:3306)/db?charset=utf8mb4"},
			expected: "u:p@tcp(localhost:3306)/db?charset=utf8mb4&parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.DSN(tt.config)
			if result != tt.expected {
				t.Errorf("DSN() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- leading comment
CREATE TABLE a (id INTEGER);

CREATE TABLE b (id INTEGER);
-- trailing comment
`
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id INTEGER)" {
		t.Errorf("first statement = %q", stmts[0])
	}
}
