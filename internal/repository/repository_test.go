package repository

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hubso/backend/internal/database"
	"github.com/hubso/backend/internal/models"
)

// testDB opens the database named by TEST_DATABASE_URL and runs the
// migrations. Tests that need Postgres skip when it is unset.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	raw, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { raw.Close() })

	if err := raw.Ping(); err != nil {
		t.Fatalf("ping test database: %v", err)
	}
	if err := database.RunMigrations(raw); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return &database.DB{DB: raw}
}

func createTestUser(t *testing.T, db *database.DB, name string) *models.User {
	t.Helper()

	repo := NewUserRepository(db)
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s-%s@hubso.test", name, uuid.New().String()[:8]),
		DisplayName:  name,
		PasswordHash: "x",
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("create test user %s: %v", name, err)
	}
	return user
}
