package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hubso/backend/config"
	"github.com/hubso/backend/internal/apperrors"
	"github.com/hubso/backend/internal/auth"
	"github.com/hubso/backend/internal/database"
	"github.com/hubso/backend/internal/models"
	"github.com/hubso/backend/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|down|status|seed]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		log.Println("Running migrations...")
		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "status":
		showMigrationStatus(db)

	case "seed":
		seedDemoUsers(&database.DB{DB: db}, cfg)

	case "down":
		log.Println("Rollback not implemented yet")
		// TODO: Implement rollback

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, down, status, seed")
		os.Exit(1)
	}
}

func showMigrationStatus(db *sql.DB) {
	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		log.Printf("No migrations found or table doesn't exist: %v", err)
		return
	}
	defer rows.Close()

	fmt.Println("\nApplied Migrations:")
	fmt.Println("-------------------")
	for rows.Next() {
		var version int
		var appliedAt string
		if err := rows.Scan(&version, &appliedAt); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}
		fmt.Printf("Version %d - Applied at: %s\n", version, appliedAt)
	}
}

// seedDemoUsers creates a handful of users for local development and
// prints a login token for each. Existing users are left untouched.
func seedDemoUsers(db *database.DB, cfg *config.Config) {
	if cfg.Server.Env == "production" {
		log.Fatal("Refusing to seed demo users in production")
	}

	userRepo := repository.NewUserRepository(db)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	demos := []struct {
		email       string
		displayName string
	}{
		{"alice@hubso.dev", "Alice"},
		{"bob@hubso.dev", "Bob"},
		{"carol@hubso.dev", "Carol"},
	}

	for _, demo := range demos {
		existing, err := userRepo.GetByEmail(demo.email)
		if err == nil {
			printToken(jwtService, existing)
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Fatalf("Failed to look up %s: %v", demo.email, err)
		}

		hash, err := auth.HashPassword("hubso-dev-password")
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		user := &models.User{
			ID:           uuid.New(),
			Email:        demo.email,
			DisplayName:  demo.displayName,
			PasswordHash: hash,
		}
		if err := user.Validate(); err != nil {
			log.Fatalf("Invalid demo user %s: %v", demo.email, err)
		}
		if err := userRepo.Create(user); err != nil {
			log.Fatalf("Failed to create %s: %v", demo.email, err)
		}

		log.Printf("Created user %s (%s)", user.Email, user.ID)
		printToken(jwtService, user)
	}
}

func printToken(jwtService *auth.JWTService, user *models.User) {
	token, err := jwtService.GenerateToken(user.ID, user.Email, "default")
	if err != nil {
		log.Printf("Failed to generate token for %s: %v", user.Email, err)
		return
	}
	fmt.Printf("%s token: %s\n", user.Email, token)
}
