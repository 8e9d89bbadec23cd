package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/genmedia-api/internal/database/migrations"
	"github.com/jmylchreest/genmedia-api/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// Each :memory: connection is its own database, so the pool is pinned to one.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	return NewRepositories(setupTestDB(t))
}

// insertTestUser creates a user with the given balance.
func insertTestUser(t *testing.T, repos *Repositories, userID string, credits int) {
	t.Helper()
	if _, err := repos.Ledger.EnsureUser(context.Background(), userID, credits); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
}

// insertTestJob creates a job owned by userID holding a reservation of credits.
func insertTestJob(t *testing.T, repos *Repositories, userID string, status models.JobStatus, credits int) *models.GenerationJob {
	t.Helper()
	job := &models.GenerationJob{
		ID:              ulid.Make().String(),
		UserID:          userID,
		Kind:            models.JobKindVideo,
		Model:           "veo3_fast",
		Prompt:          "a lighthouse at dusk",
		Status:          status,
		CreditsReserved: credits,
		CreatedAt:       time.Now(),
	}
	if err := repos.Job.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return job
}
