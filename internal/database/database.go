// Package database handles database connections and migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/genmedia-api/internal/database/migrations"
)

// Options configures the connection.
type Options struct {
	// DSN is a libsql DSN: "file:genmedia.db?_journal=WAL&_timeout=5000", ":memory:",
	// or an http(s) URL for a libsql server.
	DSN string

	// TursoURL and TursoAuthToken enable embedded-replica mode: the local file
	// named by DSN is synced with the remote database.
	TursoURL       string
	TursoAuthToken string

	// MaxOpenConns caps the pool. SQLite serialises writers, so a small pool
	// keeps busy errors down; 0 leaves the driver default.
	MaxOpenConns int
}

// New opens a libsql database and verifies the connection.
func New(opts Options) (*sql.DB, error) {
	var db *sql.DB

	if opts.TursoURL != "" && opts.TursoAuthToken != "" {
		dbPath := strings.TrimPrefix(opts.DSN, "file:")
		dbPath = strings.Split(dbPath, "?")[0]

		connector, err := libsql.NewEmbeddedReplicaConnector(dbPath, opts.TursoURL,
			libsql.WithAuthToken(opts.TursoAuthToken),
			libsql.WithReadYourWrites(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Turso connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open("libsql", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate runs pending migrations, logging each one applied.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// SchemaVersion returns the newest applied migration and the number applied.
func SchemaVersion(db *sql.DB) (string, int, error) {
	version, err := migrations.LatestVersion(db)
	if err != nil {
		return "", 0, err
	}
	applied, err := migrations.Applied(db)
	if err != nil {
		return "", 0, err
	}
	return version, len(applied), nil
}
