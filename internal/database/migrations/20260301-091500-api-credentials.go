package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-091500",
		Description: "Add api_credentials table for outbound provider key rotation",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS api_credentials (
				id TEXT PRIMARY KEY,
				provider TEXT NOT NULL,
				name TEXT NOT NULL,
				secret_encrypted TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 1,
				usage_count INTEGER NOT NULL DEFAULT 0,
				last_used_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE(provider, name)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_api_credentials_selection ON api_credentials(provider, is_active, usage_count)`,
		},
	})
}
