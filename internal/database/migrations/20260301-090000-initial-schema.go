package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-090000",
		Description: "Initial schema: users, credit ledger, generation jobs, scheduled posts",
		Up: []string{
			// Users - balance is only ever changed by conditional updates
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				credit_balance INTEGER NOT NULL DEFAULT 0 CHECK (credit_balance >= 0),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Credit transactions - audit trail written alongside every balance change
			`CREATE TABLE IF NOT EXISTS credit_transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				amount INTEGER NOT NULL,
				balance_after INTEGER NOT NULL,
				reference TEXT UNIQUE,
				job_id TEXT,
				description TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_credit_transactions_job ON credit_transactions(job_id)`,

			// Scheduled posts - dependent entity whose media comes from generation jobs
			`CREATE TABLE IF NOT EXISTS scheduled_posts (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				caption TEXT NOT NULL DEFAULT '',
				platforms TEXT NOT NULL DEFAULT '[]',
				scheduled_at TEXT,
				media_status TEXT NOT NULL DEFAULT 'generating',
				media_urls TEXT NOT NULL DEFAULT '[]',
				media_terminal_count INTEGER NOT NULL DEFAULT 0,
				auto_publish INTEGER NOT NULL DEFAULT 0,
				publish_status TEXT NOT NULL DEFAULT 'draft',
				external_post_id TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scheduled_posts_user ON scheduled_posts(user_id, created_at)`,

			// Generation jobs - never deleted
			`CREATE TABLE IF NOT EXISTS generation_jobs (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				model TEXT NOT NULL,
				prompt TEXT NOT NULL DEFAULT '',
				reference_inputs TEXT NOT NULL DEFAULT '[]',
				parameters TEXT NOT NULL DEFAULT '{}',
				status TEXT NOT NULL DEFAULT 'pending',
				credits_reserved INTEGER NOT NULL,
				external_task_id TEXT,
				result_urls TEXT NOT NULL DEFAULT '[]',
				error_message TEXT,
				attempts INTEGER NOT NULL DEFAULT 0,
				post_id TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				completed_at TEXT,
				FOREIGN KEY (user_id) REFERENCES users(id),
				FOREIGN KEY (post_id) REFERENCES scheduled_posts(id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_generation_jobs_user ON generation_jobs(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_generation_jobs_status ON generation_jobs(status, updated_at)`,
			`CREATE INDEX IF NOT EXISTS idx_generation_jobs_post ON generation_jobs(post_id)`,
			`CREATE INDEX IF NOT EXISTS idx_generation_jobs_external ON generation_jobs(external_task_id)`,
		},
	})
}
