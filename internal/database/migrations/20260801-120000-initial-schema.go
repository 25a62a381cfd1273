package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260801-120000",
		Description: "initial schema",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS schemas (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_schemas_tenant ON schemas(tenant_id)`,

			`CREATE TABLE IF NOT EXISTS schema_versions (
				id TEXT PRIMARY KEY,
				schema_id TEXT NOT NULL REFERENCES schemas(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				fields TEXT NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE(schema_id, version)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_schema_versions_schema ON schema_versions(schema_id)`,

			`CREATE TABLE IF NOT EXISTS submissions (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				schema_id TEXT NOT NULL,
				schema_version INTEGER NOT NULL,
				submitted_url TEXT NOT NULL,
				normalized_url TEXT NOT NULL DEFAULT '',
				origin TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				fields TEXT,
				crawled_pages TEXT,
				skipped_pages TEXT,
				artifact_keys TEXT,
				failure_reason TEXT,
				confirmed_at TEXT,
				confirmed_by TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_submissions_tenant ON submissions(tenant_id)`,
			`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,

			`CREATE TABLE IF NOT EXISTS crawl_artifacts (
				id TEXT PRIMARY KEY,
				submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
				url TEXT NOT NULL,
				status_code INTEGER NOT NULL,
				content_type TEXT NOT NULL,
				fetched_at TEXT NOT NULL,
				raw_html_key TEXT NOT NULL,
				extracted_content_key TEXT NOT NULL,
				page_type TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_crawl_artifacts_submission ON crawl_artifacts(submission_id)`,

			`CREATE TABLE IF NOT EXISTS webhooks (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				url TEXT NOT NULL,
				secret_encrypted TEXT NOT NULL,
				events TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_webhooks_tenant ON webhooks(tenant_id)`,

			`CREATE TABLE IF NOT EXISTS webhook_deliveries (
				id TEXT PRIMARY KEY,
				webhook_id TEXT NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
				tenant_id TEXT NOT NULL,
				submission_id TEXT NOT NULL,
				event_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_error TEXT,
				last_status_code INTEGER,
				next_retry_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_deliveries_status_retry ON webhook_deliveries(status, next_retry_at)`,
			`CREATE INDEX IF NOT EXISTS idx_deliveries_webhook ON webhook_deliveries(webhook_id)`,

			`CREATE TABLE IF NOT EXISTS audit_events (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				actor_id TEXT,
				event_type TEXT NOT NULL,
				resource_type TEXT NOT NULL,
				resource_id TEXT NOT NULL,
				details TEXT,
				ip_address TEXT,
				user_agent TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events(tenant_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_type, resource_id)`,

			`CREATE TABLE IF NOT EXISTS publishable_keys (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				key_hash TEXT NOT NULL UNIQUE,
				key_prefix TEXT NOT NULL,
				revoked_at TEXT,
				last_used_at TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_publishable_keys_tenant ON publishable_keys(tenant_id)`,
		},
	})
}
