package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'active',
		current_milestone TEXT,
		metadata          TEXT NOT NULL DEFAULT '{}',
		created_at        INTEGER NOT NULL,
		updated_at        INTEGER NOT NULL,
		archived_at       INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);

	CREATE TABLE IF NOT EXISTS milestones (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		data       TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		PRIMARY KEY (project_id, type)
	);

	CREATE TABLE IF NOT EXISTS sections (
		project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		section_index INTEGER NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		content       TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'pending',
		cost_delta    REAL NOT NULL DEFAULT 0,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, section_index)
	);

	-- Append-only. No foreign key: entries are retained for historical
	-- analytics after their project is permanently deleted.
	CREATE TABLE IF NOT EXISTS cost_entries (
		id            TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL,
		agent_name    TEXT NOT NULL,
		operation     TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost          REAL NOT NULL DEFAULT 0,
		model_used    TEXT,
		metadata      TEXT NOT NULL DEFAULT '{}',
		created_at    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_costs_project ON cost_entries(project_id);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}

func (s *Store) migrateV2() error {
	var version string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil || version >= "2" {
		return nil // already at v2+
	}

	// ALTER TABLE is not idempotent; ignore the error if the column exists.
	_, _ = s.db.Exec(`ALTER TABLE cost_entries ADD COLUMN duration_seconds REAL NOT NULL DEFAULT 0`)
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_costs_timeline ON cost_entries(project_id, created_at)`); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}
