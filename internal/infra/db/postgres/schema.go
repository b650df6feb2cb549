package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		patient_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		transcript TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS session_analyses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE REFERENCES sessions(id) ON DELETE CASCADE,
		patient_id TEXT,
		emotions TEXT,
		emotional_valence DOUBLE PRECISION,
		sentiment_score DOUBLE PRECISION,
		significant_emotions TEXT,
		emotion_flower_plot TEXT,
		key_topics TEXT,
		topic_analysis_result TEXT,
		custom_topic_results TEXT,
		semantic_frame_results TEXT,
		summary TEXT,
		language TEXT,
		analysis_version TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
