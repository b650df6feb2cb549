package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		patient_id VARCHAR(64) NULL,
		title VARCHAR(255) NOT NULL DEFAULT '',
		transcript LONGTEXT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_sessions_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS session_analyses (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		patient_id VARCHAR(64) NULL,
		emotions TEXT NULL,
		emotional_valence DOUBLE NULL,
		sentiment_score DOUBLE NULL,
		significant_emotions TEXT NULL,
		emotion_flower_plot LONGTEXT NULL,
		key_topics MEDIUMTEXT NULL,
		topic_analysis_result LONGTEXT NULL,
		custom_topic_results LONGTEXT NULL,
		semantic_frame_results LONGTEXT NULL,
		summary TEXT NULL,
		language VARCHAR(32) NULL,
		analysis_version VARCHAR(16) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_session_analyses_session (session_id),
		CONSTRAINT fk_session_analyses_session FOREIGN KEY (session_id)
			REFERENCES sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql migrate: %w", err)
		}
	}
	return nil
}
