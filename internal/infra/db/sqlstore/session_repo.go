package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bryanwahyu/sessionlens/internal/domain/sessions"
)

// SessionRepository reads the sessions table, always scoped to the owner.
type SessionRepository struct {
	db *sql.DB
	d  Dialect
}

func NewSessionRepository(db *sql.DB, d Dialect) *SessionRepository {
	return &SessionRepository{db: db, d: d}
}

const sessionColumns = `id, user_id, patient_id, title, transcript, created_at`

func scanSession(row rowScanner) (sessions.Session, error) {
	var s sessions.Session
	var patient, title, transcript sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &patient, &title, &transcript, &s.CreatedAt); err != nil {
		return s, err
	}
	s.PatientID = patient.String
	s.Title = title.String
	s.Transcript = transcript.String
	return s, nil
}

func (r *SessionRepository) FindOwned(ctx context.Context, userID, sessionID string) (*sessions.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? AND user_id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, r.d.Rebind(q), sessionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) ListOwned(ctx context.Context, userID string, sessionIDs []string) ([]sessions.Session, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ? AND id IN (` + placeholders(len(sessionIDs)) + `)`
	args := make([]any, 0, len(sessionIDs)+1)
	args = append(args, userID)
	for _, id := range sessionIDs {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sessions.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepository) ListIDsByOwner(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT id FROM sessions WHERE user_id = ? ORDER BY created_at DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Create inserts a session row. Session management lives elsewhere; this is
// used to seed local databases.
func (r *SessionRepository) Create(ctx context.Context, s sessions.Session) error {
	q := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, r.d.Rebind(q), s.ID, s.UserID, s.PatientID, s.Title, s.Transcript, s.CreatedAt)
	return err
}
