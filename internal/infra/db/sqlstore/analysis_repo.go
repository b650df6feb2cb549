package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
)

// AnalysisRepository stores one session_analyses row per session.
type AnalysisRepository struct {
	db *sql.DB
	d  Dialect
}

func NewAnalysisRepository(db *sql.DB, d Dialect) *AnalysisRepository {
	return &AnalysisRepository{db: db, d: d}
}

const analysisColumns = `id, session_id, patient_id, language, analysis_version, created_at, updated_at,
 emotions, emotional_valence, sentiment_score, significant_emotions, emotion_flower_plot,
 key_topics, topic_analysis_result, custom_topic_results, semantic_frame_results, summary`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (analysis.Record, error) {
	var (
		rec                                    analysis.Record
		patient, lang, version                 sql.NullString
		emotions, significant, plot            sql.NullString
		keyTopics, topicResult, custom, frames sql.NullString
		summary                                sql.NullString
		valence, score                         sql.NullFloat64
	)
	if err := row.Scan(
		&rec.ID, &rec.SessionID, &patient, &lang, &version, &rec.CreatedAt, &rec.UpdatedAt,
		&emotions, &valence, &score, &significant, &plot,
		&keyTopics, &topicResult, &custom, &frames, &summary,
	); err != nil {
		return rec, err
	}
	rec.PatientID = patient.String
	rec.Language = stringPtr(lang)
	rec.AnalysisVersion = stringPtr(version)
	rec.Columns = analysis.Columns{
		Emotions:             stringPtr(emotions),
		EmotionalValence:     floatPtr(valence),
		SentimentScore:       floatPtr(score),
		SignificantEmotions:  stringPtr(significant),
		FlowerPlot:           stringPtr(plot),
		KeyTopics:            stringPtr(keyTopics),
		TopicResult:          stringPtr(topicResult),
		CustomTopicResults:   stringPtr(custom),
		SemanticFrameResults: stringPtr(frames),
		Summary:              stringPtr(summary),
	}
	return rec, nil
}

// FindBySession returns nil, nil when no row exists.
func (r *AnalysisRepository) FindBySession(ctx context.Context, sessionID string) (*analysis.Record, error) {
	q := `SELECT ` + analysisColumns + ` FROM session_analyses WHERE session_id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, r.d.Rebind(q), sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *AnalysisRepository) FindBySessions(ctx context.Context, sessionIDs []string) ([]analysis.Record, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	q := `SELECT ` + analysisColumns + ` FROM session_analyses WHERE session_id IN (` +
		placeholders(len(sessionIDs)) + `) ORDER BY created_at DESC`
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analysis.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Upsert seeds the row if missing, then applies u.Mutate to the locked row.
// Both steps share one transaction.
func (r *AnalysisRepository) Upsert(ctx context.Context, u analysis.Upsert) (string, error) {
	return r.inTx(ctx, func(tx *sql.Tx) (string, error) {
		seed := `INSERT INTO session_analyses (id, session_id, patient_id, created_at, updated_at) VALUES (?,?,?,?,?)` +
			r.d.OnConflictIgnore
		if _, err := tx.ExecContext(ctx, r.d.Rebind(seed), u.NewID, u.SessionID, u.PatientID, u.Now, u.Now); err != nil {
			return "", fmt.Errorf("seed analysis row: %w", err)
		}
		rec, err := r.lockRow(ctx, tx, u.SessionID)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", fmt.Errorf("analysis row for session %s missing after seed", u.SessionID)
		}
		return r.mutate(ctx, tx, *rec, u.Now, u.Mutate)
	})
}

// Update applies fn to an existing row, analysis.ErrNotFound otherwise.
func (r *AnalysisRepository) Update(ctx context.Context, sessionID string, now time.Time, fn analysis.MutateFunc) (string, error) {
	return r.inTx(ctx, func(tx *sql.Tx) (string, error) {
		rec, err := r.lockRow(ctx, tx, sessionID)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", analysis.ErrNotFound
		}
		return r.mutate(ctx, tx, *rec, now, fn)
	})
}

func (r *AnalysisRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM session_analyses WHERE session_id = ?`), sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AnalysisRepository) lockRow(ctx context.Context, tx *sql.Tx, sessionID string) (*analysis.Record, error) {
	q := `SELECT ` + analysisColumns + ` FROM session_analyses WHERE session_id = ?` + r.d.LockRow
	rec, err := scanRecord(tx.QueryRowContext(ctx, r.d.Rebind(q), sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock analysis row: %w", err)
	}
	return &rec, nil
}

// mutate writes only the column groups named by the change.
func (r *AnalysisRepository) mutate(ctx context.Context, tx *sql.Tx, rec analysis.Record, now time.Time, fn analysis.MutateFunc) (string, error) {
	ch, err := fn(rec)
	if err != nil {
		return "", err
	}

	set := []string{"updated_at = ?"}
	args := []any{now}
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}

	if ch.PatientID != nil {
		add("patient_id", *ch.PatientID)
	}
	if ch.Language != nil {
		add("language", *ch.Language)
	}
	if ch.AnalysisVersion != nil {
		add("analysis_version", *ch.AnalysisVersion)
	}

	v := ch.Values
	if ch.Groups&analysis.GroupSentiment != 0 {
		add("emotions", nullString(v.Emotions))
		add("emotional_valence", nullFloat(v.EmotionalValence))
		add("sentiment_score", nullFloat(v.SentimentScore))
		add("significant_emotions", nullString(v.SignificantEmotions))
		add("emotion_flower_plot", nullString(v.FlowerPlot))
	}
	if ch.Groups&analysis.GroupTopics != 0 {
		add("key_topics", nullString(v.KeyTopics))
		add("topic_analysis_result", nullString(v.TopicResult))
	}
	if ch.Groups&analysis.GroupCustomTopics != 0 {
		add("custom_topic_results", nullString(v.CustomTopicResults))
	}
	if ch.Groups&analysis.GroupSemanticFrames != 0 {
		add("semantic_frame_results", nullString(v.SemanticFrameResults))
	}
	if ch.Groups&analysis.GroupSummary != 0 {
		add("summary", nullString(v.Summary))
	}

	args = append(args, rec.ID)
	q := `UPDATE session_analyses SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	if _, err := tx.ExecContext(ctx, r.d.Rebind(q), args...); err != nil {
		return "", fmt.Errorf("update analysis row: %w", err)
	}
	return rec.ID, nil
}

func (r *AnalysisRepository) inTx(ctx context.Context, fn func(*sql.Tx) (string, error)) (id string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id, err = fn(tx)
	if err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}
