package analyses

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/sessionlens/internal/application"
	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/domain/sessions"
	"github.com/bryanwahyu/sessionlens/internal/logger"
)

const component = "analyses"

// Options tune record defaults and limits.
type Options struct {
	MaxCustomSearches  int
	DefaultLanguage    string
	AnalysisVersion    string
	SavedSearchesLimit int
}

func DefaultOptions() Options {
	return Options{
		MaxCustomSearches:  analysis.MaxCustomSearches,
		DefaultLanguage:    "italian",
		AnalysisVersion:    "1.0.0",
		SavedSearchesLimit: 20,
	}
}

// Service implements the analysis record use-cases. It is safe for concurrent
// use; writes to the same session are serialized in-process on top of the
// row lock taken by the repository.
type Service struct {
	Repo     analysis.Repository
	Sessions sessions.Directory
	Cipher   analysis.Cipher
	Plots    analysis.PlotStore // optional
	Clock    application.Clock
	Options  Options

	locks sessionLocks
}

// GetResult distinguishes "no record yet" (Cached false) from a stored record.
type GetResult struct {
	Cached   bool           `json:"cached"`
	Analysis *analysis.View `json:"analysis"`
}

type UpsertCommand struct {
	UserID    string
	SessionID string
	Type      string
	Data      json.RawMessage
}

// Get returns the decoded record for a session owned by userID.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (GetResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return GetResult{}, analysis.Invalid("sessionId", "is required")
	}
	sess, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return GetResult{}, err
	}

	rec, err := s.Repo.FindBySession(ctx, sessionID)
	if err != nil {
		return GetResult{}, fmt.Errorf("load analysis for session %s: %w", sessionID, err)
	}
	if rec == nil {
		return GetResult{Cached: false}, nil
	}
	v := s.view(*rec, sess.Title)
	return GetResult{Cached: true, Analysis: &v}, nil
}

// Upsert validates and dispatches one typed analysis write.
func (s *Service) Upsert(ctx context.Context, cmd UpsertCommand) (string, error) {
	if strings.TrimSpace(cmd.SessionID) == "" {
		return "", analysis.Invalid("sessionId", "is required")
	}
	if cmd.Type == "" {
		return "", analysis.Invalid("analysisType", "is required")
	}
	t, err := analysis.ParseType(cmd.Type)
	if err != nil {
		return "", err
	}
	p, err := analysis.DecodePayload(t, cmd.Data)
	if err != nil {
		return "", err
	}
	return s.apply(ctx, cmd.UserID, cmd.SessionID, p)
}

// AppendSearch stores one custom topic search entry for a session.
func (s *Service) AppendSearch(ctx context.Context, userID, sessionID string, entry analysis.CustomTopicSearch) (string, error) {
	return s.apply(ctx, userID, sessionID, analysis.CustomTopicsPayload{Entry: entry})
}

func (s *Service) apply(ctx context.Context, userID, sessionID string, p analysis.Payload) (string, error) {
	sess, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	p = s.offloadPlots(ctx, sessionID, p)

	opts := s.opts()
	now := s.now()
	lang := p.Lang()
	if lang == "" {
		lang = opts.DefaultLanguage
	}
	version := opts.AnalysisVersion
	patientID := sess.PatientID

	mutate := func(cur analysis.Record) (analysis.Change, error) {
		ch := analysis.Change{
			Groups:          analysis.GroupOf(p.Type()),
			PatientID:       &patientID,
			Language:        &lang,
			AnalysisVersion: &version,
		}
		var err error
		switch p := p.(type) {
		case analysis.SentimentPayload:
			if ch.Values.Emotions, err = analysis.EncodeColumn(p.Sentiment.ZScores); err != nil {
				return ch, err
			}
			if ch.Values.SignificantEmotions, err = analysis.EncodeColumn(p.Sentiment.SignificantEmotions); err != nil {
				return ch, err
			}
			valence, score := p.Sentiment.EmotionalValence, p.Sentiment.SentimentScore
			ch.Values.EmotionalValence = &valence
			ch.Values.SentimentScore = &score
			ch.Values.FlowerPlot = p.Sentiment.FlowerPlot

		case analysis.TopicsPayload:
			doc, kt := string(p.Document), string(p.KeyTopics)
			ch.Values.TopicResult = &doc
			ch.Values.KeyTopics = &kt

		case analysis.CustomTopicsPayload:
			entry := p.Entry
			if entry.Timestamp.IsZero() {
				entry.Timestamp = now
			}
			existing := decodeForMerge[analysis.SearchLog](cur.SessionID, "customTopicSearches", cur.CustomTopicResults)
			merged := analysis.SearchLog{Searches: analysis.AppendSearch(existing.Searches, entry, opts.MaxCustomSearches)}
			if ch.Values.CustomTopicResults, err = analysis.EncodeColumn(merged); err != nil {
				return ch, err
			}

		case analysis.SemanticFramePayload:
			existing := decodeForMerge[map[string]analysis.SemanticFrame](cur.SessionID, "semanticFrames", cur.SemanticFrameResults)
			if ch.Values.SemanticFrameResults, err = analysis.EncodeColumn(analysis.PutFrame(existing, p.Frame)); err != nil {
				return ch, err
			}
		}
		return ch, nil
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	id, err := s.Repo.Upsert(ctx, analysis.Upsert{
		NewID:     uuid.NewString(),
		SessionID: sessionID,
		PatientID: patientID,
		Now:       now,
		Mutate:    mutate,
	})
	if err != nil {
		return "", fmt.Errorf("save %s analysis for session %s: %w", p.Type(), sessionID, err)
	}
	application.AnalysisWrites.WithLabelValues(string(p.Type()), "upsert").Inc()
	logger.WithSession(sessionID, component).WithField("type", p.Type()).Debug("analysis saved")
	return id, nil
}

// SetSummary stores the encrypted session summary. An empty text clears it.
func (s *Service) SetSummary(ctx context.Context, userID, sessionID, text string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", analysis.Invalid("sessionId", "is required")
	}
	sess, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}

	var stored *string
	if strings.TrimSpace(text) != "" {
		enc, err := s.Cipher.Encrypt(text)
		if err != nil {
			return "", fmt.Errorf("encrypt summary: %w", err)
		}
		stored = &enc
	}
	patientID := sess.PatientID

	unlock := s.locks.lock(sessionID)
	defer unlock()

	id, err := s.Repo.Upsert(ctx, analysis.Upsert{
		NewID:     uuid.NewString(),
		SessionID: sessionID,
		PatientID: patientID,
		Now:       s.now(),
		Mutate: func(analysis.Record) (analysis.Change, error) {
			return analysis.Change{
				Groups:    analysis.GroupSummary,
				Values:    analysis.Columns{Summary: stored},
				PatientID: &patientID,
			}, nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("save summary for session %s: %w", sessionID, err)
	}
	application.AnalysisWrites.WithLabelValues("summary", "upsert").Inc()
	return id, nil
}

// DeleteAll removes every analysis stored for the session. Deleting a session
// without a record is not an error.
func (s *Service) DeleteAll(ctx context.Context, userID, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return analysis.Invalid("sessionId", "is required")
	}
	if _, err := s.owned(ctx, userID, sessionID); err != nil {
		return err
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	deleted, err := s.Repo.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete analyses for session %s: %w", sessionID, err)
	}
	if deleted {
		application.AnalysisWrites.WithLabelValues("all", "delete").Inc()
	}
	return nil
}

// DeleteType clears the columns of one analysis type and keeps the rest.
func (s *Service) DeleteType(ctx context.Context, userID, sessionID, analysisType string) error {
	if strings.TrimSpace(sessionID) == "" {
		return analysis.Invalid("sessionId", "is required")
	}
	t, err := analysis.ParseType(analysisType)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, userID, sessionID); err != nil {
		return err
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	_, err = s.Repo.Update(ctx, sessionID, s.now(), func(analysis.Record) (analysis.Change, error) {
		return analysis.Change{Groups: analysis.GroupOf(t)}, nil
	})
	if err != nil {
		return fmt.Errorf("delete %s analysis for session %s: %w", t, sessionID, err)
	}
	application.AnalysisWrites.WithLabelValues(string(t), "delete").Inc()
	return nil
}

// DeleteFrame removes one target word from the session's semantic frames.
// Removing the last word clears the column.
func (s *Service) DeleteFrame(ctx context.Context, userID, sessionID, word string) error {
	if strings.TrimSpace(sessionID) == "" {
		return analysis.Invalid("sessionId", "is required")
	}
	if word == "" {
		return analysis.Invalid("targetWord", "is required")
	}
	if _, err := s.owned(ctx, userID, sessionID); err != nil {
		return err
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	_, err := s.Repo.Update(ctx, sessionID, s.now(), func(cur analysis.Record) (analysis.Change, error) {
		frames, ok := analysis.DecodeColumn[map[string]analysis.SemanticFrame](cur.SemanticFrameResults).Get()
		if !ok {
			return analysis.Change{}, analysis.ErrNotFound
		}
		rest, found := analysis.DropFrame(frames, word)
		if !found {
			return analysis.Change{}, analysis.ErrNotFound
		}
		ch := analysis.Change{Groups: analysis.GroupSemanticFrames}
		if len(rest) > 0 {
			enc, err := analysis.EncodeColumn(rest)
			if err != nil {
				return ch, err
			}
			ch.Values.SemanticFrameResults = enc
		}
		return ch, nil
	})
	if err != nil {
		return fmt.Errorf("delete semantic frame %q for session %s: %w", word, sessionID, err)
	}
	application.AnalysisWrites.WithLabelValues(string(analysis.TypeSemanticFrame), "delete_key").Inc()
	return nil
}

// SavedSearches lists custom topic searches across every session of userID,
// newest first.
func (s *Service) SavedSearches(ctx context.Context, userID string) ([]analysis.SavedSearch, error) {
	if userID == "" {
		return nil, analysis.ErrUnauthorized
	}
	ids, err := s.Sessions.ListIDsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := []analysis.SavedSearch{}
	if len(ids) == 0 {
		return out, nil
	}
	recs, err := s.Repo.FindBySessions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}

	for _, rec := range recs {
		d := analysis.DecodeColumn[analysis.SearchLog](rec.CustomTopicResults)
		if d.State == analysis.Corrupt {
			reportCorrupt(rec.SessionID, "customTopicSearches", d.Err)
			continue
		}
		for _, search := range d.Value.Searches {
			out = append(out, analysis.SavedSearch{
				ID:                rec.ID + "_" + search.Timestamp.Format(time.RFC3339Nano),
				CustomTopicSearch: search,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit := s.opts().SavedSearchesLimit; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) owned(ctx context.Context, userID, sessionID string) (*sessions.Session, error) {
	if userID == "" {
		return nil, analysis.ErrUnauthorized
	}
	sess, err := s.Sessions.FindOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, analysis.ErrNotFound
	}
	return sess, nil
}

func (s *Service) opts() Options {
	o := s.Options
	d := DefaultOptions()
	if o.MaxCustomSearches <= 0 {
		o.MaxCustomSearches = d.MaxCustomSearches
	}
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = d.DefaultLanguage
	}
	if o.AnalysisVersion == "" {
		o.AnalysisVersion = d.AnalysisVersion
	}
	if o.SavedSearchesLimit <= 0 {
		o.SavedSearchesLimit = d.SavedSearchesLimit
	}
	return o
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

// decodeForMerge reads the current value of an additive column. A corrupt
// value is reported and replaced by the zero value, so the write starts over.
func decodeForMerge[T any](sessionID, field string, raw *string) T {
	d := analysis.DecodeColumn[T](raw)
	if d.State == analysis.Corrupt {
		reportCorrupt(sessionID, field, d.Err)
	}
	return d.Value
}

func reportCorrupt(sessionID, field string, err error) {
	application.DecodeFailures.WithLabelValues(field).Inc()
	logger.WithSession(sessionID, component).
		WithField("field", field).
		WithField("error", fmt.Sprint(err)).
		Warn("stored analysis field is unreadable, treating it as absent")
}
