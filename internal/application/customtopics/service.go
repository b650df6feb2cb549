package customtopics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/sessionlens/internal/application"
	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/domain/classifier"
	"github.com/bryanwahyu/sessionlens/internal/domain/sessions"
	"github.com/bryanwahyu/sessionlens/internal/logger"
)

const component = "customtopics"

// Recorder persists a finished search entry on one session's record.
type Recorder interface {
	AppendSearch(ctx context.Context, userID, sessionID string, entry analysis.CustomTopicSearch) (string, error)
}

// Options tune a batch. Zero or negative counts and thresholds take the
// DefaultOptions value; delays are used as given.
type Options struct {
	MaxCandidates       int
	MinSentenceLength   int
	MaxAttempts         int
	RetryDelay          time.Duration
	PacingDelay         time.Duration
	ConfidenceThreshold float64
}

func DefaultOptions() Options {
	return Options{
		MaxCandidates:       30,
		MinSentenceLength:   15,
		MaxAttempts:         2,
		RetryDelay:          2 * time.Second,
		PacingDelay:         time.Second,
		ConfidenceThreshold: 0.4,
	}
}

// Service runs custom topic classification batches. Classifier calls are
// strictly sequential and paced by Options.PacingDelay.
type Service struct {
	Sessions   sessions.Directory
	Classifier classifier.Classifier
	Recorder   Recorder
	Cipher     analysis.Cipher
	Clock      application.Clock
	// Sleep waits d or until ctx is done. Nil means a real timer.
	Sleep   func(ctx context.Context, d time.Duration) error
	Options Options
}

type Command struct {
	UserID     string
	SessionIDs []string
	Topics     []string
}

type transcript struct {
	session   sessions.Session
	sentences []string
}

// Search classifies every selected session against every topic and stores
// the resulting entry on each session. A failing (session, topic) pair is
// reported as empty, a failing save is logged; neither fails the batch.
func (s *Service) Search(ctx context.Context, cmd Command) (analysis.CustomTopicSearch, error) {
	if cmd.UserID == "" {
		return analysis.CustomTopicSearch{}, analysis.ErrUnauthorized
	}
	ids := cleanList(cmd.SessionIDs)
	if len(ids) == 0 {
		return analysis.CustomTopicSearch{}, analysis.Invalid("sessionIds", "at least one session is required")
	}
	topics := cleanList(cmd.Topics)
	if len(topics) == 0 {
		return analysis.CustomTopicSearch{}, analysis.Invalid("customTopics", "at least one topic is required")
	}

	docs, err := s.load(ctx, cmd.UserID, ids)
	if err != nil {
		return analysis.CustomTopicSearch{}, err
	}

	opts := s.opts()
	entry := analysis.CustomTopicSearch{
		Query:        strings.Join(topics, ", "),
		Timestamp:    s.now(),
		Sessions:     make([]analysis.SessionRef, 0, len(docs)),
		Results:      make([]analysis.SessionTopicResult, 0, len(docs)),
		CustomTopics: make([]analysis.TopicDescriptor, 0, len(topics)),
	}
	for i, topic := range topics {
		entry.CustomTopics = append(entry.CustomTopics, analysis.TopicDescriptor{
			TopicID:     i + 1,
			Description: topic,
			Keywords:    []string{topic},
		})
	}

	calls, total := 0, 0
	for _, doc := range docs {
		entry.Sessions = append(entry.Sessions, analysis.SessionRef{ID: doc.session.ID, Title: doc.session.Title})
		result := analysis.SessionTopicResult{
			SessionID:    doc.session.ID,
			SessionTitle: doc.session.Title,
			Topics:       make([]analysis.TopicMatch, 0, len(topics)),
		}
		for i, topic := range topics {
			var segs []analysis.ClassifiedSegment
			if len(doc.sentences) > 0 {
				if calls > 0 {
					if err := s.sleep(ctx, opts.PacingDelay); err != nil {
						return analysis.CustomTopicSearch{}, err
					}
				}
				calls++
				segs = s.classifyWithRetry(ctx, doc.session.ID, doc.sentences, topic)
			}
			match := Match(topic, i+1, segs, opts.ConfidenceThreshold)
			total += match.TotalMatches
			result.Topics = append(result.Topics, match)
		}
		entry.Results = append(entry.Results, result)
	}
	entry.Summary = fmt.Sprintf("Search completed for %d custom topics across %d sessions. Found %d relevant segments in total.",
		len(topics), len(docs), total)

	for _, doc := range docs {
		if _, err := s.Recorder.AppendSearch(ctx, cmd.UserID, doc.session.ID, entry); err != nil {
			application.PersistenceWarnings.Inc()
			logger.WithSession(doc.session.ID, component).
				WithField("error", err.Error()).
				Warn("could not save custom topic search, result still returned")
		}
	}

	logger.Info("custom topic search completed", map[string]interface{}{
		"component": component,
		"sessions":  len(docs),
		"topics":    len(topics),
		"matches":   total,
		"calls":     calls,
	})
	return entry, nil
}

// Match keeps the relevant segments of one (session, topic) pair and averages
// their confidence. No relevant segment means confidence 0.
func Match(topic string, topicID int, segs []analysis.ClassifiedSegment, threshold float64) analysis.TopicMatch {
	relevant := make([]analysis.ClassifiedSegment, 0)
	sum := 0.0
	for _, seg := range segs {
		if seg.Relevant(threshold) {
			relevant = append(relevant, seg)
			sum += seg.Confidence
		}
	}
	m := analysis.TopicMatch{
		Topic:            topic,
		TopicID:          topicID,
		RelevantSegments: relevant,
		TotalMatches:     len(relevant),
	}
	if len(relevant) > 0 {
		m.Confidence = sum / float64(len(relevant))
	}
	return m
}

// load returns the owned sessions with usable text, in request order.
func (s *Service) load(ctx context.Context, userID string, ids []string) ([]transcript, error) {
	found, err := s.Sessions.ListOwned(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	byID := make(map[string]sessions.Session, len(found))
	for _, sess := range found {
		byID[sess.ID] = sess
	}

	opts := s.opts()
	var out []transcript
	for _, id := range ids {
		sess, ok := byID[id]
		if !ok {
			continue
		}
		text, err := s.Cipher.Decrypt(sess.Transcript)
		if err != nil {
			logger.WithSession(id, component).WithField("error", err.Error()).Warn("transcript cannot be decrypted, session skipped")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, transcript{
			session:   sess,
			sentences: SplitSentences(text, opts.MinSentenceLength, opts.MaxCandidates),
		})
	}
	if len(out) == 0 {
		return nil, analysis.ErrNoTranscript
	}
	return out, nil
}

// classifyWithRetry calls the classifier up to MaxAttempts times. When every
// attempt fails the pair degrades to no segments.
func (s *Service) classifyWithRetry(ctx context.Context, sessionID string, sentences []string, topic string) []analysis.ClassifiedSegment {
	opts := s.opts()
	log := logger.WithSession(sessionID, component).WithField("topic", topic)

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, opts.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
		start := time.Now()
		segs, err := s.Classifier.Classify(ctx, sentences, topic)
		application.ClassifierLatency.Observe(time.Since(start).Seconds())
		if err == nil {
			application.ClassifierCalls.WithLabelValues("ok").Inc()
			return segs
		}
		lastErr = err
		application.ClassifierCalls.WithLabelValues(outcome(err)).Inc()
		log.WithField("attempt", attempt).WithField("error", err.Error()).Warn("classifier attempt failed")
		if ctx.Err() != nil {
			break
		}
	}

	application.DegradedPairs.Inc()
	log.WithField("error", fmt.Sprint(lastErr)).Error("classification degraded to no segments")
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, classifier.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, classifier.ErrMalformedResponse):
		return "malformed"
	}
	return "error"
}

// cleanList trims, drops blanks and duplicates, keeps first-seen order.
func cleanList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (s *Service) opts() Options {
	o := s.Options
	d := DefaultOptions()
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	if o.MinSentenceLength <= 0 {
		o.MinSentenceLength = d.MinSentenceLength
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = d.ConfidenceThreshold
	}
	return o
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
