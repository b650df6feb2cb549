package analysisclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/logger"
)

const component = "analysisclient"

// Backend is the server side of the cache. *Client implements it.
type Backend interface {
	Fetch(ctx context.Context, sessionID string) (*Entry, error)
	Save(ctx context.Context, sessionID string, t analysis.Type, data interface{}) (string, error)
	DeleteFrame(ctx context.Context, sessionID, word string) error
}

// Cache mirrors the analysis records of a working set of sessions. The server
// stays the source of truth: every write is followed by a re-fetch.
//
// Entries for sessions that leave the working set are kept, so switching
// back to them shows the last known data until the next LoadAll.
type Cache struct {
	backend     Backend
	concurrency int

	mu      sync.RWMutex
	entries map[string]*Entry
	working []string
	loading bool
	lastErr error
	// bumped by every successful write; LoadAll drops results fetched under an older value
	gen map[string]uint64

	fetches singleflight.Group
}

// NewCache builds a cache. concurrency bounds parallel fetches in LoadAll;
// <= 0 means 8.
func NewCache(backend Backend, concurrency int) *Cache {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Cache{backend: backend, concurrency: concurrency, entries: map[string]*Entry{}, gen: map[string]uint64{}}
}

// SetWorkingSet replaces the selected sessions without fetching.
func (c *Cache) SetWorkingSet(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	ws := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ws = append(ws, id)
	}
	c.mu.Lock()
	c.working = ws
	c.mu.Unlock()
}

func (c *Cache) WorkingSet() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.working...)
}

// LoadAll makes ids the working set and fetches all of them concurrently.
// A failed fetch leaves that session without data and is reported by Err;
// only a cancelled ctx fails the call.
func (c *Cache) LoadAll(ctx context.Context, ids []string) error {
	c.SetWorkingSet(ids)
	ws := c.WorkingSet()

	c.mu.Lock()
	c.loading = true
	snap := make([]uint64, len(ws))
	for i, id := range ws {
		snap[i] = c.gen[id]
	}
	c.mu.Unlock()

	results := make([]*Entry, len(ws))
	failures := make([]error, len(ws))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ws {
		i, id := i, id
		g.Go(func() error {
			e, err := c.fetch(ctx, id)
			if err != nil {
				failures[i] = fmt.Errorf("session %s: %w", id, err)
				logger.WithSession(id, component).WithField("error", err.Error()).Warn("analysis fetch failed, session shown without data")
				return nil
			}
			results[i] = e
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err := ctx.Err(); err != nil {
		c.lastErr = err
		return err
	}
	for i, id := range ws {
		if c.gen[id] != snap[i] {
			// a write landed while this fetch was in flight, its entry is newer
			failures[i] = nil
			continue
		}
		if results[i] == nil {
			delete(c.entries, id)
			continue
		}
		c.entries[id] = results[i]
	}
	c.lastErr = errors.Join(failures...)
	return nil
}

// fetch collapses concurrent loads of the same session into one request.
func (c *Cache) fetch(ctx context.Context, sessionID string) (*Entry, error) {
	v, err, _ := c.fetches.Do(sessionID, func() (interface{}, error) {
		return c.backend.Fetch(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	e, _ := v.(*Entry)
	return e, nil
}

// Save upserts one analysis and then re-fetches that session, so the cache
// holds the server's merge result rather than a local guess.
func (c *Cache) Save(ctx context.Context, sessionID string, t analysis.Type, data interface{}) (string, error) {
	id, err := c.backend.Save(ctx, sessionID, t, data)
	if err != nil {
		c.setErr(err)
		return "", err
	}
	g := c.written(sessionID)
	// fetch langsung, jangan ikut fetch lama yang mungkin masih jalan
	e, err := c.backend.Fetch(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("refresh session %s after save: %w", sessionID, err)
		c.setErr(err)
		return id, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[sessionID] != g {
		// a later write owns the entry
		return id, nil
	}
	if e == nil {
		delete(c.entries, sessionID)
	} else {
		c.entries[sessionID] = e
	}
	c.lastErr = nil
	return id, nil
}

// DeleteSemanticFrame removes one target word on the server, then from the
// cached entry. Removing the last word clears the field.
func (c *Cache) DeleteSemanticFrame(ctx context.Context, sessionID, word string) error {
	if err := c.backend.DeleteFrame(ctx, sessionID, word); err != nil {
		c.setErr(err)
		return err
	}
	c.written(sessionID)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sessionID]
	if !ok {
		return nil
	}
	cp := *e
	rest, _ := analysis.DropFrame(e.SemanticFrames, word)
	if len(rest) == 0 {
		rest = nil
	}
	cp.SemanticFrames = rest
	c.entries[sessionID] = &cp
	return nil
}

// written marks sessionID as changed on the server. Loads already in flight
// for it are discarded, and later loads do not join them.
func (c *Cache) written(sessionID string) uint64 {
	c.mu.Lock()
	c.gen[sessionID]++
	g := c.gen[sessionID]
	c.mu.Unlock()
	c.fetches.Forget(sessionID)
	return g
}

// AllHave reports whether every session in the working set has usable data of
// type t. Sentiment must carry all eight emotions and a numeric valence.
// An empty working set has nothing to show and reports false.
func (c *Cache) AllHave(t analysis.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.working) == 0 {
		return false
	}
	for _, id := range c.working {
		e, ok := c.entries[id]
		if !ok || !has(e, t) {
			return false
		}
	}
	return true
}

func has(e *Entry, t analysis.Type) bool {
	switch t {
	case analysis.TypeSentiment:
		return analysis.ValidSentiment(e.Sentiment)
	case analysis.TypeTopics:
		return present(e.Topics)
	case analysis.TypeCustomTopics:
		return len(e.CustomTopicSearches) > 0
	case analysis.TypeSemanticFrame:
		return len(e.SemanticFrames) > 0
	}
	return false
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Entry returns a copy of the cached entry for sessionID.
func (c *Cache) Entry(sessionID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sessionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

type SessionSentiment struct {
	SessionID    string
	SessionTitle string
	Sentiment    analysis.Sentiment
}

// Sentiments lists the valid sentiment results of the working set.
func (c *Cache) Sentiments() []SessionSentiment {
	var out []SessionSentiment
	c.each(func(e *Entry) {
		if !analysis.ValidSentiment(e.Sentiment) {
			return
		}
		var s analysis.Sentiment
		if err := json.Unmarshal(e.Sentiment, &s); err != nil {
			return
		}
		out = append(out, SessionSentiment{SessionID: e.SessionID, SessionTitle: e.Title(), Sentiment: s})
	})
	return out
}

type SessionTopics struct {
	SessionID    string
	SessionTitle string
	Topics       json.RawMessage
	KeyTopics    json.RawMessage
}

func (c *Cache) TopicResults() []SessionTopics {
	var out []SessionTopics
	c.each(func(e *Entry) {
		if !present(e.Topics) {
			return
		}
		out = append(out, SessionTopics{SessionID: e.SessionID, SessionTitle: e.Title(), Topics: e.Topics, KeyTopics: e.KeyTopics})
	})
	return out
}

// SemanticFrameWords lists every analyzed target word across the working
// set, deduplicated and sorted.
func (c *Cache) SemanticFrameWords() []string {
	seen := map[string]struct{}{}
	c.each(func(e *Entry) {
		for w := range e.SemanticFrames {
			seen[w] = struct{}{}
		}
	})
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

type SessionFrame struct {
	SessionID    string
	SessionTitle string
	Frame        analysis.SemanticFrame
}

// Frames returns the analyses of word in working-set order.
func (c *Cache) Frames(word string) []SessionFrame {
	var out []SessionFrame
	c.each(func(e *Entry) {
		if f, ok := e.SemanticFrames[word]; ok {
			out = append(out, SessionFrame{SessionID: e.SessionID, SessionTitle: e.Title(), Frame: f})
		}
	})
	return out
}

// CustomTopicSearches flattens the searches of the working set. A batch
// stored on several sessions appears once; newest first.
func (c *Cache) CustomTopicSearches() []analysis.CustomTopicSearch {
	type key struct {
		query string
		ts    time.Time
	}
	seen := map[key]struct{}{}
	var out []analysis.CustomTopicSearch
	c.each(func(e *Entry) {
		for _, s := range e.CustomTopicSearches {
			k := key{s.Query, s.Timestamp.UTC()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, s)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err is the last load or write failure, nil after a clean LoadAll or Save.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Cache) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// each visits cached entries of the working set in order.
func (c *Cache) each(fn func(e *Entry)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.working {
		if e, ok := c.entries[id]; ok {
			fn(e)
		}
	}
}
