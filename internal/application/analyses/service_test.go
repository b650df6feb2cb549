package analyses_test

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/sessionlens/internal/application/analyses"
	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/domain/sessions"
	cryptox "github.com/bryanwahyu/sessionlens/internal/infra/crypto"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/sqlite"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/sqlstore"
)

type env struct {
	db  *sql.DB
	svc *analyses.Service
}

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func setup(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "analyses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))

	sessRepo := sqlstore.NewSessionRepository(db, sqlstore.SQLite)
	for _, s := range []sessions.Session{
		{ID: "s1", UserID: "u1", PatientID: "p1", Title: "Intake"},
		{ID: "s2", UserID: "u1", PatientID: "p1", Title: "Follow-up"},
		{ID: "other", UserID: "u2", PatientID: "p9", Title: "Not yours"},
	} {
		s.CreatedAt = time.Now().UTC()
		require.NoError(t, sessRepo.Create(ctx, s))
	}

	cipher, err := cryptox.NewCipher(strings.Repeat("k", 32), 1000)
	require.NoError(t, err)

	return env{db: db, svc: &analyses.Service{
		Repo:     sqlstore.NewAnalysisRepository(db, sqlstore.SQLite),
		Sessions: sessRepo,
		Cipher:   cipher,
		Clock:    &tickClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
}

func upsert(t *testing.T, svc *analyses.Service, sessionID, typ, data string) string {
	t.Helper()
	id, err := svc.Upsert(context.Background(), analyses.UpsertCommand{
		UserID: "u1", SessionID: sessionID, Type: typ, Data: json.RawMessage(data),
	})
	require.NoError(t, err)
	return id
}

func view(t *testing.T, svc *analyses.Service, sessionID string) *analysis.View {
	t.Helper()
	res, err := svc.Get(context.Background(), "u1", sessionID)
	require.NoError(t, err)
	require.True(t, res.Cached)
	return res.Analysis
}

const sentimentDoc = `{"z_scores":{"joy":1.2,"trust":0.3,"fear":-0.4,"surprise":0,"sadness":2.1,"disgust":-1,"anger":0.5,"anticipation":0.9},
	"emotional_valence":-0.2,"significant_emotions":{"sadness":2.1},"sentiment_score":0.35,"flower_plot":null}`

func TestGet_NotCachedVersusNotFound(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := e.svc.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Nil(t, res.Analysis)

	_, err = e.svc.Get(ctx, "u1", "nope")
	assert.ErrorIs(t, err, analysis.ErrNotFound)

	_, err = e.svc.Get(ctx, "", "s1")
	assert.ErrorIs(t, err, analysis.ErrUnauthorized)

	var verr *analysis.ValidationError
	_, err = e.svc.Get(ctx, "u1", " ")
	assert.ErrorAs(t, err, &verr)
}

func TestGet_ForeignSessionLooksMissing(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, errForeign := e.svc.Get(ctx, "u1", "other")
	_, errMissing := e.svc.Get(ctx, "u1", "does-not-exist")
	require.Error(t, errForeign)
	assert.Equal(t, errMissing.Error(), errForeign.Error())
	assert.ErrorIs(t, errForeign, analysis.ErrNotFound)

	_, err := e.svc.Upsert(ctx, analyses.UpsertCommand{UserID: "u1", SessionID: "other", Type: "sentiment", Data: json.RawMessage(sentimentDoc)})
	assert.ErrorIs(t, err, analysis.ErrNotFound)
}

func TestUpsert_Validation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		cmd   analyses.UpsertCommand
		field string
	}{
		{"missing session", analyses.UpsertCommand{UserID: "u1", Type: "sentiment", Data: json.RawMessage(`{}`)}, "sessionId"},
		{"missing type", analyses.UpsertCommand{UserID: "u1", SessionID: "s1", Data: json.RawMessage(`{}`)}, "analysisType"},
		{"unknown type", analyses.UpsertCommand{UserID: "u1", SessionID: "s1", Type: "summary", Data: json.RawMessage(`{}`)}, "analysisType"},
		{"missing data", analyses.UpsertCommand{UserID: "u1", SessionID: "s1", Type: "topics"}, "analysisData"},
		{"frame without word", analyses.UpsertCommand{UserID: "u1", SessionID: "s1", Type: "semantic_frame", Data: json.RawMessage(`{"statistics":{}}`)}, "analysisData.target_word"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.svc.Upsert(ctx, tc.cmd)
			var verr *analysis.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	_, err := e.svc.Upsert(ctx, analyses.UpsertCommand{UserID: "u1", SessionID: "s1", Type: "summary", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, analysis.ErrUnsupportedType)
	assert.Contains(t, err.Error(), "sentiment, topics, custom_topics, semantic_frame")

	res, err := e.svc.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, res.Cached, "rejected writes never touch the store")
}

func TestUpsert_CreatesOneRecordPerSession(t *testing.T) {
	e := setup(t)
	id1 := upsert(t, e.svc, "s1", "sentiment", sentimentDoc)
	id2 := upsert(t, e.svc, "s1", "topics", `{"topics":[{"label":"work"}]}`)
	assert.Equal(t, id1, id2)

	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM session_analyses WHERE session_id = 's1'`).Scan(&n))
	assert.Equal(t, 1, n)

	v := view(t, e.svc, "s1")
	assert.Equal(t, "Intake", v.SessionTitle)
	assert.Equal(t, "p1", v.PatientID)
	assert.Equal(t, "italian", v.Language)
	assert.Equal(t, "1.0.0", v.AnalysisVersion)
	assert.True(t, v.UpdatedAt.After(v.CreatedAt))
}

func TestUpsert_SentimentLeavesTopicsUntouched(t *testing.T) {
	e := setup(t)
	topicsDoc := `{"topics":[{"label":"work","weight":0.7}],"model":"lda","language":"english"}`
	upsert(t, e.svc, "s1", "topics", topicsDoc)

	var before string
	require.NoError(t, e.db.QueryRow(`SELECT topic_analysis_result FROM session_analyses WHERE session_id = 's1'`).Scan(&before))

	upsert(t, e.svc, "s1", "sentiment", sentimentDoc)

	var after string
	require.NoError(t, e.db.QueryRow(`SELECT topic_analysis_result FROM session_analyses WHERE session_id = 's1'`).Scan(&after))
	assert.Equal(t, before, after)

	v := view(t, e.svc, "s1")
	require.NotNil(t, v.Sentiment)
	assert.Equal(t, 2.1, v.Sentiment.ZScores["sadness"])
	assert.Equal(t, -0.2, v.Sentiment.EmotionalValence)
	assert.JSONEq(t, topicsDoc, string(v.Topics))
	assert.JSONEq(t, `[{"label":"work","weight":0.7}]`, string(v.KeyTopics))
	assert.Equal(t, "italian", v.Language, "sentiment write without language resets it to the default")
}

func TestUpsert_CustomTopicsKeepsLastFifty(t *testing.T) {
	e := setup(t)
	for i := 0; i < 57; i++ {
		upsert(t, e.svc, "s1", "custom_topics", fmt.Sprintf(`{"query":"q%d","results":[],"sessions":[]}`, i))
	}

	v := view(t, e.svc, "s1")
	require.Len(t, v.CustomTopicSearches, analysis.MaxCustomSearches)
	for i, s := range v.CustomTopicSearches {
		assert.Equal(t, fmt.Sprintf("q%d", i+7), s.Query)
		assert.False(t, s.Timestamp.IsZero(), "missing timestamps are stamped on write")
	}
}

func TestUpsert_SemanticFrameReplacesOnlyItsKey(t *testing.T) {
	e := setup(t)
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"madre","statistics":{"n":1}}`)
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"Madre","statistics":{"n":5}}`)
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"madre","statistics":{"n":2},"context_analysis":{"k":"v"}}`)

	v := view(t, e.svc, "s1")
	require.Len(t, v.SemanticFrames, 2)
	assert.JSONEq(t, `{"n":2}`, string(v.SemanticFrames["madre"].Statistics))
	assert.JSONEq(t, `{"k":"v"}`, string(v.SemanticFrames["madre"].ContextAnalysis))
	assert.JSONEq(t, `{"n":5}`, string(v.SemanticFrames["Madre"].Statistics))
}

func TestAppendSearch_ConcurrentWritesAllSurvive(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	upsert(t, e.svc, "s1", "custom_topics", `{"query":"seed"}`)

	const writers = 6
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.svc.AppendSearch(ctx, "u1", "s1", analysis.CustomTopicSearch{Query: fmt.Sprintf("c%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	v := view(t, e.svc, "s1")
	assert.Len(t, v.CustomTopicSearches, writers+1)
}

func TestGet_CorruptFieldIsAbsent(t *testing.T) {
	e := setup(t)
	upsert(t, e.svc, "s1", "sentiment", sentimentDoc)
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"padre"}`)
	_, err := e.db.Exec(`UPDATE session_analyses SET emotions = '{broken', custom_topic_results = 'nope' WHERE session_id = 's1'`)
	require.NoError(t, err)

	v := view(t, e.svc, "s1")
	assert.Nil(t, v.Sentiment)
	assert.Empty(t, v.CustomTopicSearches)
	assert.Contains(t, v.SemanticFrames, "padre")
	assert.ElementsMatch(t, []string{"sentiment", "customTopicSearches"}, v.CorruptFields)

	// the next append starts a fresh list instead of failing
	upsert(t, e.svc, "s1", "custom_topics", `{"query":"after"}`)
	v = view(t, e.svc, "s1")
	require.Len(t, v.CustomTopicSearches, 1)
	assert.Equal(t, "after", v.CustomTopicSearches[0].Query)
}

func TestSetSummary_EncryptedAtRest(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	upsert(t, e.svc, "s1", "topics", `{"topics":[]}`)

	_, err := e.svc.SetSummary(ctx, "u1", "s1", "Patient reports better sleep.")
	require.NoError(t, err)

	var stored string
	require.NoError(t, e.db.QueryRow(`SELECT summary FROM session_analyses WHERE session_id = 's1'`).Scan(&stored))
	assert.True(t, strings.HasPrefix(stored, "enc:v1:"))
	assert.NotContains(t, stored, "sleep")

	v := view(t, e.svc, "s1")
	require.NotNil(t, v.Summary)
	assert.Equal(t, "Patient reports better sleep.", *v.Summary)
	assert.NotNil(t, v.Topics)

	_, err = e.svc.SetSummary(ctx, "u1", "s1", "")
	require.NoError(t, err)
	assert.Nil(t, view(t, e.svc, "s1").Summary)
}

func TestGet_UndecryptableSummaryIsAbsent(t *testing.T) {
	e := setup(t)
	upsert(t, e.svc, "s1", "topics", `{"topics":[]}`)
	_, err := e.db.Exec(`UPDATE session_analyses SET summary = 'enc:v1:AAAAAAAA' WHERE session_id = 's1'`)
	require.NoError(t, err)

	v := view(t, e.svc, "s1")
	assert.Nil(t, v.Summary)
	assert.Equal(t, []string{"summary"}, v.CorruptFields)
}

func TestDeleteAll(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	upsert(t, e.svc, "s1", "sentiment", sentimentDoc)

	require.NoError(t, e.svc.DeleteAll(ctx, "u1", "s1"))
	res, err := e.svc.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, res.Cached)

	assert.NoError(t, e.svc.DeleteAll(ctx, "u1", "s1"), "deleting nothing is fine")
	assert.ErrorIs(t, e.svc.DeleteAll(ctx, "u1", "other"), analysis.ErrNotFound)
}

func TestDeleteType(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.svc.DeleteType(ctx, "u1", "s1", "sentiment"), analysis.ErrNotFound)

	upsert(t, e.svc, "s1", "sentiment", sentimentDoc)
	upsert(t, e.svc, "s1", "topics", `{"topics":[1]}`)

	require.NoError(t, e.svc.DeleteType(ctx, "u1", "s1", "sentiment"))
	v := view(t, e.svc, "s1")
	assert.Nil(t, v.Sentiment)
	assert.JSONEq(t, `{"topics":[1]}`, string(v.Topics))

	assert.ErrorIs(t, e.svc.DeleteType(ctx, "u1", "s1", "everything"), analysis.ErrUnsupportedType)
}

func TestDeleteFrame(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"casa"}`)
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"scuola"}`)

	require.NoError(t, e.svc.DeleteFrame(ctx, "u1", "s1", "casa"))
	v := view(t, e.svc, "s1")
	assert.Len(t, v.SemanticFrames, 1)
	assert.Contains(t, v.SemanticFrames, "scuola")

	assert.ErrorIs(t, e.svc.DeleteFrame(ctx, "u1", "s1", "casa"), analysis.ErrNotFound)

	require.NoError(t, e.svc.DeleteFrame(ctx, "u1", "s1", "scuola"))
	var raw sql.NullString
	require.NoError(t, e.db.QueryRow(`SELECT semantic_frame_results FROM session_analyses WHERE session_id = 's1'`).Scan(&raw))
	assert.False(t, raw.Valid, "last key removed clears the column")
}

func TestSavedSearches_NewestFirstAcrossSessions(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, sid := range []string{"s1", "s2", "s1"} {
		_, err := e.svc.AppendSearch(ctx, "u1", sid, analysis.CustomTopicSearch{Query: fmt.Sprintf("q%d", i), Timestamp: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	list, err := e.svc.SavedSearches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"q2", "q1", "q0"}, []string{list[0].Query, list[1].Query, list[2].Query})
	assert.True(t, strings.HasSuffix(list[0].ID, "_"+base.Add(2*time.Hour).Format(time.RFC3339Nano)))

	none, err := e.svc.SavedSearches(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)

	e.svc.Options.SavedSearchesLimit = 2
	list, err = e.svc.SavedSearches(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type memPlots struct {
	fail bool
	put  []string
}

func (m *memPlots) PutPlot(_ context.Context, sessionID, kind string, data []byte, contentType string) (string, error) {
	if m.fail {
		return "", errors.New("bucket unavailable")
	}
	m.put = append(m.put, kind+":"+contentType+":"+string(data))
	return "https://plots.local/" + sessionID + "/" + kind + ".png", nil
}

func TestUpsert_OffloadsInlinePlots(t *testing.T) {
	e := setup(t)
	plots := &memPlots{}
	e.svc.Plots = plots

	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("PNGDATA"))
	doc := strings.Replace(sentimentDoc, `"flower_plot":null`, `"flower_plot":"`+img+`"`, 1)
	upsert(t, e.svc, "s1", "sentiment", doc)
	upsert(t, e.svc, "s1", "semantic_frame", `{"target_word":"casa","network_plot":"https://cdn.example/plot.png"}`)

	v := view(t, e.svc, "s1")
	require.NotNil(t, v.Sentiment.FlowerPlot)
	assert.Equal(t, "https://plots.local/s1/flower.png", *v.Sentiment.FlowerPlot)
	assert.Equal(t, "https://cdn.example/plot.png", *v.SemanticFrames["casa"].NetworkPlot)
	assert.Equal(t, []string{"flower:image/png:PNGDATA"}, plots.put)

	plots.fail = true
	upsert(t, e.svc, "s2", "sentiment", doc)
	assert.Equal(t, img, *view(t, e.svc, "s2").Sentiment.FlowerPlot)
}
