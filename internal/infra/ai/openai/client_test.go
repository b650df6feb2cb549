package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/sessionlens/internal/domain/classifier"
)

func fakeCompletions(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifyParsesAnswer(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, `{"classifications":[
		{"sentence_id":1,"topic_id":1,"confidence":0.9,"text":"I am stressed at work"},
		{"sentence_id":2,"topic_id":null,"confidence":0.2,"text":""},
		{"sentence_id":9,"topic_id":1,"confidence":0.8,"text":"out of range"},
		{"sentence_id":3,"topic_id":1,"confidence":1.7,"text":"my boss again"}
	]}`)
	c := NewClassifier("test-key", srv.URL, "gpt-4o-mini", 0)

	got, err := c.Classify(context.Background(), []string{"I am stressed at work", "the sea was calm", "my boss again"}, "work")
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.NotNil(t, got[0].TopicID)
	assert.Equal(t, 1, *got[0].TopicID)
	assert.True(t, got[0].Relevant(0.4))

	assert.Nil(t, got[1].TopicID)
	assert.Equal(t, "the sea was calm", got[1].Text, "blank text falls back to the input sentence")

	assert.Equal(t, 1.0, got[2].Confidence)
}

func TestClassifyQuotaExceeded(t *testing.T) {
	srv := fakeCompletions(t, http.StatusTooManyRequests, "")
	c := NewClassifier("test-key", srv.URL, "gpt-4o-mini", 0)

	_, err := c.Classify(context.Background(), []string{"a sentence long enough"}, "work")
	require.Error(t, err)
	assert.True(t, errors.Is(err, classifier.ErrQuotaExceeded), "got %v", err)
}

func TestClassifyMalformed(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, "not json")
	c := NewClassifier("test-key", srv.URL, "gpt-4o-mini", 0)

	_, err := c.Classify(context.Background(), []string{"a sentence long enough"}, "work")
	assert.ErrorIs(t, err, classifier.ErrMalformedResponse)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := NewClassifier("test-key", "http://127.0.0.1:1", "gpt-4o-mini", 0)
	got, err := c.Classify(context.Background(), nil, "work")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReasoningModel(t *testing.T) {
	assert.True(t, reasoningModel("o3-mini"))
	assert.True(t, reasoningModel("gpt-5-nano"))
	assert.False(t, reasoningModel("gpt-4o-mini"))
}
