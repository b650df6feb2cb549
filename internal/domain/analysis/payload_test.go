package analysis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := ParseType("keywords")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "sentiment, topics, custom_topics, semantic_frame")
}

func TestDecodePayload_Sentiment(t *testing.T) {
	p, err := DecodePayload(TypeSentiment, json.RawMessage(`{
		"z_scores": {"joy": 1.2, "fear": -0.3},
		"emotional_valence": 0.4,
		"sentiment_score": 0.1,
		"language": "english"
	}`))
	require.NoError(t, err)

	sp, ok := p.(SentimentPayload)
	require.True(t, ok)
	assert.Equal(t, 1.2, sp.Sentiment.ZScores["joy"])
	assert.Equal(t, 0.4, sp.Sentiment.EmotionalValence)
	assert.NotNil(t, sp.Sentiment.SignificantEmotions)
	assert.Equal(t, "english", p.Lang())
}

func TestDecodePayload_TopicsKeepsDocument(t *testing.T) {
	doc := `{"topics":[{"topic_id":1,"keywords":["lavoro"]}],"coherence":0.5}`
	p, err := DecodePayload(TypeTopics, json.RawMessage(doc))
	require.NoError(t, err)

	tp := p.(TopicsPayload)
	assert.JSONEq(t, doc, string(tp.Document))
	assert.JSONEq(t, `[{"topic_id":1,"keywords":["lavoro"]}]`, string(tp.KeyTopics))
}

func TestDecodePayload_TopicsWithoutList(t *testing.T) {
	p, err := DecodePayload(TypeTopics, json.RawMessage(`{"coherence":0.5}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(p.(TopicsPayload).KeyTopics))
}

func TestDecodePayload_CustomTopics(t *testing.T) {
	p, err := DecodePayload(TypeCustomTopics, json.RawMessage(`{
		"query": "lavoro, famiglia",
		"timestamp": "2025-03-01T10:00:00Z",
		"results": [{"sessionId":"s1","sessionTitle":"First","topics":[]}]
	}`))
	require.NoError(t, err)

	entry := p.(CustomTopicsPayload).Entry
	assert.Equal(t, "lavoro, famiglia", entry.Query)
	assert.Equal(t, 2025, entry.Timestamp.Year())
	require.Len(t, entry.Results, 1)
	assert.Equal(t, "s1", entry.Results[0].SessionID)
}

func TestDecodePayload_SemanticFrame(t *testing.T) {
	p, err := DecodePayload(TypeSemanticFrame, json.RawMessage(`{
		"target_word": "Madre",
		"semantic_frame": {"connotation": "positive"},
		"network_plot": "data:image/png;base64,AAAA",
		"session_id": "s1"
	}`))
	require.NoError(t, err)

	f := p.(SemanticFramePayload).Frame
	assert.Equal(t, "Madre", f.TargetWord)
	assert.JSONEq(t, `{"connotation": "positive"}`, string(f.SemanticFrame))
	require.NotNil(t, f.NetworkPlot)
}

func TestDecodePayload_Rejects(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		data string
	}{
		{"missing data", TypeSentiment, ``},
		{"null data", TypeTopics, `null`},
		{"array data", TypeTopics, `[1,2]`},
		{"non numeric z score", TypeSentiment, `{"z_scores":{"joy":"high"}}`},
		{"search without query", TypeCustomTopics, `{"results":[]}`},
		{"frame without word", TypeSemanticFrame, `{"target_word":"  "}`},
		{"unknown type", Type("keywords"), `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePayload(tc.typ, json.RawMessage(tc.data))
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}
