package analysis

import (
	"bytes"
	"encoding/json"
	"time"
)

// Type enum, closed set of analysis kinds stored per session
type Type string

const (
	TypeSentiment     Type = "sentiment"
	TypeTopics        Type = "topics"
	TypeCustomTopics  Type = "custom_topics"
	TypeSemanticFrame Type = "semantic_frame"
)

// Types lists every recognized analysis type in a stable order.
var Types = []Type{TypeSentiment, TypeTopics, TypeCustomTopics, TypeSemanticFrame}

// ParseType rejects anything outside Types with ErrUnsupportedType.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", unsupportedType(s)
}

// Emotions are the eight categories a sentiment result must score.
var Emotions = [8]string{"joy", "trust", "fear", "surprise", "sadness", "disgust", "anger", "anticipation"}

// Sentiment value object
type Sentiment struct {
	ZScores             map[string]float64 `json:"z_scores"`
	EmotionalValence    float64            `json:"emotional_valence"`
	SignificantEmotions map[string]float64 `json:"significant_emotions"`
	FlowerPlot          *string            `json:"flower_plot"`
	SentimentScore      float64            `json:"sentiment_score"`
}

// ValidSentiment reports whether raw is a sentiment document with all eight
// emotion scores and the valence present as JSON numbers.
func ValidSentiment(raw json.RawMessage) bool {
	var doc struct {
		ZScores          map[string]json.RawMessage `json:"z_scores"`
		EmotionalValence json.RawMessage            `json:"emotional_valence"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	if !isNumber(doc.EmotionalValence) {
		return false
	}
	for _, e := range Emotions {
		if !isNumber(doc.ZScores[e]) {
			return false
		}
	}
	return true
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var f float64
	return json.Unmarshal(raw, &f) == nil
}

// SessionRef names a session inside a search entry.
type SessionRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ClassifiedSegment is one sentence as labelled by the classifier.
// TopicID is 1 when the sentence matches the topic, nil otherwise.
type ClassifiedSegment struct {
	Text       string  `json:"text"`
	TopicID    *int    `json:"topic_id"`
	Confidence float64 `json:"confidence"`
}

// Relevant reports whether the segment matched with confidence above threshold.
func (s ClassifiedSegment) Relevant(threshold float64) bool {
	return s.TopicID != nil && *s.TopicID == 1 && s.Confidence > threshold
}

type TopicMatch struct {
	Topic            string              `json:"topic"`
	TopicID          int                 `json:"topicId,omitempty"`
	RelevantSegments []ClassifiedSegment `json:"relevantSegments"`
	TotalMatches     int                 `json:"totalMatches"`
	Confidence       float64             `json:"confidence"`
}

type SessionTopicResult struct {
	SessionID    string       `json:"sessionId"`
	SessionTitle string       `json:"sessionTitle"`
	Topics       []TopicMatch `json:"topics"`
}

type TopicDescriptor struct {
	TopicID     int      `json:"topic_id"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// CustomTopicSearch is immutable once appended to a record.
type CustomTopicSearch struct {
	Query        string               `json:"query"`
	Timestamp    time.Time            `json:"timestamp"`
	Sessions     []SessionRef         `json:"sessions"`
	Results      []SessionTopicResult `json:"results"`
	CustomTopics []TopicDescriptor    `json:"customTopics,omitempty"`
	Summary      string               `json:"summary"`
}

// SemanticFrame is the analysis of one target word. Nested analysis blocks are
// kept as produced by the analyzer.
type SemanticFrame struct {
	TargetWord        string          `json:"target_word"`
	SemanticFrame     json.RawMessage `json:"semantic_frame,omitempty"`
	EmotionalAnalysis json.RawMessage `json:"emotional_analysis,omitempty"`
	ContextAnalysis   json.RawMessage `json:"context_analysis,omitempty"`
	Statistics        json.RawMessage `json:"statistics,omitempty"`
	NetworkPlot       *string         `json:"network_plot,omitempty"`
	Timestamp         string          `json:"timestamp,omitempty"`
	SessionID         string          `json:"session_id,omitempty"`
}

// View is the decoded, caller-facing shape of a stored record.
type View struct {
	ID                  string                   `json:"id"`
	SessionID           string                   `json:"sessionId"`
	SessionTitle        string                   `json:"sessionTitle"`
	PatientID           string                   `json:"patientId,omitempty"`
	Sentiment           *Sentiment               `json:"sentiment"`
	Topics              json.RawMessage          `json:"topics"`
	KeyTopics           json.RawMessage          `json:"keyTopics,omitempty"`
	CustomTopicSearches []CustomTopicSearch      `json:"customTopicSearches"`
	SemanticFrames      map[string]SemanticFrame `json:"semanticFrames"`
	Summary             *string                  `json:"summary"`
	Language            string                   `json:"language"`
	AnalysisVersion     string                   `json:"analysisVersion"`
	CreatedAt           time.Time                `json:"createdAt"`
	UpdatedAt           time.Time                `json:"updatedAt"`
	CorruptFields       []string                 `json:"corruptFields,omitempty"`
}

// SavedSearch is a search entry as listed across all of a principal's sessions.
type SavedSearch struct {
	ID string `json:"id"`
	CustomTopicSearch
}
