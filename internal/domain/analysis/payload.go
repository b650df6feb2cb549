package analysis

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Payload is the typed body of an upsert. The set of implementations is closed:
// one variant per Type, built only by DecodePayload.
type Payload interface {
	Type() Type
	Lang() string
	sealed()
}

type meta struct {
	Language string `json:"language,omitempty"`
}

func (m meta) Lang() string { return m.Language }
func (meta) sealed()         {}

type SentimentPayload struct {
	meta
	Sentiment Sentiment
}

func (SentimentPayload) Type() Type { return TypeSentiment }

// TopicsPayload keeps the whole topic-modelling document plus its "topics" list.
type TopicsPayload struct {
	meta
	Document  json.RawMessage
	KeyTopics json.RawMessage
}

func (TopicsPayload) Type() Type { return TypeTopics }

type CustomTopicsPayload struct {
	meta
	Entry CustomTopicSearch
}

func (CustomTopicsPayload) Type() Type { return TypeCustomTopics }

type SemanticFramePayload struct {
	meta
	Frame SemanticFrame
}

func (SemanticFramePayload) Type() Type { return TypeSemanticFrame }

// DecodePayload turns an untyped analysisData document into the variant for t.
func DecodePayload(t Type, data json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, Invalid("analysisData", "is required")
	}
	if trimmed[0] != '{' {
		return nil, Invalid("analysisData", "must be a JSON object")
	}

	switch t {
	case TypeSentiment:
		var in struct {
			Sentiment
			meta
		}
		if err := json.Unmarshal(trimmed, &in); err != nil {
			return nil, Invalid("analysisData", "malformed sentiment result: %v", err)
		}
		if in.ZScores == nil {
			in.ZScores = map[string]float64{}
		}
		if in.SignificantEmotions == nil {
			in.SignificantEmotions = map[string]float64{}
		}
		return SentimentPayload{meta: in.meta, Sentiment: in.Sentiment}, nil

	case TypeTopics:
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, Invalid("analysisData", "malformed topics result: %v", err)
		}
		p := TopicsPayload{Document: json.RawMessage(trimmed), KeyTopics: json.RawMessage("[]")}
		if kt, ok := doc["topics"]; ok && !bytes.Equal(bytes.TrimSpace(kt), []byte("null")) {
			p.KeyTopics = kt
		}
		if lang, ok := doc["language"]; ok {
			_ = json.Unmarshal(lang, &p.Language)
		}
		return p, nil

	case TypeCustomTopics:
		var in struct {
			CustomTopicSearch
			meta
		}
		if err := json.Unmarshal(trimmed, &in); err != nil {
			return nil, Invalid("analysisData", "malformed custom topic search: %v", err)
		}
		if strings.TrimSpace(in.Query) == "" {
			return nil, Invalid("analysisData.query", "is required")
		}
		return CustomTopicsPayload{meta: in.meta, Entry: in.CustomTopicSearch}, nil

	case TypeSemanticFrame:
		var in struct {
			SemanticFrame
			meta
		}
		if err := json.Unmarshal(trimmed, &in); err != nil {
			return nil, Invalid("analysisData", "malformed semantic frame: %v", err)
		}
		if strings.TrimSpace(in.TargetWord) == "" {
			return nil, Invalid("analysisData.target_word", "is required")
		}
		return SemanticFramePayload{meta: in.meta, Frame: in.SemanticFrame}, nil
	}
	return nil, unsupportedType(string(t))
}
