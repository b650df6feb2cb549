package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Classification is one labelled sentence as returned by the model.
type Classification struct {
	SentenceID int     `json:"sentence_id" jsonschema:"minimum=1" jsonschema_description:"1-based index of the sentence in the numbered list"`
	TopicID    *int    `json:"topic_id" jsonschema_description:"1 when the sentence is clearly about the topic, null otherwise"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"how sure the label is, between 0 and 1"`
	Text       string  `json:"text" jsonschema_description:"the sentence text, copied verbatim"`
}

// Response is the JSON object the model must produce.
type Response struct {
	Classifications []Classification `json:"classifications" jsonschema_description:"one entry per input sentence, in input order"`
}

// ResponseSchema returns the JSON schema of Response, inlined without $refs.
func ResponseSchema() string {
	r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	b, err := json.MarshalIndent(r.Reflect(&Response{}), "", "  ")
	if err != nil {
		// schema generated from a static type, cannot fail
		panic(err)
	}
	return string(b)
}

// SystemPrompt gives the model its role and the output contract.
func SystemPrompt() string {
	return `You are an expert analyst of psychotherapy session transcripts. You classify sentences by whether they talk about a given topic.

Requirements:
- Output must be a single JSON object, no markdown, no commentary, no code fences.
- Return exactly one classification per input sentence, keyed by its sentence_id.
- topic_id is 1 only when the sentence is clearly related to the topic, otherwise null.
- confidence above 0.7 means a direct and explicit reference to the topic.
- confidence between 0.4 and 0.7 means an indirect but reasonable link.
- confidence below 0.4 means a weak link; prefer topic_id null in that case.
- When in doubt, use null.

The JSON object must validate against this schema:
` + ResponseSchema()
}

// UserPrompt lists the numbered sentences and the topic to look for.
func UserPrompt(sentences []string, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nSentences:\n", strings.TrimSpace(topic))
	for i, s := range sentences {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nClassify every sentence and respond only with the JSON object.")
	return b.String()
}
