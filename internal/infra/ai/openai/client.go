package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/domain/classifier"
	"github.com/bryanwahyu/sessionlens/internal/infra/ai/prompt"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 4000
)

// Classifier labels sentences with a chat completion in JSON mode.
type Classifier struct {
	*openai.Client
	Model     string
	MaxTokens int
}

// NewClassifier builds a client. baseURL may be empty for the public API.
func NewClassifier(apiKey, baseURL, model string, maxTokens int) *Classifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Classifier{Client: openai.NewClientWithConfig(cfg), Model: model, MaxTokens: maxTokens}
}

var _ classifier.Classifier = (*Classifier)(nil)

func (c *Classifier) Classify(ctx context.Context, sentences []string, topic string) ([]analysis.ClassifiedSegment, error) {
	if len(sentences) == 0 {
		return nil, nil
	}
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	limit := c.MaxTokens
	if limit <= 0 {
		limit = defaultMaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserPrompt(sentences, topic)},
		},
	}
	// model reasoning (o1/o3/o4/gpt-5*) pakai MaxCompletionTokens dan tidak terima temperature
	if reasoningModel(model) {
		req.MaxCompletionTokens = limit
	} else {
		req.MaxTokens = limit
		req.Temperature = 0.1
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", classifier.ErrQuotaExceeded, apiErr.Message)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", classifier.ErrQuotaExceeded, reqErr.Err)
		}
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", classifier.ErrMalformedResponse)
	}
	return parseClassifications(resp.Choices[0].Message.Content, sentences)
}

func reasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// parseClassifications maps the model answer back onto the input sentences.
// Entries pointing outside the list are ignored.
func parseClassifications(content string, sentences []string) ([]analysis.ClassifiedSegment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", classifier.ErrMalformedResponse)
	}
	var out prompt.Response
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", classifier.ErrMalformedResponse, err)
	}

	segments := make([]analysis.ClassifiedSegment, 0, len(out.Classifications))
	for _, c := range out.Classifications {
		if c.SentenceID < 1 || c.SentenceID > len(sentences) {
			continue
		}
		text := strings.TrimSpace(c.Text)
		if text == "" {
			text = sentences[c.SentenceID-1]
		}
		var topicID *int
		if c.TopicID != nil && *c.TopicID == 1 {
			one := 1
			topicID = &one
		}
		segments = append(segments, analysis.ClassifiedSegment{
			Text:       text,
			TopicID:    topicID,
			Confidence: clamp(c.Confidence),
		})
	}
	return segments, nil
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
