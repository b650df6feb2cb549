package analysisclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
)

// Entry is the cached projection of one session's analysis record.
type Entry struct {
	ID                  string                            `json:"id"`
	SessionID           string                            `json:"sessionId"`
	SessionTitle        string                            `json:"sessionTitle"`
	Sentiment           json.RawMessage                   `json:"sentiment"`
	Topics              json.RawMessage                   `json:"topics"`
	KeyTopics           json.RawMessage                   `json:"keyTopics"`
	CustomTopicSearches []analysis.CustomTopicSearch      `json:"customTopicSearches"`
	SemanticFrames      map[string]analysis.SemanticFrame `json:"semanticFrames"`
	Summary             *string                           `json:"summary"`
	UpdatedAt           time.Time                         `json:"updatedAt"`
}

// Title falls back to a generic label for untitled sessions.
func (e *Entry) Title() string {
	if strings.TrimSpace(e.SessionTitle) != "" {
		return e.SessionTitle
	}
	return "Session " + e.SessionID
}

// Client talks to the analyses HTTP API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, HTTP: hc}
}

// Fetch returns nil, nil when the session has no stored analyses yet.
func (c *Client) Fetch(ctx context.Context, sessionID string) (*Entry, error) {
	var out struct {
		Cached   bool   `json:"cached"`
		Analysis *Entry `json:"analysis"`
	}
	q := url.Values{"sessionId": {sessionID}}
	if err := c.do(ctx, http.MethodGet, "/api/analyses?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if !out.Cached {
		return nil, nil
	}
	return out.Analysis, nil
}

func (c *Client) Save(ctx context.Context, sessionID string, t analysis.Type, data interface{}) (string, error) {
	body := map[string]interface{}{
		"sessionId":    sessionID,
		"analysisType": t,
		"analysisData": data,
	}
	var out struct {
		AnalysisID string `json:"analysisId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/analyses", body, &out); err != nil {
		return "", err
	}
	return out.AnalysisID, nil
}

func (c *Client) DeleteFrame(ctx context.Context, sessionID, word string) error {
	q := url.Values{
		"sessionId":    {sessionID},
		"analysisType": {string(analysis.TypeSemanticFrame)},
		"targetWord":   {word},
	}
	return c.do(ctx, http.MethodDelete, "/api/analyses?"+q.Encode(), nil, nil)
}

func (c *Client) DeleteAll(ctx context.Context, sessionID string) error {
	q := url.Values{"sessionId": {sessionID}}
	return c.do(ctx, http.MethodDelete, "/api/analyses?"+q.Encode(), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusError maps API statuses back onto the domain errors.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return analysis.ErrUnauthorized
	case http.StatusNotFound:
		if body.Error == analysis.ErrNoTranscript.Error() {
			return analysis.ErrNoTranscript
		}
		return analysis.ErrNotFound
	case http.StatusBadRequest:
		return analysis.Invalid("", "%s", body.Error)
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return errors.New("analyses api: " + resp.Status + ": " + body.Error)
}
