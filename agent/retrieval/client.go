package retrieval

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

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
)

type Config struct {
	URL     string        `split_words:"true" required:"true"`
	APIKey  string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
	TopK    int           `split_words:"true" default:"4"`
}

// Client queries the knowledge retrieval service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	topK       int
}

var _ contractx.Retriever = (*Client)(nil)

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []struct {
		Text      string  `json:"text"`
		Score     float64 `json:"score"`
		SourceRef string  `json:"source_ref"`
	} `json:"results"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("retrieval url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		topK: topK,
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Search returns the topK highest-scoring snippets for the query. An empty
// result list is a valid outcome, not an error.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]contractx.Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = c.topK
	}

	body, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal search request: %v", contractx.ErrRetrievalService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build search request: %v", contractx.ErrRetrievalService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrRetrievalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read search response: %v", contractx.ErrRetrievalService, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status=%d body=%s", contractx.ErrRetrievalService, resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", contractx.ErrRetrievalService, err)
	}

	snippets := make([]contractx.Snippet, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		snippets = append(snippets, contractx.Snippet{
			Text:      r.Text,
			Score:     r.Score,
			SourceRef: r.SourceRef,
		})
	}
	return snippets, nil
}
