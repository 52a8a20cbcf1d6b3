package qstash

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
	URL          string        `split_words:"true" required:"true"`
	Token        string        `split_words:"true" required:"true"`
	LeadEndpoint string        `split_words:"true" required:"true"`
	Timeout      time.Duration `split_words:"true" default:"10s"`
}

// Client publishes completed leads through the QStash message queue. QStash
// owns retries and delivery to the configured endpoint; the agent only has
// to win the enqueue.
type Client struct {
	baseURL      string
	token        string
	leadEndpoint string
	httpClient   *http.Client
}

var _ contractx.LeadPublisher = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	leadEndpoint := strings.TrimSpace(cfg.LeadEndpoint)
	if leadEndpoint == "" {
		return nil, errors.New("qstash lead endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        strings.TrimSpace(cfg.Token),
		leadEndpoint: leadEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish enqueues the lead for delivery. Deduplication keys on the session
// id so a replayed publish of the same completed session is a no-op.
func (c *Client) Publish(ctx context.Context, lead contractx.Lead) error {
	if strings.TrimSpace(lead.SessionID) == "" {
		return errors.New("lead session id is required")
	}

	body, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}

	publishURL := c.baseURL + "/v2/publish/" + url.PathEscape(c.leadEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Deduplication-Id", "lead-"+lead.SessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish lead: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("qstash publish status=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}
