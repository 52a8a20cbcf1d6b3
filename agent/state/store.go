package state

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
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrVersionConflict = errors.New("session version conflict")
	ErrSessionExists   = errors.New("session already exists")
)

const (
	defaultStoreKeyPrefix = "whipsmart:session:"
	maxResponseSizeBytes  = 2 << 20
)

// Store is the persistence contract used by the turn orchestrator and the
// idle supervisor. Every mutation is conditioned on the session's version.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Create(ctx context.Context, st *Session) error
	CompareAndSwap(ctx context.Context, expectedVersion int64, st *Session) error
}

// casScript checks the stored version before overwriting; the whole check
// and write executes atomically inside Redis.
const casScript = `local cur = redis.call('GET', KEYS[1])
if not cur then return redis.error_reply('NOT_FOUND') end
local obj = cjson.decode(cur)
if tonumber(obj['version']) ~= tonumber(ARGV[1]) then return redis.error_reply('VERSION_CONFLICT') end
redis.call('SET', KEYS[1], ARGV[2], 'EX', ARGV[3])
return 'OK'`

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists Session records in Upstash Redis via REST.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       DefaultSessionTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl <= 0 {
		store.ttl = DefaultSessionTTL
	}

	return store, nil
}

func (s *UpstashRedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrStateNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(encoded), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}

	return &sess, nil
}

// Create writes a new session with SET NX so two racing creators cannot both
// win the same id.
func (s *UpstashRedisStore) Create(ctx context.Context, st *Session) error {
	payload, key, err := s.encode(st)
	if err != nil {
		return err
	}

	resp, err := s.exec(ctx, []any{"SET", key, payload, "EX", ttlSeconds(s.ttl), "NX"})
	if err != nil {
		return err
	}
	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return ErrSessionExists
	}
	return nil
}

// CompareAndSwap overwrites the stored session only if its version still
// equals expectedVersion. st must already carry the bumped version.
func (s *UpstashRedisStore) CompareAndSwap(ctx context.Context, expectedVersion int64, st *Session) error {
	payload, key, err := s.encode(st)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, []any{"EVAL", casScript, 1, key, expectedVersion, payload, ttlSeconds(s.ttl)})
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "VERSION_CONFLICT"):
		return ErrVersionConflict
	case strings.Contains(err.Error(), "NOT_FOUND"):
		return ErrStateNotFound
	default:
		return err
	}
}

func (s *UpstashRedisStore) encode(st *Session) (payload string, key string, err error) {
	if st == nil {
		return "", "", ErrNilSession
	}
	if err := st.Validate(); err != nil {
		return "", "", err
	}
	key, err = s.redisKey(st.ID)
	if err != nil {
		return "", "", err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return "", "", fmt.Errorf("marshal session: %w", err)
	}
	return string(raw), key, nil
}

func (s *UpstashRedisStore) redisKey(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return strings.TrimSpace(s.keyPrefix) + sessionID, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
		}
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
