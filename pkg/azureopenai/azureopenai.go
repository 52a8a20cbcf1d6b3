package azureopenai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
)

type Config struct {
	Endpoint   string        `envconfig:"ENDPOINT" split_words:"true" required:"true"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	APIVersion string        `envconfig:"API_VERSION" split_words:"true" default:"2024-02-15-preview"`
	Deployment string        `envconfig:"DEPLOYMENT" split_words:"true" default:"gpt-4o"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("azure openai endpoint is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("azure openai api key is required")
	}
	return nil
}

// Client calls an Azure OpenAI deployment and satisfies contract.Reasoner.
type Client struct {
	client     openaisdk.Client
	deployment string
	timeout    time.Duration
}

var _ contractx.Reasoner = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		azure.WithEndpoint(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"), strings.TrimSpace(cfg.APIVersion)),
		azure.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}

	return &Client{
		client:     openaisdk.NewClient(opts...),
		deployment: strings.TrimSpace(cfg.Deployment),
		timeout:    timeout,
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func (c *Client) Generate(ctx context.Context, req contractx.GenerateRequest) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.deployment),
		Messages: buildMessages(req),
	}
	if req.Temperature > 0 {
		params.Temperature = openaisdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithRequestTimeout(c.timeout))
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrReasoningService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrReasoningService)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(req contractx.GenerateRequest) []openaisdk.ChatCompletionMessageParamUnion {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.System))
	}
	for _, m := range req.History {
		switch m.Role {
		case contractx.RoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(m.Text))
		case contractx.RoleUser:
			msgs = append(msgs, openaisdk.UserMessage(m.Text))
		}
	}
	msgs = append(msgs, openaisdk.UserMessage(req.Prompt))
	return msgs
}
