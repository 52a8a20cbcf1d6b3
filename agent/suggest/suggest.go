package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	promptx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/prompt"
)

const maxSuggestions = 5

type Config struct {
	Timeout time.Duration `split_words:"true" default:"5s"`
}

// Generator proposes follow-up questions after a Knowledge answer. It is
// best-effort: any failure yields an empty list, never an error.
type Generator struct {
	reasoner contractx.Reasoner
	prompts  promptx.PromptSet
	timeout  time.Duration
}

func NewGenerator(reasoner contractx.Reasoner, cfg Config) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Generator{
		reasoner: reasoner,
		prompts:  promptx.LoadPromptSet(),
		timeout:  timeout,
	}
}

type suggestionsPayload struct {
	Suggestions []string `json:"suggestions"`
}

func (g *Generator) Suggest(ctx context.Context, history []contractx.Message, lastAnswer string) []string {
	if g == nil || g.reasoner == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Conversation:\n%s\n\nAssistant's last answer:\n%s", renderHistory(history), lastAnswer)
	out, err := g.reasoner.Generate(ctx, contractx.GenerateRequest{
		System:      g.prompts.Suggest,
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		log.Warn().Err(err).Msg("suggestion generation failed")
		return nil
	}

	suggestions, err := parseSuggestions(out)
	if err != nil {
		log.Warn().Err(err).Msg("suggestion reply was not valid JSON")
		return nil
	}
	return suggestions
}

// parseSuggestions tolerates replies that wrap the JSON object in prose or
// code fences by cutting down to the outermost braces first.
func parseSuggestions(out string) ([]string, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var payload suggestionsPayload
	if err := json.Unmarshal([]byte(out[start:end+1]), &payload); err != nil {
		return nil, err
	}

	var suggestions []string
	for _, s := range payload.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

func renderHistory(history []contractx.Message) string {
	if len(history) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
