package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	promptx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/prompt"
)

type Config struct {
	StageTimeout time.Duration `split_words:"true" default:"8s"`
	Deadline     time.Duration `split_words:"true" default:"25s"`
	TopK         int           `split_words:"true" default:"4"`
}

// Pipeline runs the staged answer generation for one turn: classify the
// question, plan structure and coverage in parallel, generate a draft, then
// validate it with at most one regeneration. Stage failures degrade to
// documented defaults; the pipeline always returns an answer.
type Pipeline struct {
	reasoner  contractx.Reasoner
	retriever contractx.Retriever
	prompts   promptx.PromptSet
	cfg       Config
}

func New(reasoner contractx.Reasoner, retriever contractx.Retriever, cfg Config) (*Pipeline, error) {
	if reasoner == nil {
		return nil, errors.New("reasoner is required")
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 8 * time.Second
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 25 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	return &Pipeline{
		reasoner:  reasoner,
		retriever: retriever,
		prompts:   promptx.LoadPromptSet(),
		cfg:       cfg,
	}, nil
}

// run is the per-turn execution state. It lives only for the duration of
// one Answer call.
type run struct {
	question string
	history  []contractx.Message
	snippets []contractx.Snippet

	class     classification
	structure structurePlan
	coverage  coverageSpec
	draft     string
}

var _ interface {
	Answer(ctx context.Context, question string, history []contractx.Message) (contractx.Answer, error)
} = (*Pipeline)(nil)

// Answer produces an answer for the question. The error return is always
// nil today; it stays on the signature so callers treat the pipeline like
// any other Answerer.
func (p *Pipeline) Answer(ctx context.Context, question string, history []contractx.Message) (contractx.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	r := &run{question: question, history: history}
	r.snippets = p.retrieve(ctx, question)

	r.class = p.classify(ctx, r)

	// StructurePlan and CoverageDefine both depend only on the
	// classification, so they fan out together.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.structure = p.structurePlan(gctx, r)
		return nil
	})
	g.Go(func() error {
		r.coverage = p.coverageDefine(gctx, r)
		return nil
	})
	_ = g.Wait()

	draft, err := p.generate(ctx, r)
	if err != nil {
		log.Warn().Err(err).Msg("generate stage failed, returning fallback answer")
		return contractx.Answer{Text: fallbackAnswer(r.snippets), BestEffort: true}, nil
	}
	r.draft = draft

	if ctx.Err() != nil {
		log.Warn().Msg("pipeline deadline elapsed after generate, skipping validation")
		return contractx.Answer{Text: r.draft, BestEffort: true}, nil
	}

	v := p.validate(ctx, r)
	if !v.Approved && strings.TrimSpace(v.Fix) != "" {
		if fixed, err := p.regenerate(ctx, r, v.Fix); err == nil && strings.TrimSpace(fixed) != "" {
			r.draft = fixed
		}
	}

	return contractx.Answer{Text: r.draft}, nil
}

func (p *Pipeline) retrieve(ctx context.Context, question string) []contractx.Snippet {
	if p.retriever == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	snippets, err := p.retriever.Search(sctx, question, p.cfg.TopK)
	if err != nil {
		log.Warn().Err(err).Msg("retrieval failed, answering without context")
		return nil
	}
	return snippets
}

// callStage issues one bounded Reasoner call. The caller supplies the
// fallback applied on timeout or service error; stages are never retried.
func (p *Pipeline) callStage(ctx context.Context, stage, system, prompt string) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	out, err := p.reasoner.Generate(sctx, contractx.GenerateRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", stage, err)
	}
	return out, nil
}

func (p *Pipeline) classify(ctx context.Context, r *run) classification {
	prompt := fmt.Sprintf("Conversation so far:\n%s\nQuestion: %s", formatHistory(r.history), r.question)
	out, err := p.callStage(ctx, "classify", p.prompts.Classify, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("classify stage failed, using default classification")
		return defaultClassification()
	}
	return parseClassification(out)
}

func (p *Pipeline) structurePlan(ctx context.Context, r *run) structurePlan {
	prompt := fmt.Sprintf("Question: %s\n\nClassification:\n%s", r.question, r.class.String())
	out, err := p.callStage(ctx, "structure_plan", p.prompts.Structure, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("structure plan stage failed, using default plan")
		return defaultStructurePlan()
	}
	return parseStructurePlan(out)
}

func (p *Pipeline) coverageDefine(ctx context.Context, r *run) coverageSpec {
	prompt := fmt.Sprintf(
		"Question: %s\n\nClassification:\n%s\n\nRetrieved context:\n%s",
		r.question, r.class.String(), formatSnippets(r.snippets),
	)
	out, err := p.callStage(ctx, "coverage_define", p.prompts.Coverage, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("coverage stage failed, using empty coverage spec")
		return coverageSpec{}
	}
	return parseCoverageSpec(out)
}

func (p *Pipeline) generate(ctx context.Context, r *run) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	out, err := p.reasoner.Generate(sctx, contractx.GenerateRequest{
		System:      p.prompts.Generate,
		Prompt:      assemblePrompt(r),
		History:     lastMessages(r.history, 3),
		Temperature: 0.4,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", fmt.Errorf("stage generate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("stage generate: empty draft")
	}
	return out, nil
}

func (p *Pipeline) validate(ctx context.Context, r *run) verdict {
	prompt := fmt.Sprintf(
		"Question: %s\n\nCoverage spec:\n%s\n\nDraft answer:\n%s",
		r.question, r.coverage.String(), r.draft,
	)
	out, err := p.callStage(ctx, "validate", p.prompts.Validate, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("validate stage failed, accepting draft")
		return verdict{Approved: true}
	}
	return parseVerdict(out)
}

// regenerate performs the single bounded fix pass. The result is accepted
// unconditionally.
func (p *Pipeline) regenerate(ctx context.Context, r *run, fix string) (string, error) {
	prompt := fmt.Sprintf(
		"%s\n\nPrevious draft:\n%s\n\nRequired fixes:\n%s",
		assemblePrompt(r), r.draft, fix,
	)
	return p.callStage(ctx, "regenerate", p.prompts.Fix, prompt)
}

func assemblePrompt(r *run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", r.question)
	fmt.Fprintf(&b, "Classification:\n%s\n\n", r.class.String())
	fmt.Fprintf(&b, "Structure plan:\n%s\n\n", r.structure.String())
	fmt.Fprintf(&b, "Coverage spec:\n%s\n\n", r.coverage.String())
	fmt.Fprintf(&b, "Retrieved context:\n%s", formatSnippets(r.snippets))
	return b.String()
}

// fallbackAnswer builds a deterministic answer straight from the retrieval
// context when no draft could be generated.
func fallbackAnswer(snippets []contractx.Snippet) string {
	if len(snippets) == 0 {
		return "I'm sorry, I couldn't find an answer to that right now. Could you rephrase the question or ask about something else?"
	}
	var b strings.Builder
	b.WriteString("Here is what I found:\n")
	for i, s := range snippets {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", summarize(s.Text, 200))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSnippets(snippets []contractx.Snippet) string {
	if len(snippets) == 0 {
		return "(no retrieved context)"
	}
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(history []contractx.Message) string {
	recent := lastMessages(history, 3)
	if len(recent) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, m := range recent {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func lastMessages(history []contractx.Message, n int) []contractx.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func summarize(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	return strings.TrimSpace(text[:maxLen]) + "..."
}
