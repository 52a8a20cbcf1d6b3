package flow

import (
	"context"
	"strings"
	"unicode"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

// escalationKeywords mark buying intent in a Knowledge conversation. A match
// triggers the hand-off offer, never an automatic transfer.
var escalationKeywords = []string{
	"pricing", "price", "cost", "plan", "plans", "onboarding", "setup",
	"consultation", "implementation", "enterprise", "sign up", "get started",
	"speak with", "talk to", "contact sales", "sales team", "sales person",
	"want to buy", "interested in", "purchase", "buy",
}

// affirmativeTokens accept a pending hand-off offer. Matching is on whole
// words only; short tokens like "ok" embedded in "bookings" must not count.
var affirmativeTokens = map[string]struct{}{
	"yes": {}, "sure": {}, "okay": {}, "ok": {}, "please": {},
	"connect": {}, "yeah": {}, "yep": {},
}

var affirmativePhrases = []string{"go ahead"}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "good morning": {},
	"good afternoon": {}, "good evening": {}, "thanks": {}, "thank you": {},
	"bye": {}, "goodbye": {},
}

const (
	greetingResponse = "Hello! I'm here to help with any questions about our services. What would you like to know?"
	handoffOffer     = "I can connect you directly with our sales team to guide you personally. Would you like me to do that?"
	salesOpening     = "Great! I am now connecting you with our Sales Team.\n\nTo get started, could you please provide your full name?"
)

// KnowledgeFlow answers questions through the reasoning pipeline and owns
// the one-way escalation into Sales.
type KnowledgeFlow struct {
	answerer  Answerer
	suggester Suggester
}

var _ Flow = (*KnowledgeFlow)(nil)

func NewKnowledgeFlow(answerer Answerer, suggester Suggester) *KnowledgeFlow {
	return &KnowledgeFlow{
		answerer:  answerer,
		suggester: suggester,
	}
}

func (f *KnowledgeFlow) Advance(ctx context.Context, sess *statex.Session, input string, history []contractx.Message) (contractx.Outcome, error) {
	if sess == nil || sess.Knowledge == nil {
		return contractx.Outcome{}, statex.ErrVariantMismatch
	}
	if !sess.IsActive {
		return contractx.Outcome{}, contractx.ErrSessionLocked
	}

	declinedOffer := false
	if sess.Knowledge.EscalationPending {
		if isAffirmative(input) {
			if err := sess.EscalateToSales(); err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Message:     salesOpening,
				NeedsInfo:   string(statex.StepName),
				EscalatedTo: string(statex.ConversationSales),
			}, nil
		}
		sess.Knowledge.EscalationPending = false
		declinedOffer = true
	}

	if isGreeting(input) {
		return contractx.Outcome{
			Message: greetingResponse,
			Suggestions: []string{
				"What services do you offer?",
				"How does the process work?",
				"Tell me about pricing",
			},
		}, nil
	}

	answer := f.answer(ctx, input, history)

	out := contractx.Outcome{
		Message:    answer.Text,
		BestEffort: answer.BestEffort,
	}

	// A decline is answered as plain Q&A even when it mentions pricing;
	// repeating the offer the visitor just turned down is a dead end.
	if !declinedOffer && hasEscalationIntent(input) {
		sess.Knowledge.EscalationPending = true
		out.Message = answer.Text + "\n\n" + handoffOffer
		return out, nil
	}

	if f.suggester != nil {
		out.Suggestions = f.suggester.Suggest(ctx, history, answer.Text)
	}
	return out, nil
}

func (f *KnowledgeFlow) answer(ctx context.Context, question string, history []contractx.Message) contractx.Answer {
	ans, err := f.answerer.Answer(ctx, question, history)
	if err != nil || strings.TrimSpace(ans.Text) == "" {
		return contractx.Answer{Text: "I understand your concern. Let me help you with that. Could you share a bit more detail?"}
	}
	return ans
}

func hasEscalationIntent(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range escalationKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func isAffirmative(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range affirmativePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tok := range tokens {
		if _, ok := affirmativeTokens[tok]; ok {
			return true
		}
	}
	return false
}

func isGreeting(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	lowered = strings.TrimRight(lowered, "!. ")
	_, ok := greetings[lowered]
	return ok
}
