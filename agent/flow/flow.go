package flow

import (
	"context"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

// Answerer produces a generated answer for a free-form question. The
// reasoning pipeline is the production implementation.
type Answerer interface {
	Answer(ctx context.Context, question string, history []contractx.Message) (contractx.Answer, error)
}

// Suggester proposes follow-up prompts for the visitor. Failures degrade to
// an empty list, never to an error.
type Suggester interface {
	Suggest(ctx context.Context, history []contractx.Message, lastAnswer string) []string
}

// Flow advances one conversation variant by a single user turn. It mutates
// the session in memory only; persistence and its version check belong to
// the caller.
type Flow interface {
	Advance(ctx context.Context, sess *statex.Session, input string, history []contractx.Message) (contractx.Outcome, error)
}

// Router maps a session's conversation type to its flow. Selection is pure;
// only escalation may change a session's type after creation.
type Router struct {
	sales     Flow
	support   Flow
	knowledge Flow
}

func NewRouter(sales, support, knowledge Flow) *Router {
	return &Router{
		sales:     sales,
		support:   support,
		knowledge: knowledge,
	}
}

// Select returns the flow for the given type, defaulting unknown values to
// Knowledge.
func (r *Router) Select(convoType statex.ConversationType) Flow {
	switch convoType {
	case statex.ConversationSales:
		return r.sales
	case statex.ConversationSupport:
		return r.support
	default:
		return r.knowledge
	}
}

const confirmationReprompt = "Please confirm with 'Yes' or 'No'. Is the information correct?"

func reprompt(step statex.Step, message string) contractx.Outcome {
	return contractx.Outcome{
		Message:   message,
		NeedsInfo: string(step),
	}
}

// answerThenReprompt handles the Q&A sub-behavior: a question asked
// mid-collection is answered through the pipeline and the pending field's
// prompt is appended. The step never moves.
func answerThenReprompt(ctx context.Context, answerer Answerer, question string, history []contractx.Message, step statex.Step, prompt string) contractx.Outcome {
	ans, err := answerer.Answer(ctx, question, history)
	if err != nil || ans.Text == "" {
		return reprompt(step, prompt)
	}
	return contractx.Outcome{
		Message:    ans.Text + "\n\n" + prompt,
		NeedsInfo:  string(step),
		BestEffort: ans.BestEffort,
	}
}
