package flow

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

// SupportFlow collects issue, name, and email in order, then confirms and
// raises a support ticket lead.
type SupportFlow struct {
	answerer Answerer
}

var _ Flow = (*SupportFlow)(nil)

func NewSupportFlow(answerer Answerer) *SupportFlow {
	return &SupportFlow{answerer: answerer}
}

func (f *SupportFlow) Advance(ctx context.Context, sess *statex.Session, input string, history []contractx.Message) (contractx.Outcome, error) {
	if sess == nil || sess.Support == nil {
		return contractx.Outcome{}, statex.ErrVariantMismatch
	}
	if !sess.IsActive || sess.Support.Step == statex.StepComplete {
		return contractx.Outcome{}, contractx.ErrSessionLocked
	}

	if sess.Support.Step == statex.StepConfirmation {
		return f.confirm(sess, input)
	}
	return f.collect(ctx, sess, input, history)
}

func (f *SupportFlow) collect(ctx context.Context, sess *statex.Session, input string, history []contractx.Message) (contractx.Outcome, error) {
	step := sess.Support.Step

	// The opening issue description is often phrased as a question; only the
	// later identity steps treat questions as Q&A detours.
	if step != statex.StepIssue && isQuestion(input) {
		return answerThenReprompt(ctx, f.answerer, input, history, step, supportPrompt(sess.Support, step)), nil
	}

	switch step {
	case statex.StepIssue:
		issue, err := validateIssue(input)
		if err != nil {
			return reprompt(step, "I'm here to help. Could you please describe the issue you're experiencing?"), nil
		}
		sess.Support.Issue = issue
		sess.Support.Step = statex.StepName
	case statex.StepName:
		name, err := validateName(input)
		if err != nil {
			return reprompt(step, "Could you please provide your name?"), nil
		}
		sess.Support.Name = name
		sess.Support.Step = statex.StepEmail
	case statex.StepEmail:
		email, err := validateEmail(input)
		if err != nil {
			return reprompt(step, "Please provide a valid email address (e.g., name@example.com)."), nil
		}
		sess.Support.Email = email
		sess.Support.Step = statex.StepConfirmation
	default:
		return contractx.Outcome{}, fmt.Errorf("%w: unexpected support step %q", statex.ErrVariantMismatch, step)
	}

	next := sess.Support.Step
	return contractx.Outcome{
		Message:   supportPrompt(sess.Support, next),
		NeedsInfo: string(next),
	}, nil
}

func (f *SupportFlow) confirm(sess *statex.Session, input string) (contractx.Outcome, error) {
	yes, err := parseConfirmation(input)
	if errors.Is(err, contractx.ErrAmbiguousConfirmation) {
		return reprompt(statex.StepConfirmation, confirmationReprompt), nil
	}

	if yes {
		sess.MarkComplete()
		return contractx.Outcome{
			Message:  "Thank you! Our support team will contact you shortly.",
			Complete: true,
			Lead: &contractx.Lead{
				SessionID: sess.ID,
				Source:    string(statex.ConversationSupport),
				Name:      sess.Support.Name,
				Email:     sess.Support.Email,
				Issue:     sess.Support.Issue,
			},
		}, nil
	}

	reopened := reopenSupportField(sess.Support)
	return contractx.Outcome{
		Message:   "Let's correct that. " + supportPrompt(sess.Support, reopened),
		NeedsInfo: string(reopened),
	}, nil
}

func reopenSupportField(d *statex.SupportData) statex.Step {
	switch {
	case d.Email != "":
		d.Email = ""
		d.Step = statex.StepEmail
	case d.Name != "":
		d.Name = ""
		d.Step = statex.StepName
	default:
		d.Issue = ""
		d.Step = statex.StepIssue
	}
	return d.Step
}

func supportPrompt(d *statex.SupportData, step statex.Step) string {
	switch step {
	case statex.StepIssue:
		return "Could you please describe the issue you're experiencing?"
	case statex.StepName:
		return "Thank you for describing the issue. Could you please provide your name?"
	case statex.StepEmail:
		if d.Name != "" {
			return fmt.Sprintf("Thank you, %s! Could you please provide your email address so our support team can contact you?", d.Name)
		}
		return "Could you please provide your email address so our support team can contact you?"
	case statex.StepConfirmation:
		return fmt.Sprintf("Here is what I have collected:\nIssue: %s\nName: %s\nEmail: %s\nIs this correct? (Yes/No)", d.Issue, d.Name, d.Email)
	default:
		return ""
	}
}
