package flow

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

// SalesFlow collects name, email, and phone in order, confirms the back-read
// and hands the lead off on acceptance.
type SalesFlow struct {
	answerer Answerer
}

var _ Flow = (*SalesFlow)(nil)

func NewSalesFlow(answerer Answerer) *SalesFlow {
	return &SalesFlow{answerer: answerer}
}

func (f *SalesFlow) Advance(ctx context.Context, sess *statex.Session, input string, history []contractx.Message) (contractx.Outcome, error) {
	if sess == nil || sess.Sales == nil {
		return contractx.Outcome{}, statex.ErrVariantMismatch
	}
	if !sess.IsActive || sess.Sales.Step == statex.StepComplete {
		return contractx.Outcome{}, contractx.ErrSessionLocked
	}

	if sess.Sales.Step == statex.StepConfirmation {
		return f.confirm(sess, input)
	}
	return f.collect(ctx, sess, input, history)
}

func (f *SalesFlow) collect(ctx context.Context, sess *statex.Session, input string, history []contractx.Message) (contractx.Outcome, error) {
	step := sess.Sales.Step

	if isQuestion(input) {
		return answerThenReprompt(ctx, f.answerer, input, history, step, salesPrompt(sess.Sales, step)), nil
	}

	switch step {
	case statex.StepName:
		name, err := validateName(input)
		if err != nil {
			return reprompt(step, "Could you please provide your full name?"), nil
		}
		sess.Sales.Name = name
		sess.Sales.Step = statex.StepEmail
	case statex.StepEmail:
		email, err := validateEmail(input)
		if err != nil {
			return reprompt(step, "Please provide a valid email address (e.g., name@example.com)."), nil
		}
		sess.Sales.Email = email
		sess.Sales.Step = statex.StepPhone
	case statex.StepPhone:
		phone, err := validatePhone(input)
		if err != nil {
			return reprompt(step, "Please provide a valid phone number with at least 10 digits."), nil
		}
		sess.Sales.Phone = phone
		sess.Sales.Step = statex.StepConfirmation
	default:
		return contractx.Outcome{}, fmt.Errorf("%w: unexpected sales step %q", statex.ErrVariantMismatch, step)
	}

	next := sess.Sales.Step
	return contractx.Outcome{
		Message:   salesPrompt(sess.Sales, next),
		NeedsInfo: string(next),
	}, nil
}

func (f *SalesFlow) confirm(sess *statex.Session, input string) (contractx.Outcome, error) {
	yes, err := parseConfirmation(input)
	if errors.Is(err, contractx.ErrAmbiguousConfirmation) {
		return reprompt(statex.StepConfirmation, confirmationReprompt), nil
	}

	if yes {
		sess.MarkComplete()
		return contractx.Outcome{
			Message:  "Thank you! Our sales team will contact you shortly.",
			Complete: true,
			Lead: &contractx.Lead{
				SessionID: sess.ID,
				Source:    string(statex.ConversationSales),
				Name:      sess.Sales.Name,
				Email:     sess.Sales.Email,
				Phone:     sess.Sales.Phone,
			},
		}, nil
	}

	reopened := reopenSalesField(sess.Sales)
	return contractx.Outcome{
		Message:   "Let's correct that. " + salesPrompt(sess.Sales, reopened),
		NeedsInfo: string(reopened),
	}, nil
}

// reopenSalesField clears the most recently collected field and reverts the
// step to it. Earlier fields stay populated.
func reopenSalesField(d *statex.SalesData) statex.Step {
	switch {
	case d.Phone != "":
		d.Phone = ""
		d.Step = statex.StepPhone
	case d.Email != "":
		d.Email = ""
		d.Step = statex.StepEmail
	default:
		d.Name = ""
		d.Step = statex.StepName
	}
	return d.Step
}

func salesPrompt(d *statex.SalesData, step statex.Step) string {
	switch step {
	case statex.StepName:
		return "To connect you with our sales team, could you please provide your full name?"
	case statex.StepEmail:
		if d.Name != "" {
			return fmt.Sprintf("Thank you, %s! Could you please provide your email address?", d.Name)
		}
		return "Could you please provide your email address?"
	case statex.StepPhone:
		return "Perfect! Now, could you please provide your phone number?"
	case statex.StepConfirmation:
		return fmt.Sprintf("Here is what I have collected:\nName: %s\nEmail: %s\nPhone: %s\nIs this correct? (Yes/No)", d.Name, d.Email, d.Phone)
	default:
		return ""
	}
}
