package flow

import (
	"strings"
	"testing"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

func TestKnowledgeFlowGreetingSkipsReasoner(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: contractx.Answer{Text: "should not be used"}}
	f := NewKnowledgeFlow(answerer, nil)
	sess := newSession(t, statex.ConversationKnowledge)

	out := advance(t, f, sess, "Hello!")
	if answerer.calls != 0 {
		t.Fatalf("greeting must not call the reasoner, calls = %d", answerer.calls)
	}
	if out.Message == "" || len(out.Suggestions) == 0 {
		t.Fatalf("greeting response incomplete: %+v", out)
	}
}

func TestKnowledgeFlowEscalationOfferAndAcceptance(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: contractx.Answer{Text: "Plans start at $99 per month."}}
	f := NewKnowledgeFlow(answerer, &fakeSuggester{suggestions: []string{"Tell me more"}})
	sess := newSession(t, statex.ConversationKnowledge)

	out := advance(t, f, sess, "How much does it cost?")
	if !strings.Contains(out.Message, "Plans start at $99 per month.") {
		t.Fatalf("answer missing from offer turn: %q", out.Message)
	}
	if !strings.Contains(out.Message, "sales team") {
		t.Fatalf("hand-off offer missing: %q", out.Message)
	}
	if !sess.Knowledge.EscalationPending {
		t.Fatal("escalation_pending not persisted")
	}

	out = advance(t, f, sess, "yes")
	if out.EscalatedTo != "sales" {
		t.Fatalf("escalated_to = %q, want sales", out.EscalatedTo)
	}
	if sess.ConversationType != statex.ConversationSales {
		t.Fatalf("conversation type = %q, want sales", sess.ConversationType)
	}
	if sess.Sales == nil || sess.Sales.Step != statex.StepName || sess.Sales.Name != "" {
		t.Fatalf("expected fresh sales data at name step: %+v", sess.Sales)
	}
	if out.NeedsInfo != "name" {
		t.Fatalf("needs_info = %q, want name", out.NeedsInfo)
	}
}

func TestKnowledgeFlowPendingOfferAcceptsWholeWordsOnly(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: contractx.Answer{Text: "Bookings are managed in the app."}}
	f := NewKnowledgeFlow(answerer, nil)

	// "bookings" embeds "ok" and "yeah" could hide inside other words too;
	// none of these replies accept the offer.
	declines := []string{
		"what about bookings?",
		"okey-dokey is not a word I said",
		"I need to check my booking first",
	}
	for _, input := range declines {
		sess := newSession(t, statex.ConversationKnowledge)
		sess.Knowledge.EscalationPending = true

		out := advance(t, f, sess, input)
		if sess.ConversationType != statex.ConversationKnowledge {
			t.Fatalf("%q escalated: conversation type = %q", input, sess.ConversationType)
		}
		if sess.Knowledge == nil || sess.Knowledge.EscalationPending {
			t.Fatalf("%q must clear the pending offer", input)
		}
		if out.EscalatedTo != "" {
			t.Fatalf("%q produced escalated_to = %q", input, out.EscalatedTo)
		}
	}

	accepts := []string{"ok", "Sure, go ahead!", "yes please", "yeah"}
	for _, input := range accepts {
		sess := newSession(t, statex.ConversationKnowledge)
		sess.Knowledge.EscalationPending = true

		out := advance(t, f, sess, input)
		if out.EscalatedTo != "sales" || sess.ConversationType != statex.ConversationSales {
			t.Fatalf("%q must accept the offer, got %+v", input, out)
		}
	}
}

func TestKnowledgeFlowDeclineWithPricingWordsNotReoffered(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: contractx.Answer{Text: "A lease starts at $99 per month."}}
	suggester := &fakeSuggester{suggestions: []string{"What is included?"}}
	f := NewKnowledgeFlow(answerer, suggester)
	sess := newSession(t, statex.ConversationKnowledge)
	sess.Knowledge.EscalationPending = true

	out := advance(t, f, sess, "not now, just tell me the price")
	if sess.Knowledge.EscalationPending {
		t.Fatal("declined offer must stay cleared even when the decline mentions pricing")
	}
	if strings.Contains(out.Message, "sales team") {
		t.Fatalf("offer repeated on the decline turn: %q", out.Message)
	}
	if !strings.Contains(out.Message, "$99") {
		t.Fatalf("decline turn not answered: %q", out.Message)
	}
	if len(out.Suggestions) == 0 {
		t.Fatalf("decline turn should carry suggestions: %+v", out)
	}
}

func TestKnowledgeFlowEscalationDeclinedClearsFlag(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: contractx.Answer{Text: "Here is how the app works."}}
	f := NewKnowledgeFlow(answerer, nil)
	sess := newSession(t, statex.ConversationKnowledge)
	sess.Knowledge.EscalationPending = true

	out := advance(t, f, sess, "not right now, how does the app work?")
	if sess.Knowledge.EscalationPending {
		t.Fatal("declined offer must clear escalation_pending")
	}
	if sess.ConversationType != statex.ConversationKnowledge {
		t.Fatalf("conversation type changed: %q", sess.ConversationType)
	}
	if !strings.Contains(out.Message, "Here is how the app works.") {
		t.Fatalf("decline turn not answered: %q", out.Message)
	}
}

func TestKnowledgeFlowAnswersWithSuggestions(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: contractx.Answer{Text: "You can lease most EV models."}}
	suggester := &fakeSuggester{suggestions: []string{"Which EVs are popular?", "How long are leases?"}}
	f := NewKnowledgeFlow(answerer, suggester)
	sess := newSession(t, statex.ConversationKnowledge)

	out := advance(t, f, sess, "Which vehicles can I lease?")
	if out.Message != "You can lease most EV models." {
		t.Fatalf("unexpected answer: %q", out.Message)
	}
	if suggester.calls != 1 || len(out.Suggestions) != 2 {
		t.Fatalf("suggestions not attached: %+v", out.Suggestions)
	}
}

func TestKnowledgeFlowFallbackOnAnswerFailure(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{err: contractx.ErrReasoningService}
	f := NewKnowledgeFlow(answerer, nil)
	sess := newSession(t, statex.ConversationKnowledge)

	out := advance(t, f, sess, "Which vehicles can I lease?")
	if out.Message == "" {
		t.Fatal("expected a fallback reply when the reasoner fails")
	}
}
