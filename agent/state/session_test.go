package state

import (
	"errors"
	"testing"
	"time"
)

func TestParseConversationTypeDefaultsToKnowledge(t *testing.T) {
	t.Parallel()

	cases := map[string]ConversationType{
		"sales":     ConversationSales,
		"support":   ConversationSupport,
		"knowledge": ConversationKnowledge,
		"":          ConversationKnowledge,
		"billing":   ConversationKnowledge,
	}
	for raw, want := range cases {
		if got := ParseConversationType(raw); got != want {
			t.Fatalf("ParseConversationType(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNewSessionVariants(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	sales := NewSession("s1", "v1", ConversationSales, now)
	if sales.Sales == nil || sales.Sales.Step != StepName {
		t.Fatalf("sales session not at name step: %+v", sales.Sales)
	}
	if sales.Version != 1 || !sales.IsActive {
		t.Fatalf("unexpected initial session: version=%d active=%v", sales.Version, sales.IsActive)
	}
	if err := sales.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	support := NewSession("s2", "v1", ConversationSupport, now)
	if support.Support == nil || support.Support.Step != StepIssue {
		t.Fatalf("support session not at issue step: %+v", support.Support)
	}

	knowledge := NewSession("s3", "v1", ConversationKnowledge, now)
	if knowledge.Knowledge == nil || knowledge.Step() != StepChatting {
		t.Fatalf("knowledge session not chatting: %+v", knowledge.Knowledge)
	}
}

func TestSessionValidateRejectsVariantMismatch(t *testing.T) {
	t.Parallel()

	now := time.Now()
	sess := NewSession("s1", "v1", ConversationSales, now)
	sess.Knowledge = &KnowledgeData{}

	if err := sess.Validate(); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("Validate() error = %v, want ErrVariantMismatch", err)
	}
}

func TestSessionValidateEnforcesPopulatedPrefix(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "v1", ConversationSales, time.Now())
	sess.Sales.Step = StepPhone
	sess.Sales.Name = "John Doe"

	if err := sess.Validate(); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("Validate() error = %v, want ErrVariantMismatch for empty email before phone", err)
	}

	sess.Sales.Email = "john@example.com"
	if err := sess.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSessionValidateAllowsConfirmationRejectionRecovery(t *testing.T) {
	t.Parallel()

	// After a "no" at confirmation the phone field is cleared and the step
	// reverted; the earlier fields stay populated.
	sess := NewSession("s1", "v1", ConversationSales, time.Now())
	sess.Sales.Step = StepPhone
	sess.Sales.Name = "John Doe"
	sess.Sales.Email = "john@example.com"

	if err := sess.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestMarkCompleteLocksSession(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "v1", ConversationSupport, time.Now())
	sess.MarkComplete()

	if sess.IsActive {
		t.Fatal("expected session inactive after MarkComplete")
	}
	if sess.Support.Step != StepComplete {
		t.Fatalf("step = %q, want complete", sess.Support.Step)
	}
}

func TestEscalateToSalesResetsData(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "v1", ConversationKnowledge, time.Now())
	sess.Knowledge.EscalationPending = true

	if err := sess.EscalateToSales(); err != nil {
		t.Fatalf("EscalateToSales() error = %v", err)
	}
	if sess.ConversationType != ConversationSales {
		t.Fatalf("conversation type = %q, want sales", sess.ConversationType)
	}
	if sess.Knowledge != nil {
		t.Fatal("expected knowledge data cleared")
	}
	if sess.Sales == nil || sess.Sales.Step != StepName || sess.Sales.Name != "" {
		t.Fatalf("expected fresh sales data at name step, got %+v", sess.Sales)
	}
	if err := sess.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestEscalateToSalesRejectedForCollectionVariants(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "v1", ConversationSales, time.Now())
	if err := sess.EscalateToSales(); !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("EscalateToSales() error = %v, want ErrVariantMismatch", err)
	}
}

func TestDataSnapshotUsesExplicitNulls(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "v1", ConversationSales, time.Now())
	sess.Sales.Name = "John Doe"
	sess.Sales.Step = StepEmail

	snap := sess.DataSnapshot()
	if snap["step"] != "email" {
		t.Fatalf("snapshot step = %v, want email", snap["step"])
	}
	if snap["name"] != "John Doe" {
		t.Fatalf("snapshot name = %v", snap["name"])
	}
	if snap["email"] != nil || snap["phone"] != nil {
		t.Fatalf("uncollected fields must be nil: %+v", snap)
	}
}

func TestTouchClearsIdleWarning(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	sess := NewSession("s1", "v1", ConversationKnowledge, now)
	warned := now.Add(2 * time.Minute)
	sess.IdleWarningSentAt = &warned

	sess.Touch(now.Add(3 * time.Minute))
	if sess.IdleWarningSentAt != nil {
		t.Fatal("expected idle warning cleared on activity")
	}
	if !sess.LastActivityAt.Equal(now.Add(3 * time.Minute)) {
		t.Fatalf("last activity = %v", sess.LastActivityAt)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "v1", ConversationSales, time.Now())
	sess.Sales.Name = "John Doe"

	clone := sess.Clone()
	clone.Sales.Name = "Someone Else"
	clone.Version = 9

	if sess.Sales.Name != "John Doe" {
		t.Fatalf("clone mutation leaked into original: %q", sess.Sales.Name)
	}
	if sess.Version != 1 {
		t.Fatalf("clone mutation leaked version: %d", sess.Version)
	}
}
