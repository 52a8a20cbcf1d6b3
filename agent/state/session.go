package state

import (
	"errors"
	"fmt"
	"time"
)

type ConversationType string

const (
	ConversationSales     ConversationType = "sales"
	ConversationSupport   ConversationType = "support"
	ConversationKnowledge ConversationType = "knowledge"
)

// Step is a position within a flow's linear collection sequence.
type Step string

const (
	StepName         Step = "name"
	StepEmail        Step = "email"
	StepPhone        Step = "phone"
	StepIssue        Step = "issue"
	StepConfirmation Step = "confirmation"
	StepComplete     Step = "complete"
	StepChatting     Step = "chatting"
)

// SalesSequence and SupportSequence are the collection orders. Confirmation
// and complete always follow the last field.
var (
	SalesSequence   = []Step{StepName, StepEmail, StepPhone}
	SupportSequence = []Step{StepIssue, StepName, StepEmail}
)

type SalesData struct {
	Step  Step   `json:"step"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type SupportData struct {
	Step  Step   `json:"step"`
	Issue string `json:"issue,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type KnowledgeData struct {
	// EscalationPending survives process restarts so the hand-off offer and
	// the user's acceptance can arrive in separate turns.
	EscalationPending bool `json:"escalation_pending,omitempty"`
}

// Session is the persistent source-of-truth for one conversation. It is
// owned by the store; mutations land only through a compare-and-swap on
// Version.
type Session struct {
	ID               string           `json:"session_id"`
	VisitorID        string           `json:"visitor_id"`
	ConversationType ConversationType `json:"conversation_type"`

	// Exactly one of the three is non-nil and matches ConversationType.
	Sales     *SalesData     `json:"sales_data,omitempty"`
	Support   *SupportData   `json:"support_data,omitempty"`
	Knowledge *KnowledgeData `json:"knowledge_data,omitempty"`

	IsActive bool  `json:"is_active"`
	Version  int64 `json:"version"`

	CreatedAt         time.Time  `json:"created_at"`
	LastActivityAt    time.Time  `json:"last_activity_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	IdleWarningSentAt *time.Time `json:"idle_warning_sent_at,omitempty"`
}

var (
	ErrNilSession       = errors.New("session is nil")
	ErrInvalidSession   = errors.New("session id is empty")
	ErrVariantMismatch  = errors.New("conversation data variant does not match conversation type")
	ErrUnknownConvoType = errors.New("unknown conversation type")
)

const DefaultSessionTTL = 24 * time.Hour

// ParseConversationType maps a declared type onto the closed set, defaulting
// unknown or missing values to Knowledge.
func ParseConversationType(raw string) ConversationType {
	switch ConversationType(raw) {
	case ConversationSales, ConversationSupport, ConversationKnowledge:
		return ConversationType(raw)
	default:
		return ConversationKnowledge
	}
}

func NewSession(id, visitorID string, convoType ConversationType, now time.Time) *Session {
	s := &Session{
		ID:               id,
		VisitorID:        visitorID,
		ConversationType: convoType,
		IsActive:         true,
		Version:          1,
		CreatedAt:        now.UTC(),
		LastActivityAt:   now.UTC(),
		ExpiresAt:        now.UTC().Add(DefaultSessionTTL),
	}
	switch convoType {
	case ConversationSales:
		s.Sales = &SalesData{Step: StepName}
	case ConversationSupport:
		s.Support = &SupportData{Step: StepIssue}
	default:
		s.ConversationType = ConversationKnowledge
		s.Knowledge = &KnowledgeData{}
	}
	return s
}

func (s *Session) Touch(now time.Time) {
	s.LastActivityAt = now.UTC()
	s.IdleWarningSentAt = nil
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Step reports the current step for the active variant. Knowledge sessions
// are always implicitly chatting.
func (s *Session) Step() Step {
	switch s.ConversationType {
	case ConversationSales:
		if s.Sales != nil {
			return s.Sales.Step
		}
	case ConversationSupport:
		if s.Support != nil {
			return s.Support.Step
		}
	case ConversationKnowledge:
		return StepChatting
	}
	return ""
}

// MarkComplete locks the session. Collection variants also land on the
// terminal step; Knowledge has no step to move.
func (s *Session) MarkComplete() {
	s.IsActive = false
	switch s.ConversationType {
	case ConversationSales:
		if s.Sales != nil {
			s.Sales.Step = StepComplete
		}
	case ConversationSupport:
		if s.Support != nil {
			s.Support.Step = StepComplete
		}
	}
}

// EscalateToSales performs the one-way Knowledge -> Sales transfer: the
// conversation type flips and collection restarts from a fresh SalesData.
func (s *Session) EscalateToSales() error {
	if s.ConversationType != ConversationKnowledge {
		return fmt.Errorf("%w: cannot escalate from %s", ErrVariantMismatch, s.ConversationType)
	}
	s.ConversationType = ConversationSales
	s.Knowledge = nil
	s.Sales = &SalesData{Step: StepName}
	return nil
}

// DataSnapshot renders the active variant the way the transport layer
// expects it: a flat object with explicit nulls for uncollected fields.
func (s *Session) DataSnapshot() map[string]any {
	switch s.ConversationType {
	case ConversationSales:
		d := s.Sales
		if d == nil {
			return map[string]any{}
		}
		return map[string]any{
			"step":  string(d.Step),
			"name":  nullable(d.Name),
			"email": nullable(d.Email),
			"phone": nullable(d.Phone),
		}
	case ConversationSupport:
		d := s.Support
		if d == nil {
			return map[string]any{}
		}
		return map[string]any{
			"step":  string(d.Step),
			"issue": nullable(d.Issue),
			"name":  nullable(d.Name),
			"email": nullable(d.Email),
		}
	default:
		escalating := s.Knowledge != nil && s.Knowledge.EscalationPending
		return map[string]any{
			"step":               string(StepChatting),
			"escalation_pending": escalating,
		}
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if s.ID == "" {
		return ErrInvalidSession
	}
	switch s.ConversationType {
	case ConversationSales:
		if s.Sales == nil || s.Support != nil || s.Knowledge != nil {
			return ErrVariantMismatch
		}
		return validatePrefix(s.Sales.Step, SalesSequence, salesField(s.Sales))
	case ConversationSupport:
		if s.Support == nil || s.Sales != nil || s.Knowledge != nil {
			return ErrVariantMismatch
		}
		return validatePrefix(s.Support.Step, SupportSequence, supportField(s.Support))
	case ConversationKnowledge:
		if s.Knowledge == nil || s.Sales != nil || s.Support != nil {
			return ErrVariantMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConvoType, s.ConversationType)
	}
}

// validatePrefix enforces the step invariant: every field before the current
// step is populated. Fields at or after the step may be empty; confirmation
// rejection legitimately leaves a cleared later field, so only the populated
// prefix is checked.
func validatePrefix(step Step, seq []Step, field func(Step) string) error {
	for _, fs := range seq {
		if fs == step {
			return nil
		}
		if field(fs) == "" {
			return fmt.Errorf("%w: field %s empty before step %s", ErrVariantMismatch, fs, step)
		}
	}
	// confirmation/complete: the full prefix was already checked
	return nil
}

func salesField(d *SalesData) func(Step) string {
	return func(s Step) string {
		switch s {
		case StepName:
			return d.Name
		case StepEmail:
			return d.Email
		case StepPhone:
			return d.Phone
		}
		return ""
	}
}

func supportField(d *SupportData) func(Step) string {
	return func(s Step) string {
		switch s {
		case StepIssue:
			return d.Issue
		case StepName:
			return d.Name
		case StepEmail:
			return d.Email
		}
		return ""
	}
}

// Clone returns a deep copy so a retried turn can start from pristine state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Sales != nil {
		d := *s.Sales
		out.Sales = &d
	}
	if s.Support != nil {
		d := *s.Support
		out.Support = &d
	}
	if s.Knowledge != nil {
		d := *s.Knowledge
		out.Knowledge = &d
	}
	if s.IdleWarningSentAt != nil {
		t := *s.IdleWarningSentAt
		out.IdleWarningSentAt = &t
	}
	return &out
}
