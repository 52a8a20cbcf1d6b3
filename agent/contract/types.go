package contract

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is an immutable chat transcript record. Rows are created once per
// turn per role and never mutated; removal is a soft delete.
type Message struct {
	ID        string            `json:"id,omitempty"`
	SessionID string            `json:"session_id"`
	Role      Role              `json:"role"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TurnRequest is the transport-facing input for one user turn.
type TurnRequest struct {
	Message          string `json:"message"`
	SessionID        string `json:"session_id"`
	VisitorID        string `json:"visitor_id"`
	ConversationType string `json:"conversation_type,omitempty"`
}

// TurnResponse is the transport-facing output for one user turn.
type TurnResponse struct {
	Message          string         `json:"message"`
	ConversationData map[string]any `json:"conversation_data"`
	Complete         bool           `json:"complete"`
	NeedsInfo        string         `json:"needs_info,omitempty"`
	Suggestions      []string       `json:"suggestions"`
	EscalatedTo      string         `json:"escalated_to,omitempty"`
	// BestEffort marks an answer whose validation pass was skipped because
	// the pipeline deadline elapsed. It is a quality flag, not an error.
	BestEffort bool `json:"best_effort,omitempty"`
}

// Outcome is what a conversation flow produces for one advanced turn.
type Outcome struct {
	Message     string
	Suggestions []string
	Complete    bool
	NeedsInfo   string
	EscalatedTo string
	BestEffort  bool

	// Lead is set when the turn finished a collection flow; it is published
	// only after the session update wins its compare-and-swap.
	Lead *Lead
}

// Lead is the hand-off payload published when a Sales or Support flow
// completes. Delivery beyond the publish call is an external concern.
type Lead struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"` // "sales" | "support"
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Issue     string `json:"issue,omitempty"`
}

// Snippet is one ranked retrieval result.
type Snippet struct {
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	SourceRef string  `json:"source_ref,omitempty"`
}

// GenerateRequest is a single call to the reasoning service.
type GenerateRequest struct {
	System      string
	Prompt      string
	History     []Message
	Temperature float64
	MaxTokens   int64
}

// Answer is the pipeline's final product for one turn.
type Answer struct {
	Text       string
	BestEffort bool
}

// StreamEventType enumerates events on the streaming surface.
type StreamEventType string

const (
	StreamEventChunk       StreamEventType = "chunk"
	StreamEventCompletion  StreamEventType = "completion"
	StreamEventIdleWarning StreamEventType = "idle_warning"
	StreamEventSessionEnd  StreamEventType = "session_end"
	StreamEventError       StreamEventType = "error"
)

// StreamEvent is one ordered event on the streaming surface. Chunk events
// carry Text only; the completion event carries the full TurnResponse.
// Idle-warning and session-end events arrive out of band on the same channel.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	SessionID string          `json:"session_id"`
	Text      string          `json:"text,omitempty"`
	Response  *TurnResponse   `json:"response,omitempty"`
}
