package contract

import "context"

// Reasoner is the contract expected from the external reasoning service.
// Implementations must honor the caller-supplied context deadline.
type Reasoner interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Retriever is the contract expected from the external knowledge retrieval
// service. An empty result list is a valid answer.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// MessageLog stores the immutable chat transcript.
type MessageLog interface {
	Append(ctx context.Context, msg Message) (Message, error)
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	SoftDelete(ctx context.Context, messageID string) error
}

// LeadPublisher hands a completed lead off to the external delivery system.
type LeadPublisher interface {
	Publish(ctx context.Context, lead Lead) error
}
