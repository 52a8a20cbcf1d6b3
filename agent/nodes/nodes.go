package turnnode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	flowx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/flow"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidVisitor = errors.New("visitor id is empty")
)

const historyWindow = 20

type GraphInput struct {
	SessionID string
	VisitorID string
	Text      string
}

type GraphOutput struct {
	Response contractx.TurnResponse
}

// GraphState threads one turn through the graph. Session is a private clone;
// the stored record changes only when the compare-and-swap wins.
type GraphState struct {
	SessionID string
	VisitorID string
	Text      string
	Now       time.Time

	Session         *statex.Session
	ExpectedVersion int64
	Flow            flowx.Flow
	History         []contractx.Message
	Outcome         contractx.Outcome
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	visitorID := strings.TrimSpace(in.VisitorID)
	if visitorID == "" {
		return nil, ErrInvalidVisitor
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		VisitorID: visitorID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}

// LoadSession reads the session and enforces ownership, expiry, and the
// lock before any mutation can happen.
func LoadSession(ctx context.Context, in *GraphState, store statex.Store, msgLog contractx.MessageLog) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Get(ctx, in.SessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, contractx.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if sess.VisitorID != in.VisitorID {
		return nil, contractx.ErrVisitorMismatch
	}
	if sess.IsExpired(in.Now) {
		return nil, contractx.ErrSessionExpired
	}
	if !sess.IsActive {
		return nil, contractx.ErrSessionLocked
	}

	in.ExpectedVersion = sess.Version
	in.Session = sess.Clone()

	if msgLog != nil {
		history, err := msgLog.History(ctx, in.SessionID, historyWindow)
		if err != nil {
			log.Warn().Err(err).Str("session_id", in.SessionID).Msg("history unavailable, continuing without it")
		} else {
			in.History = history
		}
	}
	return in, nil
}

// RouteFlow is pure selection; only escalation inside a flow may change the
// session's conversation type afterwards.
func RouteFlow(in *GraphState, router *flowx.Router) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: session not loaded", contractx.ErrValidation)
	}
	in.Flow = router.Select(in.Session.ConversationType)
	return in, nil
}

func AdvanceFlow(ctx context.Context, in *GraphState) (*GraphState, error) {
	if in == nil || in.Flow == nil {
		return nil, fmt.Errorf("%w: flow not routed", contractx.ErrValidation)
	}

	outcome, err := in.Flow.Advance(ctx, in.Session, in.Text, in.History)
	if err != nil {
		return nil, err
	}
	in.Outcome = outcome
	in.Session.Touch(in.Now)
	return in, nil
}

// PersistSession is the turn's single commit point: a compare-and-swap on
// the version read at load time. A conflict means another writer advanced
// the session first; the whole turn is retried by the caller.
func PersistSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: session not loaded", contractx.ErrValidation)
	}

	in.Session.Version = in.ExpectedVersion + 1
	err := store.CompareAndSwap(ctx, in.ExpectedVersion, in.Session)
	if errors.Is(err, statex.ErrVersionConflict) {
		return nil, contractx.ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

// PublishLead hands a completed lead off after the session update is
// durable. Delivery failure is logged, not surfaced; the queue owns retries
// and the lock already guarantees the flow cannot complete twice.
func PublishLead(ctx context.Context, in *GraphState, publisher contractx.LeadPublisher) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Outcome.Lead == nil || publisher == nil {
		return in, nil
	}

	if err := publisher.Publish(ctx, *in.Outcome.Lead); err != nil {
		log.Error().Err(err).Str("session_id", in.SessionID).Msg("lead publish failed")
	}
	return in, nil
}

// RecordMessages appends the user and assistant transcript rows. The
// transcript is advisory; failures never fail the turn.
func RecordMessages(ctx context.Context, in *GraphState, msgLog contractx.MessageLog) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if msgLog == nil {
		return in, nil
	}

	if _, err := msgLog.Append(ctx, contractx.Message{
		SessionID: in.SessionID,
		Role:      contractx.RoleUser,
		Text:      in.Text,
		CreatedAt: in.Now,
	}); err != nil {
		log.Warn().Err(err).Str("session_id", in.SessionID).Msg("user message append failed")
	}

	if _, err := msgLog.Append(ctx, contractx.Message{
		SessionID: in.SessionID,
		Role:      contractx.RoleAssistant,
		Text:      in.Outcome.Message,
		CreatedAt: in.Now,
	}); err != nil {
		log.Warn().Err(err).Str("session_id", in.SessionID).Msg("assistant message append failed")
	}
	return in, nil
}

func Finalize(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: session not loaded", contractx.ErrValidation)
	}

	suggestions := in.Outcome.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	return GraphOutput{
		Response: contractx.TurnResponse{
			Message:          in.Outcome.Message,
			ConversationData: in.Session.DataSnapshot(),
			Complete:         in.Outcome.Complete,
			NeedsInfo:        in.Outcome.NeedsInfo,
			Suggestions:      suggestions,
			EscalatedTo:      in.Outcome.EscalatedTo,
			BestEffort:       in.Outcome.BestEffort,
		},
	}, nil
}
