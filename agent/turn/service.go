package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	flowx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/flow"
	nodex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/nodes"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrInvalidVisitor = nodex.ErrInvalidVisitor
)

// casRetryBudget is the number of full-turn reprocesses allowed after a
// losing compare-and-swap before the conflict is surfaced.
const casRetryBudget = 2

// IdleSupervisor tracks conversation inactivity between turns.
type IdleSupervisor interface {
	Watch(sessionID string)
	Stop(sessionID string)
}

// Option configures an Agent.
type Option func(*Agent)

// WithIdleSupervisor wires inactivity tracking into turn handling. Watched
// sessions get their timers restarted on every handled turn and stopped when
// the conversation completes; supervisor events are delivered to the live
// stream through NotifyIdle.
func WithIdleSupervisor(sup IdleSupervisor) Option {
	return func(a *Agent) { a.supervisor = sup }
}

// Agent coordinates one conversation turn end to end: load, route, advance,
// persist, publish, record.
type Agent struct {
	store      statex.Store
	router     *flowx.Router
	publisher  contractx.LeadPublisher
	msgLog     contractx.MessageLog
	supervisor IdleSupervisor

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	mu      sync.Mutex
	streams map[string]chan contractx.StreamEvent

	now func() time.Time
}

func New(
	store statex.Store,
	router *flowx.Router,
	publisher contractx.LeadPublisher,
	msgLog contractx.MessageLog,
	opts ...Option,
) (*Agent, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if router == nil {
		return nil, errors.New("flow router is required")
	}

	a := &Agent{
		store:     store,
		router:    router,
		publisher: publisher,
		msgLog:    msgLog,
		streams:   make(map[string]chan contractx.StreamEvent),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	graphRunner, err := a.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

// CreateSession mints a new session for the visitor. Unknown conversation
// types default to Knowledge.
func (a *Agent) CreateSession(ctx context.Context, visitorID, conversationType string) (*statex.Session, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, ErrInvalidVisitor
	}

	sess := statex.NewSession(
		uuid.NewString(),
		visitorID,
		statex.ParseConversationType(strings.TrimSpace(conversationType)),
		a.now(),
	)
	if err := a.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// HandleTurn processes one user turn. A turn that loses the session's
// version race is reprocessed from a fresh read, up to the retry budget.
func (a *Agent) HandleTurn(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	in := nodex.GraphInput{
		SessionID: req.SessionID,
		VisitorID: req.VisitorID,
		Text:      req.Message,
	}

	var lastErr error
	for attempt := 0; attempt <= casRetryBudget; attempt++ {
		out, err := a.graphRunner.Invoke(ctx, in)
		if err == nil {
			a.trackIdle(req.SessionID, out.Response)
			return out.Response, nil
		}
		if !errors.Is(err, contractx.ErrConcurrentModification) {
			return contractx.TurnResponse{}, err
		}
		lastErr = err
	}
	return contractx.TurnResponse{}, lastErr
}

// trackIdle restarts the session's inactivity timers after a handled turn,
// or tears them down once the conversation is complete.
func (a *Agent) trackIdle(sessionID string, resp contractx.TurnResponse) {
	if a.supervisor == nil {
		return
	}
	if resp.Complete {
		a.supervisor.Stop(sessionID)
		return
	}
	a.supervisor.Watch(sessionID)
}

// NotifyIdle delivers a supervisor event to the session's live stream. With
// no stream attached the event is dropped; the session mutation already
// happened on the supervisor side.
func (a *Agent) NotifyIdle(sessionID string, event contractx.StreamEvent) {
	a.mu.Lock()
	ch, ok := a.streams[sessionID]
	a.mu.Unlock()
	if !ok {
		log.Debug().Str("session_id", sessionID).Str("event", string(event.Type)).Msg("idle event dropped, no live stream")
		return
	}
	select {
	case ch <- event:
	default:
		log.Warn().Str("session_id", sessionID).Str("event", string(event.Type)).Msg("idle event dropped, stream backed up")
	}
}

func (a *Agent) attachStream(sessionID string) chan contractx.StreamEvent {
	ch := make(chan contractx.StreamEvent, 4)
	a.mu.Lock()
	a.streams[sessionID] = ch
	a.mu.Unlock()
	return ch
}

func (a *Agent) detachStream(sessionID string, ch chan contractx.StreamEvent) {
	a.mu.Lock()
	if a.streams[sessionID] == ch {
		delete(a.streams, sessionID)
	}
	a.mu.Unlock()
}

// HandleTurnStream processes the turn and emits the reply as ordered chunk
// events followed by one completion event. Free-form answers stream word by
// word; deterministic collection prompts arrive as a single chunk. With an
// idle supervisor wired, the channel then stays open for out-of-band
// idle-warning and session-end events until the context ends or the
// supervisor ends the session.
func (a *Agent) HandleTurnStream(ctx context.Context, req contractx.TurnRequest) (<-chan contractx.StreamEvent, error) {
	events := make(chan contractx.StreamEvent)

	go func() {
		defer close(events)

		var oob chan contractx.StreamEvent
		if a.supervisor != nil {
			oob = a.attachStream(req.SessionID)
			defer a.detachStream(req.SessionID, oob)
		}

		resp, err := a.HandleTurn(ctx, req)
		if err != nil {
			select {
			case events <- contractx.StreamEvent{
				Type:      contractx.StreamEventError,
				SessionID: req.SessionID,
				Text:      err.Error(),
			}:
			case <-ctx.Done():
			}
			return
		}

		for _, chunk := range chunkMessage(resp) {
			select {
			case events <- contractx.StreamEvent{
				Type:      contractx.StreamEventChunk,
				SessionID: req.SessionID,
				Text:      chunk,
			}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case events <- contractx.StreamEvent{
			Type:      contractx.StreamEventCompletion,
			SessionID: req.SessionID,
			Response:  &resp,
		}:
		case <-ctx.Done():
			return
		}

		if oob == nil || resp.Complete {
			return
		}
		for {
			select {
			case ev := <-oob:
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Type == contractx.StreamEventSessionEnd {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func chunkMessage(resp contractx.TurnResponse) []string {
	if resp.NeedsInfo != "" {
		return []string{resp.Message}
	}

	words := strings.Fields(resp.Message)
	chunks := make([]string, 0, len(words))
	for i, w := range words {
		if i == 0 {
			chunks = append(chunks, w)
			continue
		}
		chunks = append(chunks, " "+w)
	}
	return chunks
}
