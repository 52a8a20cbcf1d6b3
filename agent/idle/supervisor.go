package idle

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
)

type Config struct {
	WarnAfter time.Duration `split_words:"true" default:"120s"`
	EndAfter  time.Duration `split_words:"true" default:"240s"`
}

// NotifyFunc delivers supervisor events to the streaming surface.
type NotifyFunc func(sessionID string, event contractx.StreamEvent)

var warningMessages = []string{
	"Are you still there? I'm here if you need anything!",
	"Are you still around? Let me know if you need help!",
	"Just checking in - are you there? I'm ready to help when you are!",
	"Still here? Feel free to ask me anything!",
}

var endMessages = []string{
	"I'll end this session for now. Feel free to come back anytime if you need help!",
	"I'll close this session. Chat again soon if you need anything!",
	"I'll end this session. Come back whenever you're ready!",
}

// Supervisor tracks inactivity per streaming session. Each watched session
// gets a warning after WarnAfter of silence and is ended after EndAfter
// total. Timers run independently of turn handling; the only coordination
// point is the session store's version check.
type Supervisor struct {
	store  statex.Store
	cfg    Config
	notify NotifyFunc

	mu      sync.Mutex
	watches map[string]*watch
	closed  bool
}

type watch struct {
	warnTimer *time.Timer
	endTimer  *time.Timer
}

func NewSupervisor(store statex.Store, cfg Config, notify NotifyFunc) (*Supervisor, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = 120 * time.Second
	}
	if cfg.EndAfter <= cfg.WarnAfter {
		cfg.EndAfter = cfg.WarnAfter * 2
	}
	if notify == nil {
		notify = func(string, contractx.StreamEvent) {}
	}
	return &Supervisor{
		store:   store,
		cfg:     cfg,
		notify:  notify,
		watches: make(map[string]*watch),
	}, nil
}

// Watch starts (or restarts) the idle timers for a session.
func (s *Supervisor) Watch(sessionID string) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if w, ok := s.watches[sessionID]; ok {
		w.reset(s.cfg)
		return
	}
	s.watches[sessionID] = &watch{
		warnTimer: time.AfterFunc(s.cfg.WarnAfter, func() { s.warn(sessionID) }),
		endTimer:  time.AfterFunc(s.cfg.EndAfter, func() { s.end(sessionID) }),
	}
}

// Touch resets the session's timers; called on every inbound user message.
func (s *Supervisor) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.watches[sessionID]; ok {
		w.reset(s.cfg)
	}
}

// Stop cancels the session's timers without emitting any event.
func (s *Supervisor) Stop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.watches[sessionID]; ok {
		w.stop()
		delete(s.watches, sessionID)
	}
}

// Close stops every watch. The supervisor cannot be reused afterwards.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, w := range s.watches {
		w.stop()
		delete(s.watches, id)
	}
}

func (w *watch) reset(cfg Config) {
	w.warnTimer.Stop()
	w.warnTimer.Reset(cfg.WarnAfter)
	w.endTimer.Stop()
	w.endTimer.Reset(cfg.EndAfter)
}

func (w *watch) stop() {
	w.warnTimer.Stop()
	w.endTimer.Stop()
}

// warn records the idle warning on the session and emits a non-terminal
// event. The session stays active.
func (s *Supervisor) warn(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("idle warning skipped, session unavailable")
		return
	}
	if !sess.IsActive || sess.IdleWarningSentAt != nil {
		return
	}

	now := time.Now().UTC()
	updated := sess.Clone()
	updated.IdleWarningSentAt = &now
	updated.Version = sess.Version + 1

	if err := s.store.CompareAndSwap(ctx, sess.Version, updated); err != nil {
		// A turn landed in between; the visitor is back.
		log.Debug().Err(err).Str("session_id", sessionID).Msg("idle warning lost the version race")
		return
	}

	s.notify(sessionID, contractx.StreamEvent{
		Type:      contractx.StreamEventIdleWarning,
		SessionID: sessionID,
		Text:      warningMessages[rand.Intn(len(warningMessages))],
	})
}

// end locks the session and emits the terminal event. On a version conflict
// the session is re-read and the lock retried once; a session already locked
// by someone else just drops the event.
func (s *Supervisor) end(sessionID string) {
	defer s.Stop(sessionID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for attempt := 0; attempt < 2; attempt++ {
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("idle end skipped, session unavailable")
			return
		}
		if !sess.IsActive {
			return
		}

		updated := sess.Clone()
		updated.MarkComplete()
		updated.Version = sess.Version + 1

		err = s.store.CompareAndSwap(ctx, sess.Version, updated)
		if errors.Is(err, statex.ErrVersionConflict) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("idle end failed")
			return
		}

		message := endMessages[rand.Intn(len(endMessages))]
		s.notify(sessionID, contractx.StreamEvent{
			Type:      contractx.StreamEventSessionEnd,
			SessionID: sessionID,
			Text:      message,
			Response: &contractx.TurnResponse{
				Message:          message,
				ConversationData: updated.DataSnapshot(),
				Complete:         true,
				Suggestions:      []string{},
			},
		})
		return
	}
	log.Warn().Str("session_id", sessionID).Msg("idle end gave up after version conflicts")
}
