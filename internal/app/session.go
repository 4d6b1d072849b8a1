package app

import (
	"sync"
	"time"

	"signquiz-service/internal/domain"
	"signquiz-service/internal/quiz"
)

// Session is a hosted quiz run: the state machine, its owner, and the
// subscribers waiting for countdown events.
type Session struct {
	id        string
	owner     string
	mode      domain.Mode
	createdAt time.Time
	core      *quiz.Session
	team      *quiz.TurnCoordinator

	mu          sync.Mutex
	closed      bool
	challenges  int
	subscribers map[chan domain.Event]struct{}
}

func newSession(id, owner string, mode domain.Mode) *Session {
	return &Session{
		id:          id,
		owner:       owner,
		mode:        mode,
		createdAt:   time.Now(),
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// NewSession wraps an existing state machine; infrastructure tests use it to seed stores.
func NewSession(id, owner string, core *quiz.Session, team *quiz.TurnCoordinator) *Session {
	s := newSession(id, owner, core.Mode())
	s.core = core
	s.team = team
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Owner() string        { return s.owner }
func (s *Session) Mode() domain.Mode    { return s.mode }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) snapshot() Snapshot {
	_, q := s.core.Current()
	snap := Snapshot{
		SessionID: s.id,
		State:     s.core.State(),
		Question:  q,
	}
	if s.team != nil {
		snap.Players = s.team.Players()
		snap.CurrentPlayer = s.team.Current()
	}
	s.mu.Lock()
	snap.Challenges = s.challenges
	s.mu.Unlock()
	return snap
}

func (s *Session) addChallenge() {
	s.mu.Lock()
	s.challenges++
	s.mu.Unlock()
}

func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) publish(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// close stops the countdown, tells subscribers the session ended and
// detaches them. It reports false if the session was already closed.
func (s *Session) close() bool {
	s.core.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	ev := domain.Event{Type: domain.EventSessionEnded, SessionID: s.id}
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
		close(ch)
		delete(s.subscribers, ch)
	}
	return true
}
