// Package quiz holds the per-question state machine behind a quiz run:
// single-answer questions, paid hints, countdowns and team turns.
package quiz

import (
	"fmt"
	"sync"
	"time"

	"signquiz-service/internal/domain"
)

// Options tunes a session.
type Options struct {
	// TimeLimit is the per-question countdown; zero disables it.
	TimeLimit time.Duration
	Clock     Clock
	// OnTimeUp runs after the countdown resolved the current question.
	OnTimeUp func(domain.Outcome)
	// StartPaused keeps the countdown frozen until SetPaused(false).
	StartPaused bool
}

// State is a point-in-time view of a session.
type State struct {
	Mode          domain.Mode   `json:"mode"`
	Index         int           `json:"index"`
	Total         int           `json:"total"`
	Answered      bool          `json:"answered"`
	SelectedIndex *int          `json:"selectedIndex,omitempty"`
	HintUsed      bool          `json:"hintUsed"`
	Paused        bool          `json:"paused"`
	Ended         bool          `json:"ended"`
	Remaining     time.Duration `json:"remaining"`
}

// Session drives one question at a time. The countdown fires on its own
// goroutine, so every transition is taken under mu.
type Session struct {
	mu        sync.Mutex
	mode      domain.Mode
	questions []domain.Question
	index     int
	answered  bool
	selected  *int
	hintUsed  bool
	paused    bool
	ended     bool
	last      domain.Outcome
	timer     *Timer
	onTimeUp  func(domain.Outcome)
	timeLimit time.Duration
}

// NewSession starts a session on the first question. The questions are copied.
func NewSession(mode domain.Mode, questions []domain.Question, opts Options) (*Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}
	owned := make([]domain.Question, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		owned[i] = q.Clone()
	}

	s := &Session{
		mode:      mode,
		questions: owned,
		paused:    opts.StartPaused,
		onTimeUp:  opts.OnTimeUp,
		timeLimit: opts.TimeLimit,
	}
	s.timer = NewTimer(opts.Clock, opts.TimeLimit, s.expire)
	s.timer.Reset()
	s.timer.SetActive(!s.paused)
	return s, nil
}

// Mode returns the session mode.
func (s *Session) Mode() domain.Mode { return s.mode }

// TimeLimit returns the configured per-question countdown.
func (s *Session) TimeLimit() time.Duration { return s.timeLimit }

// Current returns the active question and its index.
func (s *Session) Current() (int, domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.questions[s.index].Clone()
}

// State snapshots the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Mode:      s.mode,
		Index:     s.index,
		Total:     len(s.questions),
		Answered:  s.answered,
		HintUsed:  s.hintUsed,
		Paused:    s.paused,
		Ended:     s.ended,
		Remaining: s.timer.Remaining(),
	}
	if s.selected != nil {
		v := *s.selected
		st.SelectedIndex = &v
	}
	return st
}

// SubmitAnswer resolves the current question with the answer at index.
// Once the question is resolved, further calls return the first outcome with ErrAlreadyAnswered.
func (s *Session) SubmitAnswer(index int) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.answered {
		return s.last, domain.ErrAlreadyAnswered
	}
	q := s.questions[s.index]
	if index < 0 || index >= len(q.Answers) {
		return domain.Outcome{}, fmt.Errorf("%w: %d", domain.ErrInvalidAnswerIndex, index)
	}
	selected := index
	return s.resolveLocked(q.Answers[index].IsCorrect, &selected, false), nil
}

// Timeout resolves the current question as incorrect without a selection.
func (s *Session) Timeout() (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.answered {
		return s.last, domain.ErrAlreadyAnswered
	}
	return s.resolveLocked(false, nil, true), nil
}

// judge resolves the current question from a facilitator's verdict.
func (s *Session) judge(correct bool) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.answered {
		return s.last, domain.ErrAlreadyAnswered
	}
	return s.resolveLocked(correct, nil, false), nil
}

func (s *Session) resolveLocked(correct bool, selected *int, timedOut bool) domain.Outcome {
	s.answered = true
	s.selected = selected
	s.timer.SetActive(false)

	out := domain.Outcome{
		QuestionID: s.questions[s.index].ID,
		IsCorrect:  correct,
		CoinReward: s.questions[s.index].CoinReward,
		HintUsed:   s.hintUsed,
		TimedOut:   timedOut,
	}
	if selected != nil {
		v := *selected
		out.SelectedIndex = &v
	}
	s.last = out
	return out
}

// UseHint buys the correct answer's position. Checks run in order: answered,
// hint already used, then debit, which must refuse when funds are short.
// The hint is marked used only when debit succeeds.
func (s *Session) UseHint(debit func(cost int) (int, error)) (domain.HintResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.answered {
		return domain.HintResult{}, domain.ErrAlreadyAnswered
	}
	if s.hintUsed {
		return domain.HintResult{}, domain.ErrHintAlreadyUsed
	}
	balance, err := debit(domain.HintCost)
	if err != nil {
		return domain.HintResult{}, err
	}
	s.hintUsed = true

	q := s.questions[s.index]
	return domain.HintResult{
		QuestionID:   q.ID,
		CorrectIndex: q.CorrectIndex(),
		Balance:      balance,
	}, nil
}

// NextQuestion moves forward. Solo sessions wrap to the first question; other
// modes report ended after the last one and stay put.
func (s *Session) NextQuestion() (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Session) nextLocked() (domain.Question, bool) {
	if s.ended {
		return s.questions[s.index].Clone(), true
	}
	next := s.index + 1
	if next == len(s.questions) {
		if !s.mode.Wraps() {
			s.ended = true
			s.timer.Stop()
			return s.questions[s.index].Clone(), true
		}
		next = 0
	}

	s.index = next
	s.answered = false
	s.selected = nil
	s.hintUsed = false
	s.last = domain.Outcome{}
	s.timer.Reset()
	s.timer.SetActive(!s.paused)
	return s.questions[s.index].Clone(), false
}

// SetPaused freezes or resumes the countdown, e.g. while a dialog is open.
func (s *Session) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
	s.timer.SetActive(!s.answered && !s.paused && !s.ended)
}

// Close stops the countdown; the session must not be used afterwards.
func (s *Session) Close() {
	s.timer.Stop()
}

// expire resolves the question only while the countdown that fired is still
// the current one; an answer and a move to the next question may land between
// the timer firing and this call taking mu.
func (s *Session) expire(run uint64) {
	s.mu.Lock()
	if s.answered || s.ended || !s.timer.Expired(run) {
		s.mu.Unlock()
		return
	}
	out := s.resolveLocked(false, nil, true)
	s.mu.Unlock()

	if s.onTimeUp != nil {
		s.onTimeUp(out)
	}
}
