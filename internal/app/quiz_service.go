package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"signquiz-service/internal/domain"
	"signquiz-service/internal/logging"
	"signquiz-service/internal/metrics"
	"signquiz-service/internal/quiz"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionLoader fetches question content from a backing store.
type QuestionLoader interface {
	LoadBank(ctx context.Context) ([]domain.Question, error)
	LoadScenario(ctx context.Context, name string) ([]domain.Question, error)
}

// QuestionProvider deals the questions of a new session.
type QuestionProvider interface {
	GetRandomized(ctx context.Context) ([]domain.Question, error)
	GetSequential(ctx context.Context, scenario string) ([]domain.Question, error)
}

// CoinLedger keeps per-user balances. Subtract must fail with an
// *domain.InsufficientFundsError instead of going below zero.
type CoinLedger interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Add(ctx context.Context, userID string, amount int) (int, error)
	Subtract(ctx context.Context, userID string, amount int) (int, error)
}

// ChallengeCounter counts completed challenges per user.
type ChallengeCounter interface {
	Increment(ctx context.Context, userID string) (int, error)
}

// StartRequest describes a new session.
type StartRequest struct {
	Mode      domain.Mode   `validate:"required,oneof=solo team simulation"`
	Scenario  string        `validate:"required_if=Mode simulation"`
	Players   []string      `validate:"dive,required"`
	TimeLimit time.Duration `validate:"gte=0"`
}

// Snapshot is what a client needs to render the current question.
type Snapshot struct {
	SessionID     string          `json:"sessionId"`
	State         quiz.State      `json:"state"`
	Question      domain.Question `json:"question"`
	Players       []string        `json:"players,omitempty"`
	CurrentPlayer string          `json:"currentPlayer,omitempty"`
	Challenges    int             `json:"challenges"`
}

// QuizService hosts quiz sessions and applies the coin rules around them.
type QuizService struct {
	sessions   SessionRepository
	questions  QuestionProvider
	ledger     CoinLedger
	challenges ChallengeCounter
	reconciler *Reconciler
	metrics    *metrics.Metrics
	logger     *slog.Logger
	validate   *validator.Validate
	clock      quiz.Clock
	spinner    quiz.Randomizer
	spinMu     sync.Mutex
	newID      func() string
	timeLimit  time.Duration
}

// Option customises a QuizService.
type Option func(*QuizService)

func WithChallengeCounter(c ChallengeCounter) Option {
	return func(s *QuizService) { s.challenges = c }
}

func WithReconciler(r *Reconciler) Option {
	return func(s *QuizService) { s.reconciler = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *QuizService) { s.logger = l }
}

// WithClock drives session countdowns; tests pass a fake.
func WithClock(c quiz.Clock) Option {
	return func(s *QuizService) { s.clock = c }
}

func WithSpinner(r quiz.Randomizer) Option {
	return func(s *QuizService) { s.spinner = r }
}

// WithTimeLimit sets the countdown used when a StartRequest has none.
func WithTimeLimit(d time.Duration) Option {
	return func(s *QuizService) { s.timeLimit = d }
}

func WithIDGenerator(f func() string) Option {
	return func(s *QuizService) { s.newID = f }
}

func NewQuizService(store SessionRepository, questions QuestionProvider, ledger CoinLedger, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:  store,
		questions: questions,
		ledger:    ledger,
		validate:  validator.New(),
		clock:     quiz.RealClock(),
		spinner:   rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

// StartSession deals questions for the requested mode and opens a session owned by userID.
func (s *QuizService) StartSession(ctx context.Context, userID string, req StartRequest) (Snapshot, error) {
	if err := s.validate.Struct(req); err != nil {
		return Snapshot{}, fmt.Errorf("invalid start request: %w", err)
	}
	if req.Mode == domain.ModeTeam && len(req.Players) == 0 {
		return Snapshot{}, fmt.Errorf("%w: team mode needs players", domain.ErrUnknownPlayer)
	}

	var (
		questions []domain.Question
		err       error
	)
	if req.Mode == domain.ModeSimulation {
		questions, err = s.questions.GetSequential(ctx, req.Scenario)
	} else {
		questions, err = s.questions.GetRandomized(ctx)
	}
	if err != nil {
		return Snapshot{}, err
	}

	limit := req.TimeLimit
	if limit == 0 {
		limit = s.timeLimit
	}

	session := newSession(s.newID(), userID, req.Mode)
	core, err := quiz.NewSession(req.Mode, questions, quiz.Options{
		TimeLimit:   limit,
		Clock:       s.clock,
		OnTimeUp:    func(out domain.Outcome) { s.timeUp(session, out) },
		StartPaused: req.Mode == domain.ModeTeam,
	})
	if err != nil {
		return Snapshot{}, err
	}
	session.core = core
	if req.Mode == domain.ModeTeam {
		team, err := quiz.NewTurnCoordinator(core, req.Players)
		if err != nil {
			core.Close()
			return Snapshot{}, err
		}
		session.team = team
	}

	s.sessions.Save(session)
	s.metrics.ActiveSessions.WithLabelValues(string(req.Mode)).Inc()
	s.logger.Info("session started", "session", session.id, "user", userID, "mode", req.Mode, "questions", len(questions))
	return session.snapshot(), nil
}

// Snapshot returns the current view of a session.
func (s *QuizService) Snapshot(_ context.Context, sessionID, userID string) (Snapshot, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(), nil
}

// SubmitAnswer resolves the current question with the chosen answer and credits the reward.
// A repeat submission returns the first outcome together with domain.ErrAlreadyAnswered.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID, userID string, index int) (domain.AnswerResult, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if session.team != nil {
		return domain.AnswerResult{}, domain.ErrJudgeRequired
	}

	out, err := session.core.SubmitAnswer(index)
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		return domain.AnswerResult{Outcome: out, Repeated: true}, err
	}
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return s.settle(ctx, session, out), nil
}

// Timeout resolves the current question as unanswered. Team sessions return
// a hand-off to player selection instead of a result.
func (s *QuizService) Timeout(ctx context.Context, sessionID, userID string) (domain.AnswerResult, *domain.Handoff, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return domain.AnswerResult{}, nil, err
	}

	if session.team != nil {
		h, err := session.team.Timeout()
		if err != nil {
			return domain.AnswerResult{}, nil, err
		}
		s.metrics.Answers.WithLabelValues(string(session.mode), "timeout").Inc()
		return domain.AnswerResult{}, &h, nil
	}

	out, err := session.core.Timeout()
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		return domain.AnswerResult{Outcome: out, Repeated: true}, nil, err
	}
	if err != nil {
		return domain.AnswerResult{}, nil, err
	}
	return s.settle(ctx, session, out), nil, nil
}

// Judge records a facilitator verdict for the current team turn.
func (s *QuizService) Judge(ctx context.Context, sessionID, userID string, correct bool) (domain.AnswerResult, string, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return domain.AnswerResult{}, "", err
	}
	if session.team == nil {
		return domain.AnswerResult{}, "", domain.ErrNotTeamMode
	}

	out, player, err := session.team.Judge(correct)
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		return domain.AnswerResult{Outcome: out, Repeated: true}, player, err
	}
	if err != nil {
		return domain.AnswerResult{}, player, err
	}
	return s.settle(ctx, session, out), player, nil
}

// UseHint buys the current question's answer for domain.HintCost coins.
// The hint is only marked used if the ledger debit went through.
func (s *QuizService) UseHint(ctx context.Context, sessionID, userID string) (domain.HintResult, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return domain.HintResult{}, err
	}

	res, err := session.core.UseHint(func(cost int) (int, error) {
		return s.ledger.Subtract(ctx, session.owner, cost)
	})
	s.metrics.Hints.WithLabelValues(hintResultLabel(err)).Inc()
	if err != nil {
		var funds *domain.InsufficientFundsError
		if !errors.As(err, &funds) && !errors.Is(err, domain.ErrAlreadyAnswered) && !errors.Is(err, domain.ErrHintAlreadyUsed) {
			s.metrics.LedgerFailures.WithLabelValues("subtract").Inc()
			s.logger.Warn("hint debit failed", "session", session.id, "user", session.owner, "error", err)
		}
		return domain.HintResult{}, err
	}
	return res, nil
}

// NextQuestion advances the session. When a non-wrapping session runs out of
// questions it is closed and ended is true.
func (s *QuizService) NextQuestion(ctx context.Context, sessionID, userID string) (Snapshot, bool, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return Snapshot{}, false, err
	}

	var ended bool
	if session.team != nil {
		_, ended = session.team.Next()
	} else {
		_, ended = session.core.NextQuestion()
	}
	snap := session.snapshot()
	if ended {
		s.finish(session)
	}
	return snap, ended, nil
}

// SetPaused freezes the countdown while a blocking dialog is shown.
func (s *QuizService) SetPaused(_ context.Context, sessionID, userID string, paused bool) (quiz.State, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return quiz.State{}, err
	}
	session.core.SetPaused(paused)
	return session.core.State(), nil
}

// SelectPlayer starts the next team turn. An empty player spins the server-side spinner.
func (s *QuizService) SelectPlayer(_ context.Context, sessionID, userID, player string) (string, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return "", err
	}
	if session.team == nil {
		return "", domain.ErrNotTeamMode
	}
	if player != "" {
		if err := session.team.ChoosePlayer(player); err != nil {
			return "", err
		}
		return player, nil
	}
	s.spinMu.Lock()
	defer s.spinMu.Unlock()
	return session.team.SelectPlayer(s.spinner)
}

// Scoreboard returns the team standings.
func (s *QuizService) Scoreboard(_ context.Context, sessionID, userID string) (domain.Scoreboard, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	if session.team == nil {
		return domain.Scoreboard{}, domain.ErrNotTeamMode
	}
	return domain.Scoreboard{
		SessionID: session.id,
		Entries:   session.team.Scoreboard(),
		UpdatedAt: time.Now(),
	}, nil
}

// Subscribe returns a channel of asynchronous session events (countdown expiry, hand-offs, end).
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID, userID string) (<-chan domain.Event, func(), error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// End abandons a session. Nothing about it is kept.
func (s *QuizService) End(_ context.Context, sessionID, userID string) error {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return err
	}
	s.finish(session)
	return nil
}

// Balance returns the user's coin balance.
func (s *QuizService) Balance(ctx context.Context, userID string) (int, error) {
	return s.ledger.GetBalance(ctx, userID)
}

func (s *QuizService) lookup(sessionID, userID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.owner != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) finish(session *Session) {
	if !session.close() {
		return
	}
	s.sessions.Delete(session.id)
	s.metrics.ActiveSessions.WithLabelValues(string(session.mode)).Dec()
	s.logger.Info("session ended", "session", session.id, "user", session.owner)
}

// settle applies the reward rule to a fresh outcome: a correct answer credits
// the question's reward unless a hint was bought for it.
func (s *QuizService) settle(ctx context.Context, session *Session, out domain.Outcome) domain.AnswerResult {
	result := domain.AnswerResult{Outcome: out}
	s.metrics.Answers.WithLabelValues(string(session.mode), answerResultLabel(out)).Inc()
	if !out.IsCorrect {
		return result
	}

	s.countChallenge(ctx, session)
	if out.HintUsed {
		return result
	}

	reward := out.CoinReward
	if reward == 0 {
		return result
	}
	result.Awarded = reward

	balance, err := s.ledger.Add(ctx, session.owner, reward)
	if err != nil {
		s.metrics.LedgerFailures.WithLabelValues("add").Inc()
		s.logger.Warn("coin credit failed, queued for retry", "session", session.id, "user", session.owner, "amount", reward, "error", err)
		result.Pending = s.retry("add", func(ctx context.Context) error {
			_, err := s.ledger.Add(ctx, session.owner, reward)
			return err
		})
		return result
	}
	s.metrics.CoinsAwarded.Add(float64(reward))
	result.Balance = balance
	return result
}

// countChallenge bumps the local count and reports it upstream. A failed
// upstream increment is queued for retry so the answer flow never waits on it.
func (s *QuizService) countChallenge(ctx context.Context, session *Session) {
	session.addChallenge()
	if s.challenges == nil {
		return
	}
	owner := session.owner
	if _, err := s.challenges.Increment(ctx, owner); err != nil {
		s.metrics.LedgerFailures.WithLabelValues("challenge").Inc()
		s.logger.Warn("challenge count failed, queued for retry", "session", session.id, "user", owner, "error", err)
		s.retry("challenge", func(ctx context.Context) error {
			_, err := s.challenges.Increment(ctx, owner)
			return err
		})
	}
}

func (s *QuizService) retry(op string, fn func(ctx context.Context) error) bool {
	if s.reconciler == nil {
		s.logger.Warn("no reconciler configured, dropping write", "op", op)
		return false
	}
	return s.reconciler.Enqueue(op, fn)
}

func (s *QuizService) timeUp(session *Session, out domain.Outcome) {
	s.metrics.Answers.WithLabelValues(string(session.mode), "timeout").Inc()
	if session.team != nil {
		h := session.team.HandOff(out)
		session.publish(domain.Event{Type: domain.EventHandoff, SessionID: session.id, Handoff: &h})
		return
	}
	session.publish(domain.Event{Type: domain.EventTimeUp, SessionID: session.id, Outcome: &out})
}

func answerResultLabel(out domain.Outcome) string {
	switch {
	case out.TimedOut:
		return "timeout"
	case out.IsCorrect:
		return "correct"
	default:
		return "incorrect"
	}
}

func hintResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, domain.ErrHintAlreadyUsed):
		return "already_used"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "error"
	}
}
