package domain

import (
	"fmt"
	"time"
)

// HintCost is the price, in coins, of revealing the correct answer.
const HintCost = 100

// Mode selects how a session orders and exhausts its questions.
type Mode string

const (
	ModeSolo       Mode = "solo"
	ModeTeam       Mode = "team"
	ModeSimulation Mode = "simulation"
)

// Wraps reports whether the session replays from the first question after the last one.
func (m Mode) Wraps() bool {
	return m == ModeSolo
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSolo, ModeTeam, ModeSimulation:
		return true
	}
	return false
}

// Answer is one choice of a question, in presentation order.
type Answer struct {
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
}

// Question is a sign to recognise. Media points at the animation or video
// showing the sign; the session never looks inside it.
type Question struct {
	ID         string   `json:"id" yaml:"id"`
	Prompt     string   `json:"prompt,omitempty" yaml:"prompt"`
	Media      string   `json:"media" yaml:"media"`
	Answers    []Answer `json:"answers" yaml:"answers"`
	CoinReward int      `json:"coinReward" yaml:"coinReward"`
	Difficulty string   `json:"difficulty,omitempty" yaml:"difficulty"`
}

// Validate checks that the question has exactly one correct answer and a non-negative reward.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if len(q.Answers) == 0 {
		return fmt.Errorf("%w: %s has no answers", ErrInvalidQuestion, q.ID)
	}
	correct := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("%w: %s has %d correct answers", ErrInvalidQuestion, q.ID, correct)
	}
	if q.CoinReward < 0 {
		return fmt.Errorf("%w: %s has negative reward", ErrInvalidQuestion, q.ID)
	}
	return nil
}

// CorrectIndex returns the index of the correct answer, or -1.
func (q Question) CorrectIndex() int {
	for i, a := range q.Answers {
		if a.IsCorrect {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers cannot mutate a question held by a session.
func (q Question) Clone() Question {
	answers := make([]Answer, len(q.Answers))
	copy(answers, q.Answers)
	q.Answers = answers
	return q
}

// Outcome is the terminal result of one question.
type Outcome struct {
	QuestionID    string `json:"questionId"`
	IsCorrect     bool   `json:"isCorrect"`
	HintUsed      bool   `json:"hintUsed"`
	TimedOut      bool   `json:"timedOut"`
	SelectedIndex *int   `json:"selectedIndex,omitempty"`
	CoinReward    int    `json:"coinReward"`
}

// HintResult tells the client which answer to highlight.
type HintResult struct {
	QuestionID   string `json:"questionId"`
	CorrectIndex int    `json:"correctIndex"`
	Balance      int    `json:"balance"`
}

// AnswerResult is an Outcome plus its effect on the coin economy.
type AnswerResult struct {
	Outcome
	Awarded  int  `json:"awarded"`
	Balance  int  `json:"balance"`
	Pending  bool `json:"pending,omitempty"` // credit queued for retry
	Repeated bool `json:"repeated,omitempty"`
}

// Handoff sends a team game back to player selection.
type Handoff struct {
	QuestionID string        `json:"questionId"`
	Players    []string      `json:"players"`
	TimeLimit  time.Duration `json:"timeLimit"`
}

// ScoreEntry is one player's standing in a team game.
type ScoreEntry struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
}

// Scoreboard is the ordered standing of a team game.
type Scoreboard struct {
	SessionID string       `json:"sessionId"`
	Entries   []ScoreEntry `json:"entries"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// EventType names asynchronous session notifications.
type EventType string

const (
	EventTimeUp       EventType = "timeUp"
	EventHandoff      EventType = "handoff"
	EventSessionEnded EventType = "sessionEnded"
)

// Event is pushed to session subscribers outside the request/response flow.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	Handoff   *Handoff  `json:"handoff,omitempty"`
}
