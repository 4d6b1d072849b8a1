package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or belongs to someone else.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrScenarioNotFound indicates an unknown simulation scenario.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrEmptyQuestionSet is returned when a session would start without questions.
	ErrEmptyQuestionSet = errors.New("question set is empty")
	// ErrInvalidQuestion marks malformed question content.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidAnswerIndex indicates a submitted index outside the answer list.
	ErrInvalidAnswerIndex = errors.New("answer index out of range")
	// ErrAlreadyAnswered is returned by repeat submissions; the first outcome stands.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrHintAlreadyUsed is returned when a hint was already bought for the current question.
	ErrHintAlreadyUsed = errors.New("hint already used")
	// ErrInsufficientFunds is matched by every InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient coins")
	// ErrInvalidAmount rejects negative ledger amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
	// ErrNotTeamMode is returned for team operations on a solo or simulation session.
	ErrNotTeamMode = errors.New("session is not in team mode")
	// ErrJudgeRequired is returned for index answers in team mode, where a facilitator judges turns.
	ErrJudgeRequired = errors.New("team turns are judged, not answered")
	// ErrNoPlayerSelected is returned when a turn is judged before a player was chosen.
	ErrNoPlayerSelected = errors.New("no player selected")
	// ErrUnknownPlayer indicates a chosen player outside the team.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrUnauthorized is returned when a bearer credential cannot be resolved.
	ErrUnauthorized = errors.New("unauthorized")
)

// InsufficientFundsError carries the amounts behind a refused debit.
type InsufficientFundsError struct {
	Required  int
	Available int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient coins: need %d, have %d", e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
