package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signquiz-service/internal/domain"
)

type fixedSpinner int

func (f fixedSpinner) Intn(n int) int { return int(f) % n }

func newTeam(t *testing.T, clock Clock, onTimeUp func(domain.Outcome)) *TurnCoordinator {
	t.Helper()
	s, err := NewSession(domain.ModeTeam, sampleQuestions(), Options{
		TimeLimit:   20 * time.Second,
		Clock:       clock,
		OnTimeUp:    onTimeUp,
		StartPaused: true,
	})
	require.NoError(t, err)
	team, err := NewTurnCoordinator(s, []string{"ana", "ben", "cleo"})
	require.NoError(t, err)
	return team
}

func TestTurnCoordinatorRequiresTeamMode(t *testing.T) {
	s := newSession(t, domain.ModeSolo)
	_, err := NewTurnCoordinator(s, []string{"ana"})
	assert.ErrorIs(t, err, domain.ErrNotTeamMode)

	team := newSession(t, domain.ModeTeam)
	_, err = NewTurnCoordinator(team, nil)
	assert.Error(t, err)
}

func TestCountdownWaitsForPlayer(t *testing.T) {
	clock := newFakeClock()
	fired := false
	team := newTeam(t, clock, func(domain.Outcome) { fired = true })

	clock.Advance(time.Minute)
	assert.False(t, fired)

	player, err := team.SelectPlayer(fixedSpinner(1))
	require.NoError(t, err)
	assert.Equal(t, "ben", player)
	assert.Equal(t, "ben", team.Current())
	clock.Advance(20 * time.Second)
	assert.True(t, fired)
}

func TestTimeoutHandsOffToPlayerSelection(t *testing.T) {
	team := newTeam(t, newFakeClock(), nil)
	_, err := team.SelectPlayer(fixedSpinner(0))
	require.NoError(t, err)

	h, err := team.Timeout()
	require.NoError(t, err)
	assert.Equal(t, "hello", h.QuestionID)
	assert.Equal(t, []string{"ana", "ben", "cleo"}, h.Players)
	assert.Equal(t, 20*time.Second, h.TimeLimit)
	assert.Equal(t, "", team.Current())
	assert.True(t, team.Session().State().Paused)

	_, err = team.Timeout()
	assert.ErrorIs(t, err, domain.ErrAlreadyAnswered)
}

func TestJudgeScoresCurrentPlayer(t *testing.T) {
	team := newTeam(t, newFakeClock(), nil)

	_, _, err := team.Judge(true)
	assert.ErrorIs(t, err, domain.ErrNoPlayerSelected)

	require.NoError(t, team.ChoosePlayer("cleo"))
	out, player, err := team.Judge(true)
	require.NoError(t, err)
	assert.Equal(t, "cleo", player)
	assert.True(t, out.IsCorrect)
	assert.Nil(t, out.SelectedIndex)

	_, ended := team.Next()
	require.False(t, ended)
	require.NoError(t, team.ChoosePlayer("ana"))
	out, _, err = team.Judge(false)
	require.NoError(t, err)
	assert.False(t, out.IsCorrect)

	board := team.Scoreboard()
	require.Len(t, board, 3)
	assert.Equal(t, domain.ScoreEntry{Player: "cleo", Score: 1}, board[0])
	assert.Equal(t, "ana", board[1].Player)
	assert.Equal(t, "ben", board[2].Player)
}

func TestChoosePlayerRejectsStrangers(t *testing.T) {
	team := newTeam(t, newFakeClock(), nil)
	err := team.ChoosePlayer("dora")
	assert.ErrorIs(t, err, domain.ErrUnknownPlayer)
	assert.Equal(t, "", team.Current())
}

func TestSelectionWaitsForNextQuestionAfterHandoff(t *testing.T) {
	clock := newFakeClock()
	team := newTeam(t, clock, nil)
	require.NoError(t, team.ChoosePlayer("ana"))
	_, err := team.Timeout()
	require.NoError(t, err)

	assert.ErrorIs(t, team.ChoosePlayer("ben"), domain.ErrAlreadyAnswered)
	_, err = team.SelectPlayer(fixedSpinner(1))
	assert.ErrorIs(t, err, domain.ErrAlreadyAnswered)
	assert.Equal(t, "", team.Current())
	assert.True(t, team.Session().State().Paused)

	q, ended := team.Next()
	require.False(t, ended)
	assert.Equal(t, "thanks", q.ID)
	require.NoError(t, team.ChoosePlayer("ben"))
	assert.Equal(t, 20*time.Second, team.Session().State().Remaining)
	out, player, err := team.Judge(true)
	require.NoError(t, err)
	assert.Equal(t, "ben", player)
	assert.True(t, out.IsCorrect)
}

func TestTeamSessionEndsAfterLastQuestion(t *testing.T) {
	team := newTeam(t, newFakeClock(), nil)
	team.Next()
	team.Next()
	_, ended := team.Next()
	assert.True(t, ended)
}
