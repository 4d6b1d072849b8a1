package quiz

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"signquiz-service/internal/domain"
)

// Randomizer is the spinner that picks the next player.
type Randomizer interface {
	Intn(n int) int
}

// TurnCoordinator runs a team game on top of a Session: one player answers
// per turn and a facilitator judges the answer. Between turns the session is
// paused so the countdown only runs while someone is playing.
type TurnCoordinator struct {
	session *Session
	now     func() time.Time

	mu       sync.Mutex
	players  []string
	current  string
	scores   map[string]int
	scoredAt map[string]time.Time
}

// NewTurnCoordinator wraps a team-mode session.
func NewTurnCoordinator(session *Session, players []string) (*TurnCoordinator, error) {
	if session.Mode() != domain.ModeTeam {
		return nil, domain.ErrNotTeamMode
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: team needs at least one player", domain.ErrUnknownPlayer)
	}
	roster := make([]string, len(players))
	copy(roster, players)

	scores := make(map[string]int, len(roster))
	for _, p := range roster {
		scores[p] = 0
	}
	session.SetPaused(true)
	return &TurnCoordinator{
		session:  session,
		now:      time.Now,
		players:  roster,
		scores:   scores,
		scoredAt: make(map[string]time.Time),
	}, nil
}

// Session exposes the wrapped session.
func (c *TurnCoordinator) Session() *Session { return c.session }

// Players returns the team roster.
func (c *TurnCoordinator) Players() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.players))
	copy(out, c.players)
	return out
}

// Current returns the player whose turn it is, or "" between turns.
func (c *TurnCoordinator) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SelectPlayer spins for the next player and starts their turn. A question
// that is already resolved must be left with Next before anyone else plays it.
func (c *TurnCoordinator) SelectPlayer(r Randomizer) (string, error) {
	if c.resolved() {
		return "", domain.ErrAlreadyAnswered
	}
	c.mu.Lock()
	player := c.players[r.Intn(len(c.players))]
	c.current = player
	c.mu.Unlock()

	c.session.SetPaused(false)
	return player, nil
}

// ChoosePlayer starts the turn of a player picked elsewhere (a client-side spinner).
func (c *TurnCoordinator) ChoosePlayer(player string) error {
	if c.resolved() {
		return domain.ErrAlreadyAnswered
	}
	c.mu.Lock()
	if _, ok := c.scores[player]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, player)
	}
	c.current = player
	c.mu.Unlock()

	c.session.SetPaused(false)
	return nil
}

func (c *TurnCoordinator) resolved() bool {
	st := c.session.State()
	return st.Answered || st.Ended
}

// Timeout ends the turn without feedback and sends the game back to player selection.
func (c *TurnCoordinator) Timeout() (domain.Handoff, error) {
	out, err := c.session.Timeout()
	if err != nil {
		return domain.Handoff{}, err
	}
	return c.HandOff(out), nil
}

// HandOff clears the current turn after the countdown resolved the question.
func (c *TurnCoordinator) HandOff(out domain.Outcome) domain.Handoff {
	c.mu.Lock()
	c.current = ""
	players := make([]string, len(c.players))
	copy(players, c.players)
	c.mu.Unlock()

	c.session.SetPaused(true)
	return domain.Handoff{
		QuestionID: out.QuestionID,
		Players:    players,
		TimeLimit:  c.session.TimeLimit(),
	}
}

// Judge records the facilitator's verdict for the current player.
func (c *TurnCoordinator) Judge(correct bool) (domain.Outcome, string, error) {
	c.mu.Lock()
	player := c.current
	c.mu.Unlock()
	if player == "" {
		return domain.Outcome{}, "", domain.ErrNoPlayerSelected
	}

	out, err := c.session.judge(correct)
	if err != nil {
		return out, player, err
	}

	c.mu.Lock()
	if correct {
		c.scores[player]++
		c.scoredAt[player] = c.now()
	}
	c.current = ""
	c.mu.Unlock()

	c.session.SetPaused(true)
	return out, player, nil
}

// Next advances to the next question; the new turn starts with SelectPlayer.
func (c *TurnCoordinator) Next() (domain.Question, bool) {
	c.mu.Lock()
	c.current = ""
	c.mu.Unlock()
	c.session.SetPaused(true)
	return c.session.NextQuestion()
}

// Scoreboard orders players by score, then by who got there first, then by name.
func (c *TurnCoordinator) Scoreboard() []domain.ScoreEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]domain.ScoreEntry, 0, len(c.players))
	for _, p := range c.players {
		entries = append(entries, domain.ScoreEntry{Player: p, Score: c.scores[p]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ti, iok := c.scoredAt[entries[i].Player]
		tj, jok := c.scoredAt[entries[j].Player]
		if iok && jok && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].Player < entries[j].Player
	})
	return entries
}
