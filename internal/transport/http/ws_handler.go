package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"signquiz-service/internal/app"
	"signquiz-service/internal/auth"
	"signquiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index *int `json:"index" validate:"required"`
}

type pausePayload struct {
	Paused *bool `json:"paused" validate:"required"`
}

type judgePayload struct {
	Correct *bool `json:"correct" validate:"required"`
}

type selectPlayerPayload struct {
	Player string `json:"player"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Required  int    `json:"required,omitempty"`
	Available int    `json:"available,omitempty"`
}

// questionView is what a client may see of a question. Solo and simulation
// players get the answer texts only; team play shows the sign and its
// meaning to the facilitator, who judges the spoken answer.
type questionView struct {
	Index         int      `json:"index"`
	Total         int      `json:"total"`
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt,omitempty"`
	Media         string   `json:"media"`
	Answers       []string `json:"answers,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	CoinReward    int      `json:"coinReward"`
	HintUsed      bool     `json:"hintUsed"`
	Paused        bool     `json:"paused"`
	RemainingMs   int64    `json:"remainingMs"`
	Players       []string `json:"players,omitempty"`
	CurrentPlayer string   `json:"currentPlayer,omitempty"`
}

type startedPayload struct {
	SessionID string      `json:"sessionId"`
	Mode      domain.Mode `json:"mode"`
	Players   []string    `json:"players,omitempty"`
}

type judgedPayload struct {
	domain.AnswerResult
	Player string `json:"player"`
}

type sessionEndedPayload struct {
	SessionID  string `json:"sessionId"`
	Challenges int    `json:"challenges"`
}

type playerSelectedPayload struct {
	Player string `json:"player"`
}

type pausedPayload struct {
	Paused      bool  `json:"paused"`
	RemainingMs int64 `json:"remainingMs"`
}

type coinsPayload struct {
	Balance int `json:"balance"`
}

// wsClient serialises writes through a single writer goroutine.
type wsClient struct {
	out        chan outboundMessage
	writerDone chan struct{}
}

func (c *wsClient) send(msgType string, payload any) {
	select {
	case c.out <- outboundMessage{Type: msgType, Payload: payload}:
	case <-c.writerDone:
	}
}

func (c *wsClient) fail(err error) {
	c.send("error", errorFor(err))
}

// ServeWS upgrades HTTP requests to websockets, starts a session for the
// authenticated player and drives it from inbound messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	req, err := startRequestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// the request context ends with the handler, which outlives the session
	ctx := context.WithoutCancel(r.Context())

	snap, err := h.service.StartSession(ctx, userID, req)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorFor(err)})
		return
	}
	sessionID := snap.SessionID
	defer func() {
		if err := h.service.End(ctx, sessionID, userID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Warn("end session failed", "session", sessionID, "error", err)
		}
	}()

	events, cancel, err := h.service.Subscribe(ctx, sessionID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorFor(err)})
		return
	}
	defer cancel()

	client := &wsClient{
		out:        make(chan outboundMessage, 16),
		writerDone: make(chan struct{}),
	}
	closeSignals := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(client.writerDone)
		for msg := range client.out {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "session", sessionID, "error", err)
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				h.forward(client, ev)
			case <-closeSignals:
				return
			}
		}
	}()

	client.send("started", startedPayload{SessionID: sessionID, Mode: req.Mode, Players: snap.Players})
	client.send("question", viewOf(snap))

	h.readLoop(ctx, conn, client, sessionID, userID)

	close(closeSignals)
	<-eventsDone
	close(client.out)
	<-client.writerDone
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, c *wsClient, sessionID, userID string) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var p answerPayload
			if err := h.decode(inbound.Payload, &p); err != nil {
				c.fail(err)
				continue
			}
			res, err := h.service.SubmitAnswer(ctx, sessionID, userID, *p.Index)
			h.replyResult(c, res, err)
		case "timeout":
			res, handoff, err := h.service.Timeout(ctx, sessionID, userID)
			if handoff != nil {
				c.send("handoff", handoff)
				continue
			}
			h.replyResult(c, res, err)
		case "judge":
			var p judgePayload
			if err := h.decode(inbound.Payload, &p); err != nil {
				c.fail(err)
				continue
			}
			res, player, err := h.service.Judge(ctx, sessionID, userID, *p.Correct)
			if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
				c.fail(err)
				continue
			}
			c.send("answerResult", judgedPayload{AnswerResult: res, Player: player})
		case "hint":
			res, err := h.service.UseHint(ctx, sessionID, userID)
			if err != nil {
				c.fail(err)
				continue
			}
			c.send("hintResult", res)
		case "next":
			snap, ended, err := h.service.NextQuestion(ctx, sessionID, userID)
			if err != nil {
				c.fail(err)
				continue
			}
			if ended {
				c.send("sessionEnded", sessionEndedPayload{SessionID: sessionID, Challenges: snap.Challenges})
				return
			}
			c.send("question", viewOf(snap))
		case "pause":
			var p pausePayload
			if err := h.decode(inbound.Payload, &p); err != nil {
				c.fail(err)
				continue
			}
			st, err := h.service.SetPaused(ctx, sessionID, userID, *p.Paused)
			if err != nil {
				c.fail(err)
				continue
			}
			c.send("paused", pausedPayload{Paused: st.Paused, RemainingMs: st.Remaining.Milliseconds()})
		case "selectPlayer":
			var p selectPlayerPayload
			if len(inbound.Payload) > 0 {
				if err := h.decode(inbound.Payload, &p); err != nil {
					c.fail(err)
					continue
				}
			}
			player, err := h.service.SelectPlayer(ctx, sessionID, userID, p.Player)
			if err != nil {
				c.fail(err)
				continue
			}
			c.send("playerSelected", playerSelectedPayload{Player: player})
		case "scoreboard":
			board, err := h.service.Scoreboard(ctx, sessionID, userID)
			if err != nil {
				c.fail(err)
				continue
			}
			c.send("scoreboard", board)
		case "end":
			snap, err := h.service.Snapshot(ctx, sessionID, userID)
			if err != nil {
				c.fail(err)
				return
			}
			if err := h.service.End(ctx, sessionID, userID); err != nil {
				c.fail(err)
				return
			}
			c.send("sessionEnded", sessionEndedPayload{SessionID: sessionID, Challenges: snap.Challenges})
			return
		default:
			c.send("error", errorPayload{Code: "unsupported", Message: "unsupported message type"})
		}
	}
}

func (h *WSHandler) replyResult(c *wsClient, res domain.AnswerResult, err error) {
	// a repeat submission carries the first outcome back with Repeated set
	if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
		c.fail(err)
		return
	}
	c.send("answerResult", res)
}

func (h *WSHandler) forward(c *wsClient, ev domain.Event) {
	switch ev.Type {
	case domain.EventTimeUp:
		c.send("timeUp", ev.Outcome)
	case domain.EventHandoff:
		c.send("handoff", ev.Handoff)
	}
}

func (h *WSHandler) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadPayload
	}
	if err := h.validate.Struct(dst); err != nil {
		return errBadPayload
	}
	return nil
}

// CoinsHandler reports the caller's coin balance.
func CoinsHandler(service *app.QuizService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		balance, err := service.Balance(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorFor(err))
			return
		}
		writeJSON(w, http.StatusOK, coinsPayload{Balance: balance})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errBadPayload = errors.New("invalid payload")

func startRequestFromQuery(r *http.Request) (app.StartRequest, error) {
	q := r.URL.Query()
	req := app.StartRequest{
		Mode:     domain.Mode(q.Get("mode")),
		Scenario: q.Get("scenario"),
	}
	if req.Mode == "" {
		req.Mode = domain.ModeSolo
	}
	if raw := q.Get("players"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				req.Players = append(req.Players, p)
			}
		}
	}
	if raw := q.Get("timeLimit"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return req, errors.New("invalid timeLimit")
		}
		req.TimeLimit = d
	}
	return req, nil
}

func viewOf(snap app.Snapshot) questionView {
	q := snap.Question
	view := questionView{
		Index:         snap.State.Index,
		Total:         snap.State.Total,
		ID:            q.ID,
		Prompt:        q.Prompt,
		Media:         q.Media,
		CoinReward:    q.CoinReward,
		HintUsed:      snap.State.HintUsed,
		Paused:        snap.State.Paused,
		RemainingMs:   snap.State.Remaining.Milliseconds(),
		Players:       snap.Players,
		CurrentPlayer: snap.CurrentPlayer,
	}
	if snap.State.Mode == domain.ModeTeam {
		if i := q.CorrectIndex(); i >= 0 {
			view.CorrectAnswer = q.Answers[i].Text
		}
		return view
	}
	view.Answers = make([]string, len(q.Answers))
	for i, a := range q.Answers {
		view.Answers[i] = a.Text
	}
	return view
}

func errorFor(err error) errorPayload {
	p := errorPayload{Code: errorCode(err), Message: err.Error()}
	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		p.Required = funds.Required
		p.Available = funds.Available
	}
	return p
}

func errorCode(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadPayload), errors.As(err, &verrs):
		return "bad_request"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrScenarioNotFound):
		return "scenario_not_found"
	case errors.Is(err, domain.ErrEmptyQuestionSet):
		return "empty_question_set"
	case errors.Is(err, domain.ErrInvalidAnswerIndex):
		return "invalid_answer_index"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, domain.ErrHintAlreadyUsed):
		return "hint_already_used"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrNotTeamMode):
		return "not_team_mode"
	case errors.Is(err, domain.ErrJudgeRequired):
		return "judge_required"
	case errors.Is(err, domain.ErrNoPlayerSelected):
		return "no_player_selected"
	case errors.Is(err, domain.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
