package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/promptparty/server/internal/game"
)

// ConnCtx is the per-connection identity set once the connection has
// created or joined a room.
type ConnCtx struct {
	Code          string
	ParticipantID string
	Name          string
}

// Server is the socket.io surface of the game. It also implements
// game.Broadcaster, delivering room output back to connected clients.
type Server struct {
	registry *game.Registry
	suggest  game.PromptStore

	mu      sync.RWMutex
	members map[string]map[string]socketio.Conn // room code -> socket id -> conn
}

func New(registry *game.Registry) *Server {
	return &Server{registry: registry, members: make(map[string]map[string]socketio.Conn)}
}

// SetSuggester wires the prompt suggestion service used by game:suggest.
func (srv *Server) SetSuggester(s game.PromptStore) { srv.suggest = s }

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "game:create", srv.handleCreate)
	io.OnEvent("/", "game:join", srv.handleJoin)

	// game:prompt
	io.OnEvent("/", "game:prompt", func(s socketio.Conn, payload struct {
		Text string `json:"text"`
	}) map[string]any {
		room, err := srv.roomOf(s)
		if err != nil {
			return srv.err(s, err)
		}
		if err := room.SubmitPrompt(s.ID(), payload.Text); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	// game:answers
	io.OnEvent("/", "game:answers", func(s socketio.Conn, payload struct {
		Answers []string `json:"answers"`
	}) map[string]any {
		room, err := srv.roomOf(s)
		if err != nil {
			return srv.err(s, err)
		}
		if err := room.SubmitAnswers(s.ID(), payload.Answers); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	// game:vote
	io.OnEvent("/", "game:vote", func(s socketio.Conn, payload struct {
		AnswerID string `json:"answerId"`
	}) map[string]any {
		room, err := srv.roomOf(s)
		if err != nil {
			return srv.err(s, err)
		}
		if err := room.SubmitVote(s.ID(), payload.AnswerID); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	// game:advance (admin only)
	io.OnEvent("/", "game:advance", func(s socketio.Conn) map[string]any {
		room, err := srv.roomOf(s)
		if err != nil {
			return srv.err(s, err)
		}
		if err := room.RequestAdvance(s.ID()); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	// game:suggest fetches a generated prompt for the client to edit and
	// submit. Best-effort passthrough to the suggestion service.
	io.OnEvent("/", "game:suggest", func(s socketio.Conn, payload struct {
		Topic string `json:"topic"`
	}) map[string]any {
		if srv.suggest == nil {
			return srv.err(s, game.ErrCannotGenerate)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		text, err := srv.suggest.SuggestPrompt(ctx, payload.Topic)
		if err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"suggestion": text}
	})

	// chat relays within the room
	io.OnEvent("/", "chat", func(s socketio.Conn, payload struct {
		Message string `json:"message"`
	}) map[string]any {
		ctx, _ := s.Context().(*ConnCtx)
		if ctx == nil || ctx.Code == "" {
			return srv.err(s, game.ErrNotParticipant)
		}
		if payload.Message == "" {
			return map[string]any{"ok": false}
		}
		io.BroadcastToRoom("/", ctx.Code, "chat", map[string]any{"name": ctx.Name, "message": payload.Message})
		return map[string]any{"ok": true}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})

	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok && ctx.Code != "" {
			srv.removeMember(ctx.Code, s)
			if room, err := srv.registry.Get(ctx.Code); err == nil {
				room.Leave(s.ID())
			}
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

type createPayload struct {
	Name string `json:"name"`
}

type joinPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// handleCreate mints a room and joins the creator. The connection is
// registered before joining so the join's own state broadcast reaches it.
func (srv *Server) handleCreate(s socketio.Conn, payload createPayload) map[string]any {
	room := srv.registry.CreateRoom()
	srv.addMember(room.Code(), s)
	p, err := room.Join(payload.Name, s.ID())
	if err != nil {
		srv.removeMember(room.Code(), s)
		room.Close()
		return srv.err(s, err)
	}
	s.SetContext(&ConnCtx{Code: room.Code(), ParticipantID: p.ID, Name: p.Name})
	s.Join(room.Code())
	log.Info().Str("sid", s.ID()).Str("code", room.Code()).Msg("game:create")
	return map[string]any{"code": room.Code(), "participantId": p.ID, "role": string(p.Role)}
}

func (srv *Server) handleJoin(s socketio.Conn, payload joinPayload) map[string]any {
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	room, err := srv.registry.Get(code)
	if err != nil {
		return srv.err(s, err)
	}
	srv.addMember(code, s)
	p, err := room.Join(payload.Name, s.ID())
	if err != nil {
		srv.removeMember(code, s)
		return srv.err(s, err)
	}
	s.SetContext(&ConnCtx{Code: code, ParticipantID: p.ID, Name: p.Name})
	s.Join(code)
	log.Info().Str("sid", s.ID()).Str("code", code).Str("name", p.Name).Str("role", string(p.Role)).Msg("game:join")
	return map[string]any{"code": code, "participantId": p.ID, "role": string(p.Role)}
}

// --- game.Broadcaster ---

func (srv *Server) BroadcastState(code string, snap *game.Snapshot) {
	for _, c := range srv.conns(code) {
		c.Emit("game:state", snap)
	}
}

func (srv *Server) SendPrompts(code, participantID string, prompts []game.PromptView) {
	for _, c := range srv.conns(code) {
		if ctx, ok := c.Context().(*ConnCtx); ok && ctx.ParticipantID == participantID {
			c.Emit("game:prompts", map[string]any{"assignedPrompts": prompts})
			return
		}
	}
}

func (srv *Server) BroadcastEvent(code, event string, payload any) {
	for _, c := range srv.conns(code) {
		c.Emit(event, payload)
	}
}

// --- membership ---

func (srv *Server) addMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][c.ID()] = c
}

func (srv *Server) removeMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, c.ID())
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

func (srv *Server) conns(code string) []socketio.Conn {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	out := make([]socketio.Conn, 0, len(srv.members[code]))
	for _, c := range srv.members[code] {
		out = append(out, c)
	}
	return out
}

func (srv *Server) roomOf(s socketio.Conn) (*game.Room, error) {
	ctx, _ := s.Context().(*ConnCtx)
	if ctx == nil || ctx.Code == "" {
		return nil, game.ErrNotParticipant
	}
	return srv.registry.Get(ctx.Code)
}

// err emits a typed error event to the offending client only and returns
// the ack payload.
func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	kind := errKind(err)
	s.Emit("error", map[string]any{"kind": kind, "message": err.Error()})
	return map[string]any{"error": err.Error(), "kind": kind}
}

func errKind(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return "unknown_room"
	case errors.Is(err, game.ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, game.ErrNameLength):
		return "invalid_name"
	case errors.Is(err, game.ErrInvalidPhase):
		return "wrong_phase"
	case errors.Is(err, game.ErrNotAdmin):
		return "not_admin"
	case errors.Is(err, game.ErrNotAssigned):
		return "not_assigned"
	case errors.Is(err, game.ErrAlreadySubmitted), errors.Is(err, game.ErrAlreadyAnswered):
		return "already_submitted"
	case errors.Is(err, game.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, game.ErrSelfVote):
		return "self_vote"
	case errors.Is(err, game.ErrUnknownAnswer):
		return "unknown_answer"
	case errors.Is(err, game.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, game.ErrCannotGenerate):
		return "cannot_generate"
	default:
		return "bad_request"
	}
}
