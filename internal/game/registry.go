package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const codeLength = 6

// Registry maps short human-readable codes to rooms. It is the only state
// shared across rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg     RoomConfig
	store   PromptStore
	persist Persister
	bc      Broadcaster
	log     zerolog.Logger
}

func NewRegistry(cfg RoomConfig, store PromptStore, persist Persister, log zerolog.Logger) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		cfg:     cfg,
		store:   store,
		persist: persist,
		log:     log,
	}
}

// SetBroadcaster wires the transport in after construction; the socket
// server needs the registry and the registry needs the socket server.
func (reg *Registry) SetBroadcaster(bc Broadcaster) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.bc = bc
}

// CreateRoom mints a room under a fresh unique code.
func (reg *Registry) CreateRoom() *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := randomCode(codeLength)
	for reg.rooms[code] != nil {
		code = randomCode(codeLength)
	}
	room := NewRoom(code, reg.cfg, reg.store, reg.persist, reg.bc, reg.log, reg.remove)
	reg.rooms[code] = room
	reg.log.Info().Str("code", code).Msg("room created")
	return room
}

func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room := reg.rooms[code]
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) remove(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; ok {
		delete(reg.rooms, code)
		reg.log.Info().Str("code", code).Msg("room removed")
	}
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
