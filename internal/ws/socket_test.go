package ws

import (
	"net"
	"net/http"
	"net/url"
	"sync"
	"testing"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptparty/server/internal/game"
)

type fakeConn struct {
	id  string
	ctx any

	mu     sync.Mutex
	events []string
}

var _ socketio.Conn = (*fakeConn)(nil)

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) URL() url.URL              { return url.URL{} }
func (c *fakeConn) LocalAddr() net.Addr       { return nil }
func (c *fakeConn) RemoteAddr() net.Addr      { return nil }
func (c *fakeConn) RemoteHeader() http.Header { return nil }
func (c *fakeConn) Context() any              { return c.ctx }
func (c *fakeConn) SetContext(v any)          { c.ctx = v }
func (c *fakeConn) Namespace() string         { return "/" }
func (c *fakeConn) Join(string)               {}
func (c *fakeConn) Leave(string)              {}
func (c *fakeConn) LeaveAll()                 {}
func (c *fakeConn) Rooms() []string           { return nil }

func (c *fakeConn) Emit(event string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *fakeConn) received(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e == event {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T) (*Server, *game.Registry) {
	t.Helper()
	registry := game.NewRegistry(game.RoomConfig{}, nil, nil, zerolog.Nop())
	srv := New(registry)
	registry.SetBroadcaster(srv)
	return srv, registry
}

func TestCreateDeliversSnapshotToCreator(t *testing.T) {
	srv, registry := newTestServer(t)

	creator := &fakeConn{id: "sid-1"}
	ack := srv.handleCreate(creator, createPayload{Name: "alice"})
	code, _ := ack["code"].(string)
	require.NotEmpty(t, code)

	room, err := registry.Get(code)
	require.NoError(t, err)
	t.Cleanup(room.Close)

	assert.GreaterOrEqual(t, creator.received("game:state"), 1,
		"the creator's own join is broadcast back to it")

	ctx, ok := creator.ctx.(*ConnCtx)
	require.True(t, ok)
	assert.Equal(t, code, ctx.Code)
	assert.Equal(t, "alice", ctx.Name)
}

func TestJoinDeliversSnapshotToJoiner(t *testing.T) {
	srv, registry := newTestServer(t)

	creator := &fakeConn{id: "sid-1"}
	ack := srv.handleCreate(creator, createPayload{Name: "alice"})
	code := ack["code"].(string)
	room, err := registry.Get(code)
	require.NoError(t, err)
	t.Cleanup(room.Close)

	joiner := &fakeConn{id: "sid-2"}
	ack = srv.handleJoin(joiner, joinPayload{Code: code, Name: "bobby"})
	assert.Nil(t, ack["error"])
	assert.GreaterOrEqual(t, joiner.received("game:state"), 1,
		"the joiner sees the snapshot produced by its own join")
}

func TestFailedJoinLeavesNoMembership(t *testing.T) {
	srv, registry := newTestServer(t)

	creator := &fakeConn{id: "sid-1"}
	ack := srv.handleCreate(creator, createPayload{Name: "alice"})
	code := ack["code"].(string)
	room, err := registry.Get(code)
	require.NoError(t, err)
	t.Cleanup(room.Close)

	dup := &fakeConn{id: "sid-2"}
	ack = srv.handleJoin(dup, joinPayload{Code: code, Name: "alice"})
	assert.NotNil(t, ack["error"])
	assert.Equal(t, 1, dup.received("error"))

	// the rejected connection receives no further room traffic
	before := dup.received("game:state")
	joiner := &fakeConn{id: "sid-3"}
	srv.handleJoin(joiner, joinPayload{Code: code, Name: "carol"})
	assert.Equal(t, before, dup.received("game:state"))
	assert.GreaterOrEqual(t, creator.received("game:state"), 2)
}

func TestJoinUnknownRoom(t *testing.T) {
	srv, _ := newTestServer(t)

	c := &fakeConn{id: "sid-1"}
	ack := srv.handleJoin(c, joinPayload{Code: "nope42", Name: "alice"})
	assert.Equal(t, "unknown_room", ack["kind"])
}
