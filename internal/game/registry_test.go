package game

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(testRoomConfig(), &fakeStore{}, &fakePersister{}, zerolog.Nop())
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg := newTestRegistry()
	reg.SetBroadcaster(newFakeBroadcaster())

	room := reg.CreateRoom()
	t.Cleanup(room.Close)
	require.Len(t, room.Code(), codeLength)
	assert.Equal(t, 1, reg.Count())

	got, err := reg.Get(room.Code())
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = reg.Get("NOPE42")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistryUniqueCodes(t *testing.T) {
	reg := newTestRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		room := reg.CreateRoom()
		t.Cleanup(room.Close)
		assert.False(t, seen[room.Code()], "code %s reused", room.Code())
		seen[room.Code()] = true
	}
	assert.Equal(t, 20, reg.Count())
}

func TestRegistryRemovesClosedRooms(t *testing.T) {
	reg := newTestRegistry()

	room := reg.CreateRoom()
	require.Equal(t, 1, reg.Count())

	room.Close()
	assert.Equal(t, 0, reg.Count())

	_, err := reg.Get(room.Code())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistryRemovesRoomWhenLastParticipantLeaves(t *testing.T) {
	reg := newTestRegistry()

	room := reg.CreateRoom()
	_, err := room.Join("alice", "conn-1")
	require.NoError(t, err)

	_, torndown := room.Leave("conn-1")
	assert.True(t, torndown)
	assert.Equal(t, 0, reg.Count())
}

func TestRandomCodeAlphabet(t *testing.T) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	for i := 0; i < 50; i++ {
		code := randomCode(codeLength)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.Contains(t, alphabet, string(r), "code %s", code)
		}
	}
}
