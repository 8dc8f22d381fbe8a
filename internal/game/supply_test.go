package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a scriptable PromptStore. Safe for concurrent use since
// rooms persist prompts from background goroutines.
type fakeStore struct {
	mu         sync.Mutex
	stored     []StoredPrompt
	storedErr  error
	suggestion string
	suggestErr error

	created     []string
	suggestCnt  int
	suggestMax  int // 0 means unlimited
	getRequests [][]string
}

func (f *fakeStore) CreatePrompt(_ context.Context, _, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, text)
	return fmt.Sprintf("id-%d", len(f.created)), nil
}

func (f *fakeStore) GetPrompts(_ context.Context, authors []string, _ string) ([]StoredPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRequests = append(f.getRequests, authors)
	return f.stored, f.storedErr
}

func (f *fakeStore) SuggestPrompt(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suggestErr != nil {
		return "", f.suggestErr
	}
	if f.suggestMax > 0 && f.suggestCnt >= f.suggestMax {
		return "", ErrCannotGenerate
	}
	f.suggestCnt++
	return fmt.Sprintf("%s #%d", f.suggestion, f.suggestCnt), nil
}

func (f *fakeStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func newTestSupply(store PromptStore) *Supply {
	return NewSupply(store, "en", "test topic", rand.New(rand.NewSource(1)), zerolog.Nop())
}

func TestTargetCount(t *testing.T) {
	assert.Equal(t, 2, TargetCount(4), "even: half the players")
	assert.Equal(t, 4, TargetCount(8))
	assert.Equal(t, 3, TargetCount(3), "odd: one per player")
	assert.Equal(t, 5, TargetCount(5))
	assert.Equal(t, 0, TargetCount(0))
}

func TestEnsureEnoughPrefersSubmitted(t *testing.T) {
	store := &fakeStore{suggestion: "generated"}
	s := newTestSupply(store)

	submitted := []*Prompt{
		{ID: "s1", AuthorID: "alice", Text: "one"},
		{ID: "s2", AuthorID: "bob", Text: "two"},
	}
	pool := s.EnsureEnough(context.Background(), submitted, []string{"alice", "bob", "carol", "dave"}, 4)

	require.Len(t, pool, 2, "4 players need 2 prompts")
	assert.Equal(t, "s1", pool[0].ID)
	assert.Equal(t, "s2", pool[1].ID)
	assert.Zero(t, store.suggestCnt, "no generation when submissions suffice")
}

func TestEnsureEnoughFillsFromStoreThenGenerator(t *testing.T) {
	store := &fakeStore{
		stored:     []StoredPrompt{{Author: "erica", Text: "stored one"}, {Author: "", Text: "stored two"}},
		suggestion: "generated",
	}
	s := newTestSupply(store)

	submitted := []*Prompt{{ID: "s1", AuthorID: "alice", Text: "one"}}
	pool := s.EnsureEnough(context.Background(), submitted, []string{"alice", "bob", "carol", "dave", "erica"}, 5)

	require.Len(t, pool, 5, "5 players need 5 prompts")
	assert.Equal(t, "s1", pool[0].ID)
	assert.Equal(t, "erica", pool[1].AuthorID, "stored prompt keeps its author")
	assert.Equal(t, GeneratedAuthor, pool[2].AuthorID, "missing author falls back to generated")
	assert.Equal(t, GeneratedAuthor, pool[3].AuthorID)
	assert.Equal(t, GeneratedAuthor, pool[4].AuthorID)
	assert.Equal(t, 2, store.suggestCnt)
	require.Len(t, store.getRequests, 1)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave", "erica"}, store.getRequests[0])
}

func TestEnsureEnoughStopsShortWhenGeneratorGivesUp(t *testing.T) {
	store := &fakeStore{suggestion: "generated", suggestMax: 1}
	s := newTestSupply(store)

	pool := s.EnsureEnough(context.Background(), nil, []string{"alice", "bob", "carol"}, 3)
	assert.Len(t, pool, 1, "one generated prompt, then the service gave up")
}

func TestEnsureEnoughSurvivesStoreErrors(t *testing.T) {
	store := &fakeStore{
		storedErr:  errors.New("backend down"),
		suggestErr: errors.New("backend down"),
	}
	s := newTestSupply(store)

	submitted := []*Prompt{{ID: "s1", AuthorID: "alice", Text: "one"}}
	pool := s.EnsureEnough(context.Background(), submitted, []string{"alice", "bob", "carol"}, 3)
	assert.Len(t, pool, 1, "keeps local prompts when the backend is unreachable")
}

func TestEnsureEnoughTruncatesExcess(t *testing.T) {
	s := newTestSupply(&fakeStore{})
	submitted := []*Prompt{
		{ID: "s1"}, {ID: "s2"}, {ID: "s3"},
	}
	pool := s.EnsureEnough(context.Background(), submitted, []string{"alice", "bob", "carol", "dave"}, 4)
	assert.Len(t, pool, 2)
}

func newTestPlayers(n int) []*Participant {
	out := make([]*Participant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Participant{
			ID:       fmt.Sprintf("player-%d", i),
			Name:     fmt.Sprintf("player%d", i),
			Role:     RolePlayer,
			Answered: make(map[string]bool),
			Voted:    make(map[string]bool),
		})
	}
	return out
}

func TestAssignEvenPlayerCount(t *testing.T) {
	s := newTestSupply(nil)
	players := newTestPlayers(4)
	prompts := []*Prompt{{ID: "p1", Text: "one"}, {ID: "p2", Text: "two"}}

	s.Assign(prompts, players)

	for _, pr := range prompts {
		require.Len(t, pr.Assignees, 2)
		assert.NotEqual(t, pr.Assignees[0], pr.Assignees[1], "answerers must be distinct")
	}
	// every player answers exactly one prompt
	for _, p := range players {
		assert.Len(t, p.AssignedPrompts, 1, "player %s", p.ID)
	}
}

func TestAssignOddPlayerCount(t *testing.T) {
	s := newTestSupply(nil)
	players := newTestPlayers(5)
	prompts := make([]*Prompt, 5)
	for i := range prompts {
		prompts[i] = &Prompt{ID: fmt.Sprintf("p%d", i)}
	}

	s.Assign(prompts, players)

	for _, pr := range prompts {
		require.Len(t, pr.Assignees, 2)
		assert.NotEqual(t, pr.Assignees[0], pr.Assignees[1])
	}
	// every player answers exactly two prompts
	for _, p := range players {
		assert.Len(t, p.AssignedPrompts, 2, "player %s", p.ID)
	}
}

func TestAssignLonePlayerAnswersAlone(t *testing.T) {
	s := newTestSupply(nil)
	players := newTestPlayers(1)
	prompts := []*Prompt{{ID: "p1"}}

	s.Assign(prompts, players)

	require.Equal(t, []string{players[0].ID}, prompts[0].Assignees,
		"a lone player is assigned once, not twice")
	assert.Len(t, players[0].AssignedPrompts, 1)
}

func TestAssignNoPlayers(t *testing.T) {
	s := newTestSupply(nil)
	prompts := []*Prompt{{ID: "p1"}}
	s.Assign(prompts, nil)
	assert.Empty(t, prompts[0].Assignees)
}
