package game

import (
	"context"
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrCannotGenerate is returned by a PromptStore when the suggestion
// service cannot produce another prompt. Supply stops short instead of
// retrying forever.
var ErrCannotGenerate = errors.New("cannot generate suggestion")

// PromptStore is the external prompt collaborator. All calls are
// best-effort: failures degrade supply, never room state.
type PromptStore interface {
	CreatePrompt(ctx context.Context, author, text string) (string, error)
	GetPrompts(ctx context.Context, authors []string, language string) ([]StoredPrompt, error)
	SuggestPrompt(ctx context.Context, topic string) (string, error)
}

// Supply obtains enough prompts for a round by combining player-submitted
// prompts, previously stored prompts and generated fallbacks, then
// distributes them fairly across players.
type Supply struct {
	store    PromptStore
	language string
	topic    string
	rng      *rand.Rand
	log      zerolog.Logger
}

func NewSupply(store PromptStore, language, topic string, rng *rand.Rand, log zerolog.Logger) *Supply {
	return &Supply{store: store, language: language, topic: topic, rng: rng, log: log}
}

// TargetCount is the number of prompts a round needs: half the player
// count when even (two answerers each), the full player count when odd
// (each player answers two).
func TargetCount(numPlayers int) int {
	if numPlayers%2 == 0 {
		return numPlayers / 2
	}
	return numPlayers
}

// EnsureEnough grows the submitted-prompt pool to the target count.
// Supply order: submitted prompts, then stored prompts authored by the
// room's participants, then generated prompts until the shortfall is
// filled or the service gives up.
func (s *Supply) EnsureEnough(ctx context.Context, submitted []*Prompt, participantNames []string, numPlayers int) []*Prompt {
	target := TargetCount(numPlayers)
	pool := make([]*Prompt, len(submitted))
	copy(pool, submitted)

	if len(pool) < target && s.store != nil {
		stored, err := s.store.GetPrompts(ctx, participantNames, s.language)
		if err != nil {
			s.log.Warn().Err(err).Msg("prompt store unavailable, continuing with local prompts")
		}
		for _, sp := range stored {
			if len(pool) >= target {
				break
			}
			author := sp.Author
			if author == "" {
				author = GeneratedAuthor
			}
			pool = append(pool, &Prompt{ID: uuid.NewString(), AuthorID: author, Text: sp.Text})
		}
	}

	for len(pool) < target {
		if s.store == nil {
			break
		}
		text, err := s.store.SuggestPrompt(ctx, s.topic)
		if err != nil {
			if !errors.Is(err, ErrCannotGenerate) {
				s.log.Warn().Err(err).Msg("suggestion service unavailable")
			}
			break
		}
		pool = append(pool, &Prompt{ID: uuid.NewString(), AuthorID: GeneratedAuthor, Text: text})
	}

	if len(pool) < target {
		s.log.Warn().Int("have", len(pool)).Int("target", target).Msg("prompt supply stopped short")
	}
	if len(pool) > target {
		pool = pool[:target]
	}
	return pool
}

// Assign shuffles players and prompts independently and assigns two
// distinct answerers to every prompt, round-robin. Each assignment is
// mirrored onto the player's AssignedPrompts list. A lone remaining
// player (departures can shrink a round to one) answers alone rather
// than being assigned twice.
func (s *Supply) Assign(prompts []*Prompt, players []*Participant) {
	n := len(players)
	if n == 0 {
		return
	}
	if n == 1 {
		only := players[0]
		for _, pr := range prompts {
			pr.Assignees = []string{only.ID}
			only.AssignedPrompts = append(only.AssignedPrompts, pr)
		}
		return
	}

	shuffled := make([]*Participant, n)
	copy(shuffled, players)
	s.rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	pool := make([]*Prompt, len(prompts))
	copy(pool, prompts)
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i, pr := range pool {
		var first, second *Participant
		if n%2 == 0 {
			first = shuffled[(i*2)%n]
			second = shuffled[(i*2+1)%n]
		} else {
			first = shuffled[i%n]
			second = shuffled[(i+1)%n]
		}
		pr.Assignees = []string{first.ID, second.ID}
		first.AssignedPrompts = append(first.AssignedPrompts, pr)
		second.AssignedPrompts = append(second.AssignedPrompts, pr)
	}
}
