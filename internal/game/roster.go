package game

import (
	"time"

	"github.com/google/uuid"
)

const maxPlayers = 8

// Roster owns the players and audience members of a single room. It is not
// safe for concurrent use on its own; the owning Room serializes access.
type Roster struct {
	players  map[string]*Participant // id -> player
	audience map[string]*Participant // id -> audience member
	byName   map[string]*Participant // either set
	byConn   map[string]*Participant // either set

	joinOrder []string // player ids in join order, drives admin succession
}

func NewRoster() *Roster {
	return &Roster{
		players:  make(map[string]*Participant),
		audience: make(map[string]*Participant),
		byName:   make(map[string]*Participant),
		byConn:   make(map[string]*Participant),
	}
}

// Join adds a participant. The first player becomes admin. Once the player
// set is full, joiners are demoted to audience instead of rejected.
// midRound marks participants arriving after the Joining phase; they are
// excluded from assignment and voting until the next round boundary.
func (r *Roster) Join(name, connID string, midRound bool) (*Participant, error) {
	if len(name) < 4 || len(name) > 15 {
		return nil, ErrNameLength
	}
	if r.byName[name] != nil {
		return nil, ErrDuplicateName
	}

	p := &Participant{
		ID:         uuid.NewString(),
		Name:       name,
		ConnID:     connID,
		JustJoined: midRound,
		JoinedAt:   time.Now().UTC(),
		Answered:   make(map[string]bool),
		Voted:      make(map[string]bool),
	}

	if len(r.players) >= maxPlayers {
		p.Role = RoleAudience
		r.audience[p.ID] = p
	} else {
		p.Role = RolePlayer
		p.IsAdmin = len(r.players) == 0
		r.players[p.ID] = p
		r.joinOrder = append(r.joinOrder, p.ID)
	}
	r.byName[name] = p
	r.byConn[connID] = p
	return p, nil
}

// Leave removes the participant bound to connID, reassigning admin if
// needed. Returns the removed participant, or nil if the connection was
// not part of this room.
func (r *Roster) Leave(connID string) *Participant {
	p := r.byConn[connID]
	if p == nil {
		return nil
	}
	delete(r.byConn, connID)
	delete(r.byName, p.Name)
	if p.Role == RolePlayer {
		delete(r.players, p.ID)
		for i, id := range r.joinOrder {
			if id == p.ID {
				r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
				break
			}
		}
		if p.IsAdmin {
			r.reassignAdmin()
		}
	} else {
		delete(r.audience, p.ID)
	}
	return p
}

func (r *Roster) reassignAdmin() {
	for _, id := range r.joinOrder {
		if p := r.players[id]; p != nil {
			p.IsAdmin = true
			return
		}
	}
}

func (r *Roster) ByConn(connID string) *Participant { return r.byConn[connID] }

func (r *Roster) ByID(id string) *Participant {
	if p := r.players[id]; p != nil {
		return p
	}
	return r.audience[id]
}

func (r *Roster) PlayerCount() int { return len(r.players) }

// Players returns the players in join order.
func (r *Roster) Players() []*Participant {
	out := make([]*Participant, 0, len(r.players))
	for _, id := range r.joinOrder {
		if p := r.players[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (r *Roster) Audience() []*Participant {
	out := make([]*Participant, 0, len(r.audience))
	for _, p := range r.audience {
		out = append(out, p)
	}
	return out
}

// EligiblePlayers returns players who take part in the current round.
func (r *Roster) EligiblePlayers() []*Participant {
	out := make([]*Participant, 0, len(r.players))
	for _, p := range r.Players() {
		if !p.JustJoined {
			out = append(out, p)
		}
	}
	return out
}

// Voters returns everyone allowed to vote this round: eligible players
// plus audience members who were present before the round started.
func (r *Roster) Voters() []*Participant {
	out := r.EligiblePlayers()
	for _, a := range r.audience {
		if !a.JustJoined {
			out = append(out, a)
		}
	}
	return out
}

// RecordPromptSubmission validates and books a prompt submission for the
// participant bound to connID. One prompt per player per round.
func (r *Roster) RecordPromptSubmission(connID string, phase Phase) (*Participant, error) {
	p := r.byConn[connID]
	if p == nil {
		return nil, ErrNotParticipant
	}
	if phase != PhasePrompts {
		return nil, ErrInvalidPhase
	}
	if p.Role != RolePlayer {
		return nil, ErrNotEligible
	}
	if p.SubmittedPrompt {
		return nil, ErrAlreadySubmitted
	}
	p.SubmittedPrompt = true
	return p, nil
}

// RecordAnswer validates and appends an answer to one of the submitter's
// assigned prompts.
func (r *Roster) RecordAnswer(connID string, prompt *Prompt, text string, phase Phase) (*Answer, error) {
	p := r.byConn[connID]
	if p == nil {
		return nil, ErrNotParticipant
	}
	if phase != PhaseAnswers {
		return nil, ErrInvalidPhase
	}
	if prompt == nil || !p.assigned(prompt.ID) {
		return nil, ErrNotAssigned
	}
	if p.Answered[prompt.ID] {
		return nil, ErrAlreadyAnswered
	}
	a := &Answer{
		ID:       uuid.NewString(),
		PromptID: prompt.ID,
		AuthorID: p.ID,
		Text:     text,
		Votes:    make(map[string]bool),
	}
	prompt.Answers = append(prompt.Answers, a)
	p.Answered[prompt.ID] = true
	return a, nil
}

// RecordVote validates and books a vote on an answer. One vote per prompt
// per voter, never for the voter's own answer.
func (r *Roster) RecordVote(connID string, prompt *Prompt, answer *Answer, phase Phase) error {
	p := r.byConn[connID]
	if p == nil {
		return ErrNotParticipant
	}
	if phase != PhaseVoting {
		return ErrInvalidPhase
	}
	if p.JustJoined {
		return ErrNotEligible
	}
	if answer.AuthorID == p.ID {
		return ErrSelfVote
	}
	if p.Voted[prompt.ID] {
		return ErrAlreadyVoted
	}
	answer.Votes[p.ID] = true
	p.Voted[prompt.ID] = true
	return nil
}

// ApplyRoundScores credits per-author round scores and folds them into
// total scores. Invoked by the orchestrator at the Results phase boundary.
func (r *Roster) ApplyRoundScores(scores map[string]int) {
	for authorID, score := range scores {
		if p := r.players[authorID]; p != nil {
			p.RoundScore = score
			p.TotalScore += score
		}
	}
}

// ApplyGameEndBookkeeping increments games played for all players.
func (r *Roster) ApplyGameEndBookkeeping() {
	for _, p := range r.players {
		p.GamesPlayed++
	}
}

// ResetRound clears round-scoped participant state at a round boundary.
func (r *Roster) ResetRound() {
	for _, p := range r.players {
		p.resetRound()
	}
	for _, a := range r.audience {
		a.resetRound()
	}
}
