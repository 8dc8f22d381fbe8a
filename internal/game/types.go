package game

import (
	"time"
)

type Phase string

const (
	PhaseJoining       Phase = "Joining"
	PhasePrompts       Phase = "Prompts"
	PhaseAnswers       Phase = "Answers"
	PhaseVoting        Phase = "Voting"
	PhaseResults       Phase = "Results"
	PhaseScores        Phase = "Scores"
	PhaseNextRoundWait Phase = "NextRoundWait"
	PhaseEndGame       Phase = "EndGame"
)

type Role string

const (
	RolePlayer   Role = "player"
	RoleAudience Role = "audience"
)

// GeneratedAuthor is the author id used for prompts obtained from the
// suggestion service rather than a participant.
const GeneratedAuthor = "generated"

type Participant struct {
	ID          string
	Name        string
	ConnID      string
	Role        Role
	IsAdmin     bool
	JustJoined  bool
	TotalScore  int
	RoundScore  int
	GamesPlayed int
	JoinedAt    time.Time

	// Round-scoped bookkeeping, cleared at every round boundary.
	AssignedPrompts []*Prompt
	SubmittedPrompt bool
	Answered        map[string]bool // prompt id -> answered
	Voted           map[string]bool // prompt id -> voted
}

func (p *Participant) assigned(promptID string) bool {
	for _, pr := range p.AssignedPrompts {
		if pr.ID == promptID {
			return true
		}
	}
	return false
}

func (p *Participant) resetRound() {
	p.AssignedPrompts = nil
	p.SubmittedPrompt = false
	p.Answered = make(map[string]bool)
	p.Voted = make(map[string]bool)
	p.RoundScore = 0
	p.JustJoined = false
}

type Prompt struct {
	ID        string
	AuthorID  string
	Text      string
	Answers   []*Answer
	Assignees []string // participant ids, distinct; two except for a lone player
}

func (pr *Prompt) answerByID(id string) *Answer {
	for _, a := range pr.Answers {
		if a.ID == id {
			return a
		}
	}
	return nil
}

type Answer struct {
	ID       string
	PromptID string
	AuthorID string
	Text     string
	Votes    map[string]bool // voter ids, never contains AuthorID
}

// StoredPrompt is a previously persisted prompt returned by the external
// prompt store.
type StoredPrompt struct {
	Author string `json:"username"`
	Text   string `json:"text"`
}

// View types, shipped to clients in state snapshots.

type ParticipantView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	IsAdmin     bool   `json:"isAdmin"`
	JustJoined  bool   `json:"justJoined"`
	TotalScore  int    `json:"totalScore"`
	RoundScore  int    `json:"roundScore"`
	GamesPlayed int    `json:"gamesPlayed"`
}

type AnswerView struct {
	ID       string `json:"id"`
	PromptID string `json:"promptId"`
	Text     string `json:"text"`
	Votes    int    `json:"votes"`
}

type PromptView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Answers []AnswerView `json:"answers"`
}

type RankedAnswer struct {
	AnswerID   string `json:"answerId"`
	PromptID   string `json:"promptId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Score      int    `json:"score"`
}

type PodiumGroup struct {
	Position int      `json:"position"`
	Score    int      `json:"score"`
	Names    []string `json:"names"`
}

// Snapshot is the full room state broadcast after every phase transition
// and every accepted mutation that changes participant-visible data.
type Snapshot struct {
	Code             string            `json:"code"`
	Phase            Phase             `json:"phase"`
	RoundNumber      int               `json:"roundNumber"`
	TotalRounds      int               `json:"totalRounds"`
	Players          []ParticipantView `json:"players"`
	Audience         []ParticipantView `json:"audience"`
	PromptTarget     int               `json:"promptTarget"`
	PromptsSubmitted int               `json:"promptsSubmitted"`
	Prompts          []PromptView      `json:"prompts,omitempty"`
	Results          []RankedAnswer    `json:"results,omitempty"`
	Podium           []PodiumGroup     `json:"podium,omitempty"`
}
