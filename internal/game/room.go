package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Broadcaster delivers room output to connected clients. The orchestrator
// never talks to a transport directly; it describes what changed and the
// broadcaster decides how to ship it.
type Broadcaster interface {
	BroadcastState(code string, snap *Snapshot)
	SendPrompts(code, participantID string, prompts []PromptView)
	BroadcastEvent(code, event string, payload any)
}

// Persister stores final scores with the external player backend.
type Persister interface {
	EditPlayer(ctx context.Context, name string, gamesPlayedDelta, scoreDelta int) error
}

type RoomConfig struct {
	TotalRounds  int
	MinPlayers   int
	PollInterval time.Duration
	MinDwell     time.Duration // minimum NextRoundWait display time
	Language     string
	SuggestTopic string
	ExportFile   string // empty disables results export
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.TotalRounds == 0 {
		c.TotalRounds = 3
	}
	if c.MinPlayers == 0 {
		c.MinPlayers = 3
	}
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

type targetedPrompts struct {
	participantID string
	prompts       []PromptView
}

type pendingEvent struct {
	event   string
	payload any
}

type editReq struct {
	name   string
	games  int
	score  int
}

// Room runs one game session. All mutating operations are serialized by
// the room mutex; different rooms share nothing.
type Room struct {
	code string
	cfg  RoomConfig

	mu               sync.Mutex
	phase            Phase
	roundNumber      int
	roster           *Roster
	submitted        []*Prompt // prompts submitted by players this round
	active           []*Prompt // assigned prompts this round
	results          []RankedAnswer
	podium           []PodiumGroup
	advanceRequested bool
	phaseEnteredAt   time.Time
	closed           bool
	fetching         bool // prompt fetch in flight, transitions held
	pollStop         chan struct{}

	// Output queued during a mutation, flushed after the lock is released
	// so no snapshot is ever sent mid-mutation.
	pendingPrompts []targetedPrompts
	pendingEvents  []pendingEvent
	pendingPersist []editReq
	pendingExport  bool

	supply  *Supply
	store   PromptStore
	persist Persister
	bc      Broadcaster
	log     zerolog.Logger
	onClose func(code string)
}

func NewRoom(code string, cfg RoomConfig, store PromptStore, persist Persister, bc Broadcaster, log zerolog.Logger, onClose func(code string)) *Room {
	cfg = cfg.withDefaults()
	r := &Room{
		code:           code,
		cfg:            cfg,
		phase:          PhaseJoining,
		roundNumber:    1,
		roster:         NewRoster(),
		phaseEnteredAt: time.Now(),
		store:          store,
		persist:        persist,
		bc:             bc,
		log:            log.With().Str("code", code).Logger(),
		onClose:        onClose,
	}
	r.supply = NewSupply(store, cfg.Language, cfg.SuggestTopic, newRNG(), r.log)
	r.mu.Lock()
	r.startPollLocked()
	r.mu.Unlock()
	return r
}

func (r *Room) Code() string { return r.code }

// Join adds a participant. Joiners past the Joining phase enter flagged
// just-joined and sit out assignment and voting until the next round.
func (r *Room) Join(name, connID string) (*Participant, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomClosed
	}
	p, err := r.roster.Join(name, connID, r.phase != PhaseJoining)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.log.Info().Str("name", name).Str("role", string(p.Role)).Msg("participant joined")
	r.emitAndUnlock(true)
	return p, nil
}

// Leave removes the participant bound to connID. The departing player's
// scores are persisted before the roster forgets them, so a submission
// racing a disconnect never sees partially removed state. The room is
// torn down when the last player leaves, even if audience members
// remain. Returns the removed participant and whether the room was torn
// down.
func (r *Room) Leave(connID string) (*Participant, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false
	}
	p := r.roster.Leave(connID)
	if p == nil {
		r.mu.Unlock()
		return nil, false
	}
	r.log.Info().Str("name", p.Name).Msg("participant left")
	if p.Role == RolePlayer && r.phase != PhaseJoining && r.phase != PhaseEndGame {
		r.pendingPersist = append(r.pendingPersist, editReq{name: p.Name, games: 1, score: p.TotalScore})
	}
	if r.roster.PlayerCount() == 0 {
		r.closeLocked()
		persist := r.pendingPersist
		r.pendingPersist = nil
		r.mu.Unlock()
		r.flushPersist(persist)
		if r.onClose != nil {
			r.onClose(r.code)
		}
		return p, true
	}
	r.emitAndUnlock(true)
	return p, false
}

// SubmitPrompt accepts a player's prompt during the Prompts phase and
// persists it to the prompt store in the background.
func (r *Room) SubmitPrompt(connID, text string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	p, err := r.roster.RecordPromptSubmission(connID, r.phase)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.submitted = append(r.submitted, &Prompt{ID: uuid.NewString(), AuthorID: p.ID, Text: text})
	author := p.Name
	r.emitAndUnlock(true)

	if r.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := r.store.CreatePrompt(ctx, author, text); err != nil {
				r.log.Warn().Err(err).Msg("prompt persistence failed")
			}
		}()
	}
	return nil
}

// SubmitAnswers records answers in assignment order. Valid answers are
// kept even when a later one is rejected; the first rejection is returned.
func (r *Room) SubmitAnswers(connID string, texts []string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	p := r.roster.ByConn(connID)
	if p == nil {
		r.mu.Unlock()
		return ErrNotParticipant
	}
	var firstErr error
	accepted := 0
	for i, text := range texts {
		if i >= len(p.AssignedPrompts) {
			if firstErr == nil {
				firstErr = ErrNotAssigned
			}
			break
		}
		if _, err := r.roster.RecordAnswer(connID, p.AssignedPrompts[i], text, r.phase); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		accepted++
	}
	if accepted == 0 {
		r.mu.Unlock()
		if firstErr == nil {
			firstErr = ErrNotAssigned
		}
		return firstErr
	}
	r.emitAndUnlock(true)
	return firstErr
}

// SubmitVote records a vote for an answer by id.
func (r *Room) SubmitVote(connID, answerID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	var prompt *Prompt
	var answer *Answer
	for _, pr := range r.active {
		if a := pr.answerByID(answerID); a != nil {
			prompt, answer = pr, a
			break
		}
	}
	if answer == nil {
		r.mu.Unlock()
		return ErrUnknownAnswer
	}
	if err := r.roster.RecordVote(connID, prompt, answer, r.phase); err != nil {
		r.mu.Unlock()
		return err
	}
	r.emitAndUnlock(true)
	return nil
}

// RequestAdvance arms the one-shot admin advance flag. The transition
// fires once the current phase's quorum condition also holds, either
// immediately or on a later poll tick.
func (r *Room) RequestAdvance(connID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	p := r.roster.ByConn(connID)
	if p == nil {
		r.mu.Unlock()
		return ErrNotParticipant
	}
	if !p.IsAdmin {
		r.mu.Unlock()
		return ErrNotAdmin
	}
	if r.phase == PhaseEndGame {
		r.mu.Unlock()
		return ErrInvalidPhase
	}
	r.advanceRequested = true
	r.emitAndUnlock(true)
	return nil
}

// Snapshot returns the current authoritative room state.
func (r *Room) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Close tears the room down unconditionally.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closeLocked()
	r.mu.Unlock()
	if r.onClose != nil {
		r.onClose(r.code)
	}
}

func (r *Room) closeLocked() {
	r.closed = true
	r.stopPollLocked()
	r.log.Info().Msg("room closed")
}

// --- phase machine ---

// evaluateLocked checks the current phase's exit condition: quorum AND the
// one-shot admin advance flag. The flag is only consumed when both hold.
func (r *Room) evaluateLocked() bool {
	if r.closed || r.fetching || r.phase == PhaseEndGame {
		return false
	}
	if !r.advanceRequested || !r.quorumLocked() {
		return false
	}
	r.advanceRequested = false
	r.transitionLocked()
	return true
}

func (r *Room) quorumLocked() bool {
	switch r.phase {
	case PhaseJoining:
		return r.roster.PlayerCount() >= r.cfg.MinPlayers
	case PhasePrompts:
		target := TargetCount(len(r.roster.EligiblePlayers()))
		if target == 0 {
			return false
		}
		return float64(len(r.submitted))/float64(target) >= 0.5
	case PhaseAnswers:
		for _, p := range r.roster.EligiblePlayers() {
			for _, pr := range p.AssignedPrompts {
				if !p.Answered[pr.ID] {
					return false
				}
			}
		}
		return true
	case PhaseVoting:
		for _, v := range r.roster.Voters() {
			for _, pr := range r.active {
				if votableBy(pr, v.ID) && !v.Voted[pr.ID] {
					return false
				}
			}
		}
		return true
	case PhaseNextRoundWait:
		return time.Since(r.phaseEnteredAt) >= r.cfg.MinDwell
	default: // Results, Scores: admin pacing only
		return true
	}
}

// votableBy reports whether the prompt has at least one answer the voter
// did not author.
func votableBy(pr *Prompt, voterID string) bool {
	for _, a := range pr.Answers {
		if a.AuthorID != voterID {
			return true
		}
	}
	return false
}

func (r *Room) transitionLocked() {
	switch r.phase {
	case PhaseJoining:
		r.enterPhaseLocked(PhasePrompts)

	case PhasePrompts:
		if !r.assignPrompts() {
			return
		}
		r.enterPhaseLocked(PhaseAnswers)

	case PhaseAnswers:
		r.enterPhaseLocked(PhaseVoting)

	case PhaseVoting:
		if err := r.checkScoringInvariantLocked(); err != nil {
			r.failLocked(err)
			return
		}
		r.results = ComputeResults(r.active, r.roundNumber, r.nameOfLocked)
		r.pendingEvents = append(r.pendingEvents, pendingEvent{event: "game:results", payload: r.results})
		r.enterPhaseLocked(PhaseResults)

	case PhaseResults:
		scores := ComputeRoundScores(r.active, r.roundNumber)
		r.roster.ApplyRoundScores(scores)
		r.podium = BuildPodium(r.roster.Players())
		r.pendingEvents = append(r.pendingEvents, pendingEvent{event: "game:podium", payload: r.podium})
		r.enterPhaseLocked(PhaseScores)

	case PhaseScores:
		r.enterPhaseLocked(PhaseNextRoundWait)

	case PhaseNextRoundWait:
		if r.roundNumber < r.cfg.TotalRounds {
			r.roundNumber++
			r.submitted = nil
			r.active = nil
			r.results = nil
			r.roster.ResetRound()
			r.enterPhaseLocked(PhasePrompts)
		} else {
			r.finalizeLocked()
		}
	}
}

func (r *Room) enterPhaseLocked(next Phase) {
	r.log.Info().Str("from", string(r.phase)).Str("to", string(next)).Int("round", r.roundNumber).Msg("phase transition")
	r.phase = next
	r.phaseEnteredAt = time.Now()
	r.startPollLocked()
}

// assignPrompts tops up the prompt pool and distributes it across
// eligible players, queueing each player's targeted assignment message.
// Called with the lock held; the lock is released around the network
// fetch so the room keeps serving, with the fetching flag holding off
// any transition until the fetch lands. Returns false if the room was
// closed while the lock was released.
func (r *Room) assignPrompts() bool {
	submitted := make([]*Prompt, len(r.submitted))
	copy(submitted, r.submitted)
	names := make([]string, 0, r.roster.PlayerCount())
	for _, p := range r.roster.EligiblePlayers() {
		names = append(names, p.Name)
	}

	r.fetching = true
	r.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pool := r.supply.EnsureEnough(ctx, submitted, names, len(names))
	cancel()
	r.mu.Lock()
	r.fetching = false
	if r.closed {
		return false
	}

	// departures during the fetch shrink the eligible set; re-read it
	eligible := r.roster.EligiblePlayers()
	r.supply.Assign(pool, eligible)
	r.active = pool

	for _, p := range eligible {
		views := make([]PromptView, 0, len(p.AssignedPrompts))
		for _, pr := range p.AssignedPrompts {
			views = append(views, PromptView{ID: pr.ID, Text: pr.Text})
		}
		r.pendingPrompts = append(r.pendingPrompts, targetedPrompts{participantID: p.ID, prompts: views})
	}
	return true
}

// checkScoringInvariantLocked verifies the answer graph before scoring:
// every answer belongs to its prompt and nobody voted for themselves.
func (r *Room) checkScoringInvariantLocked() error {
	for _, pr := range r.active {
		for _, a := range pr.Answers {
			if a.PromptID != pr.ID {
				return fmt.Errorf("%w: answer %s detached from prompt %s", ErrInvariant, a.ID, pr.ID)
			}
			if a.Votes[a.AuthorID] {
				return fmt.Errorf("%w: answer %s voted for by its author", ErrInvariant, a.ID)
			}
		}
	}
	return nil
}

// failLocked tears down this room only. Other rooms are unaffected.
func (r *Room) failLocked(err error) {
	r.log.Error().Err(err).Msg("invariant violation, tearing down room")
	r.pendingEvents = append(r.pendingEvents, pendingEvent{
		event:   "error",
		payload: map[string]any{"kind": "invariant", "message": "room closed due to an internal error"},
	})
	r.closeLocked()
	if r.onClose != nil {
		code := r.code
		onClose := r.onClose
		go onClose(code)
	}
}

// finalizeLocked ends the game: bookkeeping, final podium, queued score
// persistence and results export.
func (r *Room) finalizeLocked() {
	r.roster.ApplyGameEndBookkeeping()
	r.podium = BuildPodium(r.roster.Players())
	for _, p := range r.roster.Players() {
		r.pendingPersist = append(r.pendingPersist, editReq{name: p.Name, games: 1, score: p.TotalScore})
	}
	if r.cfg.ExportFile != "" {
		r.pendingExport = true
	}
	r.pendingEvents = append(r.pendingEvents, pendingEvent{event: "game:podium", payload: r.podium})
	r.log.Info().Msg("game over")
	r.phase = PhaseEndGame
	r.phaseEnteredAt = time.Now()
	r.stopPollLocked()
}

// --- poll loop ---

// startPollLocked replaces the phase poll loop. The previous loop is
// always stopped first so a phase never has two live pollers.
func (r *Room) startPollLocked() {
	r.stopPollLocked()
	stop := make(chan struct{})
	r.pollStop = stop
	go r.poll(stop)
}

func (r *Room) stopPollLocked() {
	if r.pollStop != nil {
		close(r.pollStop)
		r.pollStop = nil
	}
}

func (r *Room) poll(stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !r.tick() {
				return
			}
		}
	}
}

// tick re-evaluates the exit condition to catch time-based transitions.
// A tick where nothing changes is a no-op: no snapshot is sent.
func (r *Room) tick() bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.emitAndUnlock(false)
	return true
}

// --- output ---

// emitAndUnlock evaluates the exit condition, captures queued output and
// the snapshot under the lock, then flushes after releasing it.
func (r *Room) emitAndUnlock(mutated bool) {
	changed := r.evaluateLocked()

	var snap *Snapshot
	if mutated || changed {
		snap = r.snapshotLocked()
	}
	prompts := r.pendingPrompts
	events := r.pendingEvents
	persist := r.pendingPersist
	export := r.pendingExport
	r.pendingPrompts = nil
	r.pendingEvents = nil
	r.pendingPersist = nil
	r.pendingExport = false
	r.mu.Unlock()

	if r.bc != nil {
		if snap != nil {
			r.bc.BroadcastState(r.code, snap)
		}
		for _, tp := range prompts {
			r.bc.SendPrompts(r.code, tp.participantID, tp.prompts)
		}
		for _, ev := range events {
			r.bc.BroadcastEvent(r.code, ev.event, ev.payload)
		}
	}
	if len(persist) > 0 {
		go r.flushPersist(persist)
	}
	if export && snap != nil {
		go func() {
			if err := ExportGame(r.cfg.ExportFile, snap); err != nil {
				r.log.Warn().Err(err).Msg("results export failed")
			}
		}()
	}
}

func (r *Room) flushPersist(reqs []editReq) {
	if r.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, req := range reqs {
		if err := r.persist.EditPlayer(ctx, req.name, req.games, req.score); err != nil {
			r.log.Warn().Err(err).Str("player", req.name).Msg("score persistence failed")
		}
	}
}

func (r *Room) nameOfLocked(id string) string {
	if id == GeneratedAuthor {
		return GeneratedAuthor
	}
	if p := r.roster.ByID(id); p != nil {
		return p.Name
	}
	return "departed"
}

func (r *Room) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Code:             r.code,
		Phase:            r.phase,
		RoundNumber:      r.roundNumber,
		TotalRounds:      r.cfg.TotalRounds,
		PromptsSubmitted: len(r.submitted),
		PromptTarget:     TargetCount(len(r.roster.EligiblePlayers())),
		Players:          participantViews(r.roster.Players()),
		Audience:         participantViews(r.roster.Audience()),
		Results:          r.results,
		Podium:           r.podium,
	}
	switch r.phase {
	case PhaseVoting, PhaseResults, PhaseScores, PhaseNextRoundWait, PhaseEndGame:
		snap.Prompts = promptViews(r.active)
	}
	return snap
}

func participantViews(ps []*Participant) []ParticipantView {
	out := make([]ParticipantView, 0, len(ps))
	for _, p := range ps {
		out = append(out, ParticipantView{
			ID:          p.ID,
			Name:        p.Name,
			Role:        p.Role,
			IsAdmin:     p.IsAdmin,
			JustJoined:  p.JustJoined,
			TotalScore:  p.TotalScore,
			RoundScore:  p.RoundScore,
			GamesPlayed: p.GamesPlayed,
		})
	}
	return out
}

func promptViews(prompts []*Prompt) []PromptView {
	out := make([]PromptView, 0, len(prompts))
	for _, pr := range prompts {
		pv := PromptView{ID: pr.ID, Text: pr.Text}
		for _, a := range pr.Answers {
			pv.Answers = append(pv.Answers, AnswerView{ID: a.ID, PromptID: a.PromptID, Text: a.Text, Votes: len(a.Votes)})
		}
		out = append(out, pv)
	}
	return out
}
