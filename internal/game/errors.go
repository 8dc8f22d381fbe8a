package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotAdmin         = errors.New("not admin")
	ErrInvalidPhase     = errors.New("invalid phase for action")
	ErrDuplicateName    = errors.New("name already taken")
	ErrNameLength       = errors.New("name must be 4-15 characters")
	ErrNotParticipant   = errors.New("not a participant of this room")
	ErrNotAssigned      = errors.New("prompt not assigned to you")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrAlreadyAnswered  = errors.New("already answered this prompt")
	ErrAlreadyVoted     = errors.New("already voted on this prompt")
	ErrSelfVote         = errors.New("cannot vote for your own answer")
	ErrUnknownAnswer    = errors.New("no such answer")
	ErrNotEligible      = errors.New("not eligible this round")
	ErrRoomClosed       = errors.New("room closed")

	// ErrInvariant marks a broken internal invariant. It is fatal to the
	// room that produced it and never propagates to other rooms.
	ErrInvariant = errors.New("room state invariant violated")
)
