package game

import (
	"errors"

	"github.com/jason-s-yu/shadow-signal/internal/store"
)

// Failure kinds returned by Engine operations. Callers match them with errors.Is.
var (
	ErrNotFound            = store.ErrNotFound
	ErrInvalidPhase        = errors.New("operation not allowed in the current phase")
	ErrAlreadyJoined       = errors.New("player already in room")
	ErrInsufficientPlayers = errors.New("need at least 3 players")
	ErrIneligibleVoter     = errors.New("voter is not an alive player")
	ErrInvalidTarget       = errors.New("vote target is not an alive player")
	ErrInvalidMode         = errors.New("unknown game mode")
	ErrWordProvider        = errors.New("word provider failed")
	ErrCodeExhausted       = errors.New("could not allocate a unique room code")
)
