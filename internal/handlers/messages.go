// internal/handlers/messages.go
package handlers

import (
	"errors"

	"github.com/jason-s-yu/shadow-signal/internal/game"
	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// Inbound request types.
const (
	RequestCreateRoom  = "create_room"
	RequestJoinRoom    = "join_room"
	RequestStartGame   = "start_game"
	RequestNextSpeaker = "next_speaker"
	RequestSubmitVote  = "submit_vote"
)

// Room events broadcast to every subscriber.
const (
	EventPlayerJoined   = "player_joined"
	EventGameStarted    = "game_started"
	EventSpeakerChanged = "speaker_changed"
	EventVoteSubmitted  = "vote_submitted"
	EventTimerTick      = "timer_tick"
	EventGameEnded      = "game_ended"
	EventAck            = "ack"
)

// Error codes sent back in acks and HTTP error bodies.
const (
	CodeBadRequest          = "bad_request"
	CodeRateLimited         = "rate_limited"
	CodeNotFound            = "not_found"
	CodeInvalidPhase        = "invalid_phase"
	CodeAlreadyJoined       = "already_joined"
	CodeInsufficientPlayers = "insufficient_players"
	CodeIneligibleVoter     = "ineligible_voter"
	CodeInvalidTarget       = "invalid_target"
	CodeInvalidMode         = "invalid_mode"
	CodeWordProvider        = "word_provider_error"
	CodeExhausted           = "code_exhausted"
	CodeInternal            = "internal_error"
)

// Request is one message from a client.
type Request struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name,omitempty"`
	Mode     string `json:"mode,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

// Ack answers exactly one Request.
type Ack struct {
	Type    string       `json:"type"`
	Request string       `json:"request"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Room    *models.Room `json:"room,omitempty"`
}

// Event is a room broadcast.
type Event struct {
	Type     string       `json:"type"`
	Code     string       `json:"code"`
	TimeLeft *int         `json:"timeLeft,omitempty"`
	Room     *models.Room `json:"room,omitempty"`
}

var errBadRequest = errors.New("malformed request")

// errorCode maps an engine failure to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return CodeBadRequest
	case errors.Is(err, game.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, game.ErrInvalidPhase):
		return CodeInvalidPhase
	case errors.Is(err, game.ErrAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, game.ErrInsufficientPlayers):
		return CodeInsufficientPlayers
	case errors.Is(err, game.ErrIneligibleVoter):
		return CodeIneligibleVoter
	case errors.Is(err, game.ErrInvalidTarget):
		return CodeInvalidTarget
	case errors.Is(err, game.ErrInvalidMode):
		return CodeInvalidMode
	case errors.Is(err, game.ErrWordProvider):
		return CodeWordProvider
	case errors.Is(err, game.ErrCodeExhausted):
		return CodeExhausted
	}
	return CodeInternal
}
