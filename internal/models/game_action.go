package models

import "github.com/google/uuid"

// Action types written to the action log.
const (
	ActionRoomCreated      = "room_created"
	ActionPlayerJoined     = "player_joined"
	ActionGameStarted      = "game_started"
	ActionTurnAdvanced     = "turn_advanced"
	ActionVotingStarted    = "voting_started"
	ActionVoteSubmitted    = "vote_submitted"
	ActionPlayerEliminated = "player_eliminated"
	ActionRoundStarted     = "round_started"
	ActionGameEnded        = "game_ended"
)

// ActionRecord is one state change of a room, as consumed by the historian.
type ActionRecord struct {
	ID            uuid.UUID              `json:"id"`
	RoomCode      string                 `json:"room_code"`
	Round         int                    `json:"round"`
	ActorID       string                 `json:"actor_id,omitempty"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}
