package models

// Player is one participant of a room. Players are kept in join order, which is also turn order.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role,omitempty"`
	Word      string `json:"word"`
	IsAlive   bool   `json:"isAlive"`
	HasSpoken bool   `json:"hasSpoken"`

	// VotedFor holds the target's player ID during voting; empty otherwise.
	VotedFor string `json:"votedFor,omitempty"`
}

// NewPlayer returns a player in the default pre-game state.
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:      id,
		Name:    name,
		IsAlive: true,
	}
}
