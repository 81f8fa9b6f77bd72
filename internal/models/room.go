// internal/models/room.go
package models

import "time"

// Status is the phase a room is in.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusSpeaking Status = "speaking"
	StatusVoting   Status = "voting"
	StatusEnded    Status = "ended"
)

// VoteCount is the number of votes one target received in a resolved round.
type VoteCount struct {
	TargetID string `json:"targetId"`
	Votes    int    `json:"votes"`
}

// Room is the authoritative state of one game session.
type Room struct {
	Code   string `json:"code"`
	HostID string `json:"hostId"`
	Mode   Mode   `json:"mode,omitempty"`
	Status Status `json:"status"`

	Players []*Player `json:"players"`

	CurrentSpeaker  int `json:"currentSpeaker"`
	SpeakerTimeLeft int `json:"speakerTimeLeft"`

	Topic     string `json:"topic,omitempty"`
	MainWord  string `json:"mainWord,omitempty"`
	DecoyWord string `json:"decoyWord,omitempty"`
	Winner    string `json:"winner,omitempty"`

	// Round counts speaking rounds, starting at 1 when the game starts.
	Round        int         `json:"round"`
	EliminatedID string      `json:"eliminatedId,omitempty"`
	LastTally    []VoteCount `json:"lastTally,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewRoom returns an empty lobby room that expires ttl after now.
func NewRoom(code, hostID string, now time.Time, ttl time.Duration) *Room {
	return &Room{
		Code:      code,
		HostID:    hostID,
		Status:    StatusLobby,
		Players:   []*Player{},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		pc := *p
		c.Players[i] = &pc
	}
	if r.LastTally != nil {
		c.LastTally = append([]VoteCount(nil), r.LastTally...)
	}
	return &c
}

// PlayerByID returns the player with the given ID, or nil.
func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AlivePlayers returns the players still in the game, in turn order.
func (r *Room) AlivePlayers() []*Player {
	alive := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}
	return alive
}

// FirstAliveIndex returns the lowest index of an alive player, or -1.
func (r *Room) FirstAliveIndex() int {
	for i, p := range r.Players {
		if p.IsAlive {
			return i
		}
	}
	return -1
}

// Speaker returns the player whose turn it is, or nil outside the speaking phase.
func (r *Room) Speaker() *Player {
	if r.Status != StatusSpeaking || r.CurrentSpeaker < 0 || r.CurrentSpeaker >= len(r.Players) {
		return nil
	}
	return r.Players[r.CurrentSpeaker]
}

// SpecialHolder returns the player holding the special role of the room's mode.
func (r *Room) SpecialHolder() *Player {
	rules, ok := r.Mode.Rules()
	if !ok {
		return nil
	}
	for _, p := range r.Players {
		if p.Role == rules.Special {
			return p
		}
	}
	return nil
}

// Expired reports whether the room's lifetime has elapsed at now.
func (r *Room) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ViewFor returns a copy of the room as the given player should see it while the game is live:
// other players' roles and words are blanked, as are the room's main and decoy words.
// Lobby and ended rooms are returned unredacted.
func (r *Room) ViewFor(playerID string) *Room {
	v := r.Clone()
	if v.Status == StatusLobby || v.Status == StatusEnded {
		return v
	}
	v.MainWord = ""
	v.DecoyWord = ""
	for _, p := range v.Players {
		if p.ID != playerID {
			p.Role = RoleNone
			p.Word = ""
		}
	}
	return v
}
