// internal/models/mode.go
package models

import (
	"fmt"
	"strings"
)

// Mode selects which role pair and word rule a game is played with.
type Mode string

const (
	// ModeStandard gives the impostor no word at all.
	ModeStandard Mode = "standard"
	// ModeAdversarial gives the spy a decoy word related to the main word.
	ModeAdversarial Mode = "adversarial"
)

// Role is the role a player holds once the game has started.
type Role string

const (
	RoleNone     Role = ""
	RoleImpostor Role = "impostor"
	RoleCitizen  Role = "citizen"
	RoleSpy      Role = "spy"
	RoleAgent    Role = "agent"
)

// ModeRules is the role pair and word assignment rule of a mode.
type ModeRules struct {
	Special   Role
	Ordinary  Role
	NeedDecoy bool // special role receives the decoy word instead of nothing
}

var modeRules = map[Mode]ModeRules{
	ModeStandard:    {Special: RoleImpostor, Ordinary: RoleCitizen},
	ModeAdversarial: {Special: RoleSpy, Ordinary: RoleAgent, NeedDecoy: true},
}

// ParseMode accepts the canonical mode names plus the legacy "infiltrator" and "spy" names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "infiltrator":
		return ModeStandard, nil
	case "adversarial", "spy":
		return ModeAdversarial, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Rules returns the role pair of the mode. ok is false for an unknown mode.
func (m Mode) Rules() (ModeRules, bool) {
	r, ok := modeRules[m]
	return r, ok
}

// WordFor returns the word handed to a player of the given role.
func (r ModeRules) WordFor(role Role, mainWord, decoyWord string) string {
	if role != r.Special {
		return mainWord
	}
	if r.NeedDecoy {
		return decoyWord
	}
	return ""
}

// SpecialWins is the winner label used when the special role survives.
func (r ModeRules) SpecialWins() string {
	return string(r.Special)
}

// OrdinaryWins is the winner label used when the special role is voted out, e.g. "citizens".
func (r ModeRules) OrdinaryWins() string {
	return string(r.Ordinary) + "s"
}
