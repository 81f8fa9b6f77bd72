package game

import (
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// tallyVotes counts the votes of alive players. Targets appear in the order they were first
// voted for, scanning voters in turn order.
func tallyVotes(room *models.Room) []models.VoteCount {
	var tally []models.VoteCount
	index := make(map[string]int)
	for _, p := range room.AlivePlayers() {
		if p.VotedFor == "" {
			continue
		}
		i, ok := index[p.VotedFor]
		if !ok {
			i = len(tally)
			index[p.VotedFor] = i
			tally = append(tally, models.VoteCount{TargetID: p.VotedFor})
		}
		tally[i].Votes++
	}
	return tally
}

// leader returns the target with the most votes. On a tie the target voted for first wins.
// It returns "" for an empty tally.
func leader(tally []models.VoteCount) string {
	best, top := "", 0
	for _, c := range tally {
		if c.Votes > top {
			best, top = c.TargetID, c.Votes
		}
	}
	return best
}

// resolveVotes eliminates the leading target and either ends the game or opens the next round.
func (e *Engine) resolveVotes(room *models.Room, acts *actionBatch) {
	rules, _ := room.Mode.Rules()
	tally := tallyVotes(room)
	room.LastTally = tally
	room.EliminatedID = ""
	for _, p := range room.Players {
		p.VotedFor = ""
	}

	target := leader(tally)
	if target == "" {
		e.nextRound(room, acts)
		return
	}

	victim := room.PlayerByID(target)
	victim.IsAlive = false
	room.EliminatedID = victim.ID
	acts.add(room, "", models.ActionPlayerEliminated, map[string]interface{}{
		"player": victim.ID,
		"role":   victim.Role,
		"votes":  tally,
	})

	if victim.Role == rules.Special {
		e.end(room, rules.OrdinaryWins(), acts)
		return
	}
	alive := room.AlivePlayers()
	if len(alive) == 2 {
		for _, p := range alive {
			if p.Role == rules.Special {
				e.end(room, rules.SpecialWins(), acts)
				return
			}
		}
	}
	e.nextRound(room, acts)
}

func (e *Engine) nextRound(room *models.Room, acts *actionBatch) {
	for _, p := range room.Players {
		p.HasSpoken = false
	}
	room.Status = models.StatusSpeaking
	room.CurrentSpeaker = room.FirstAliveIndex()
	room.SpeakerTimeLeft = e.TurnSeconds
	room.Round++
	acts.add(room, "", models.ActionRoundStarted, nil)
}

func (e *Engine) end(room *models.Room, winner string, acts *actionBatch) {
	room.Status = models.StatusEnded
	room.Winner = winner
	e.log.WithFields(logrus.Fields{"room": room.Code, "winner": winner, "round": room.Round}).Info("game ended")
	acts.add(room, "", models.ActionGameEnded, map[string]interface{}{"winner": winner})
}
