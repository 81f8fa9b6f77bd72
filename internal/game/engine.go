// internal/game/engine.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/shadow-signal/internal/models"
	"github.com/jason-s-yu/shadow-signal/internal/store"
	"github.com/jason-s-yu/shadow-signal/internal/words"
)

const (
	DefaultTurnSeconds  = 30
	DefaultRoomTTL      = 24 * time.Hour
	DefaultDecoyTimeout = 5 * time.Second

	minPlayers = 3
)

// Recorder receives the action log of every room. Record is called off the request path.
type Recorder interface {
	Record(ctx context.Context, rec models.ActionRecord) error
}

// OnGameEndFunc is invoked with a copy of a room right after it ends.
type OnGameEndFunc func(room *models.Room)

// Engine owns every state transition of a room. Each operation loads the room, mutates it and
// saves it back while holding that room's lock, so operations on one room never interleave.
type Engine struct {
	store store.RoomStore
	words words.Provider
	log   logrus.FieldLogger
	locks roomLocks

	TurnSeconds  int
	RoomTTL      time.Duration
	DecoyTimeout time.Duration

	// PickIndex chooses the special-role holder among n players.
	PickIndex func(n int) int
	NewCode   func() (string, error)
	Now       func() time.Time

	OnGameEnd OnGameEndFunc
	Recorder  Recorder
}

// NewEngine returns an engine with default timings and random role selection.
func NewEngine(rooms store.RoomStore, provider words.Provider, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		store:        rooms,
		words:        provider,
		log:          logger,
		TurnSeconds:  DefaultTurnSeconds,
		RoomTTL:      DefaultRoomTTL,
		DecoyTimeout: DefaultDecoyTimeout,
		PickIndex:    rand.Intn,
		NewCode:      GenerateCode,
		Now:          time.Now,
	}
}

// Create allocates a fresh code and stores an empty lobby room for hostID.
func (e *Engine) Create(ctx context.Context, hostID string) (*models.Room, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := e.NewCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		room := models.NewRoom(code, hostID, e.Now(), e.RoomTTL)
		err = e.store.Create(ctx, room)
		if errors.Is(err, store.ErrExists) {
			e.log.WithField("room", code).Debug("room code collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		e.log.WithFields(logrus.Fields{"room": code, "host": hostID}).Info("room created")
		var acts actionBatch
		acts.add(room, hostID, models.ActionRoomCreated, nil)
		e.publish(acts)
		return room, nil
	}
	return nil, ErrCodeExhausted
}

// Get returns the current state of a room.
func (e *Engine) Get(ctx context.Context, code string) (*models.Room, error) {
	return e.load(ctx, code)
}

// Join appends a new player to a lobby room.
func (e *Engine) Join(ctx context.Context, code, playerID, name string) (*models.Room, error) {
	return e.update(ctx, code, func(room *models.Room, acts *actionBatch) (bool, error) {
		if room.Status != models.StatusLobby {
			return false, ErrInvalidPhase
		}
		if room.PlayerByID(playerID) != nil {
			return false, ErrAlreadyJoined
		}
		name = strings.TrimSpace(name)
		room.Players = append(room.Players, models.NewPlayer(playerID, name))
		acts.add(room, playerID, models.ActionPlayerJoined, map[string]interface{}{"name": name})
		return true, nil
	})
}

// Start assigns roles and words and opens the first speaking round. Nothing is saved unless
// every word lookup succeeds.
func (e *Engine) Start(ctx context.Context, code string, mode models.Mode) (*models.Room, error) {
	rules, ok := mode.Rules()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return e.update(ctx, code, func(room *models.Room, acts *actionBatch) (bool, error) {
		if room.Status != models.StatusLobby {
			return false, ErrInvalidPhase
		}
		if len(room.Players) < minPlayers {
			return false, ErrInsufficientPlayers
		}

		topic, mainWord, err := e.words.PickWord(ctx)
		if err != nil {
			return false, fmt.Errorf("%w: pick word: %v", ErrWordProvider, err)
		}
		var decoy string
		if rules.NeedDecoy {
			dctx, cancel := context.WithTimeout(ctx, e.DecoyTimeout)
			decoy, err = e.words.PickDecoy(dctx, mainWord)
			cancel()
			if err != nil {
				return false, fmt.Errorf("%w: pick decoy: %v", ErrWordProvider, err)
			}
		}

		special := e.PickIndex(len(room.Players))
		for i, p := range room.Players {
			p.Role = rules.Ordinary
			if i == special {
				p.Role = rules.Special
			}
			p.Word = rules.WordFor(p.Role, mainWord, decoy)
			p.IsAlive = true
			p.HasSpoken = false
			p.VotedFor = ""
		}

		room.Mode = mode
		room.Topic = topic
		room.MainWord = mainWord
		room.DecoyWord = decoy
		room.Status = models.StatusSpeaking
		room.CurrentSpeaker = 0
		room.SpeakerTimeLeft = e.TurnSeconds
		room.Round = 1

		e.log.WithFields(logrus.Fields{"room": room.Code, "mode": mode, "players": len(room.Players)}).Info("game started")
		acts.add(room, "", models.ActionGameStarted, map[string]interface{}{"mode": mode, "topic": topic})
		return true, nil
	})
}

// AdvanceTurn ends the current speaker's turn. Outside the speaking phase it returns the room
// unchanged without saving it.
func (e *Engine) AdvanceTurn(ctx context.Context, code string) (*models.Room, error) {
	return e.update(ctx, code, func(room *models.Room, acts *actionBatch) (bool, error) {
		return e.advance(room, acts), nil
	})
}

// SubmitVote records voterID's vote against targetID, replacing any earlier vote this round.
// The vote that completes the tally resolves the round in the same call.
func (e *Engine) SubmitVote(ctx context.Context, code, voterID, targetID string) (*models.Room, error) {
	return e.update(ctx, code, func(room *models.Room, acts *actionBatch) (bool, error) {
		voter := room.PlayerByID(voterID)
		if voter == nil || !voter.IsAlive {
			return false, ErrIneligibleVoter
		}
		if room.Status != models.StatusVoting {
			return false, ErrInvalidPhase
		}
		if target := room.PlayerByID(targetID); target == nil || !target.IsAlive {
			return false, ErrInvalidTarget
		}

		voter.VotedFor = targetID
		acts.add(room, voterID, models.ActionVoteSubmitted, map[string]interface{}{"target": targetID})

		for _, p := range room.AlivePlayers() {
			if p.VotedFor == "" {
				return true, nil
			}
		}
		e.resolveVotes(room, acts)
		return true, nil
	})
}

// Tick counts one second off the current turn and advances the turn once time runs out.
// advanced reports whether the turn moved on. Outside the speaking phase the room is returned unchanged.
func (e *Engine) Tick(ctx context.Context, code string) (room *models.Room, advanced bool, err error) {
	room, err = e.update(ctx, code, func(room *models.Room, acts *actionBatch) (bool, error) {
		if room.Status != models.StatusSpeaking {
			return false, nil
		}
		room.SpeakerTimeLeft--
		if room.SpeakerTimeLeft <= 0 {
			advanced = e.advance(room, acts)
		}
		return true, nil
	})
	return room, advanced, err
}

// advance applies one turn transition. It reports false when the room is not speaking.
func (e *Engine) advance(room *models.Room, acts *actionBatch) bool {
	if room.Status != models.StatusSpeaking {
		return false
	}
	speaker := room.Speaker()
	if speaker != nil {
		speaker.HasSpoken = true
	}

	next := -1
	n := len(room.Players)
	for step := 1; step <= n; step++ {
		i := (room.CurrentSpeaker + step) % n
		if room.Players[i].IsAlive {
			next = i
			break
		}
	}

	allSpoken := true
	for _, p := range room.AlivePlayers() {
		if !p.HasSpoken {
			allSpoken = false
			break
		}
	}

	var actor string
	if speaker != nil {
		actor = speaker.ID
	}
	if allSpoken || next < 0 {
		room.Status = models.StatusVoting
		for _, p := range room.Players {
			p.VotedFor = ""
		}
		e.log.WithFields(logrus.Fields{"room": room.Code, "round": room.Round}).Debug("voting started")
		acts.add(room, actor, models.ActionVotingStarted, nil)
		return true
	}

	room.CurrentSpeaker = next
	room.SpeakerTimeLeft = e.TurnSeconds
	acts.add(room, actor, models.ActionTurnAdvanced, map[string]interface{}{"next": room.Players[next].ID})
	return true
}

func (e *Engine) load(ctx context.Context, code string) (*models.Room, error) {
	room, err := e.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	return room, nil
}

// update runs fn on a fresh copy of the room under the room's lock and saves the copy when fn
// reports a change. On error nothing is saved.
func (e *Engine) update(ctx context.Context, code string, fn func(room *models.Room, acts *actionBatch) (bool, error)) (*models.Room, error) {
	unlock := e.locks.lock(code)
	defer unlock()

	room, err := e.load(ctx, code)
	if err != nil {
		return nil, err
	}
	wasEnded := room.Status == models.StatusEnded
	var acts actionBatch
	changed, err := fn(room, &acts)
	if err != nil {
		return nil, err
	}
	if !changed {
		return room, nil
	}
	if err := e.store.Put(ctx, room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("save room %s: %w", code, err)
	}
	e.publish(acts)
	if !wasEnded && room.Status == models.StatusEnded && e.OnGameEnd != nil {
		e.OnGameEnd(room.Clone())
	}
	return room, nil
}

// actionBatch collects the actions of one operation until its room is saved.
type actionBatch []models.ActionRecord

func (b *actionBatch) add(room *models.Room, actorID, actionType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	*b = append(*b, models.ActionRecord{
		ID:            uuid.New(),
		RoomCode:      room.Code,
		Round:         room.Round,
		ActorID:       actorID,
		ActionType:    actionType,
		ActionPayload: payload,
	})
}

// publish hands saved actions to the Recorder in the background; failures are only logged.
func (e *Engine) publish(acts actionBatch) {
	if e.Recorder == nil || len(acts) == 0 {
		return
	}
	ts := e.Now().UnixMilli()
	for i := range acts {
		acts[i].Timestamp = ts
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, rec := range acts {
			if err := e.Recorder.Record(ctx, rec); err != nil {
				e.log.WithError(err).WithFields(logrus.Fields{"room": rec.RoomCode, "action": rec.ActionType}).Warn("failed to record action")
			}
		}
	}()
}
