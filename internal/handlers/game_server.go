// internal/handlers/game_server.go
package handlers

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jason-s-yu/shadow-signal/internal/game"
	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// GameServer connects clients to the engine: it runs their requests, broadcasts the results
// and keeps the turn clock armed while a room is speaking.
type GameServer struct {
	Engine *game.Engine
	Clock  *game.TurnClock
	Hub    *Hub
	log    logrus.FieldLogger

	// per-connection inbound limit
	MessageRate  rate.Limit
	MessageBurst int
}

// NewGameServer wires the clock's ticks into the hub.
func NewGameServer(engine *game.Engine, clock *game.TurnClock, hub *Hub, logger logrus.FieldLogger) *GameServer {
	gs := &GameServer{
		Engine:       engine,
		Clock:        clock,
		Hub:          hub,
		log:          logger,
		MessageRate:  5,
		MessageBurst: 10,
	}
	clock.OnTick = gs.onTick
	return gs
}

func (gs *GameServer) onTick(room *models.Room, advanced bool) {
	left := room.SpeakerTimeLeft
	if advanced {
		// the expired turn ended at zero
		left = 0
	}
	gs.Hub.Broadcast(Event{Type: EventTimerTick, Code: room.Code, TimeLeft: &left})
	if advanced {
		gs.Hub.Broadcast(Event{Type: EventSpeakerChanged, Code: room.Code, Room: room})
	}
}

// Handle runs one client request and returns its ack.
func (gs *GameServer) Handle(ctx context.Context, c *Client, req Request) Ack {
	ack := Ack{Type: EventAck, Request: req.Type}
	room, err := gs.dispatch(ctx, c, req)
	if err != nil {
		ack.Error = errorCode(err)
		ack.Message = err.Error()
		logger := gs.log.WithFields(logrus.Fields{"client": c.ID, "request": req.Type, "room": req.Code})
		if ack.Error == CodeInternal {
			logger.WithError(err).Error("request failed")
		} else {
			logger.WithError(err).Debug("request rejected")
		}
		return ack
	}
	ack.Success = true
	ack.Room = gs.Hub.View(room, c.ID)
	return ack
}

func (gs *GameServer) dispatch(ctx context.Context, c *Client, req Request) (*models.Room, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Type != RequestCreateRoom && code == "" {
		return nil, errBadRequest
	}

	switch req.Type {
	case RequestCreateRoom:
		room, err := gs.Engine.Create(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		gs.Hub.Subscribe(room.Code, c)
		return room, nil

	case RequestJoinRoom:
		if strings.TrimSpace(req.Name) == "" {
			return nil, errBadRequest
		}
		room, err := gs.Engine.Join(ctx, code, c.ID, req.Name)
		if err != nil {
			return nil, err
		}
		gs.Hub.Subscribe(code, c)
		gs.Hub.Broadcast(Event{Type: EventPlayerJoined, Code: code, Room: room})
		return room, nil

	case RequestStartGame:
		mode, err := models.ParseMode(req.Mode)
		if err != nil {
			return nil, game.ErrInvalidMode
		}
		room, err := gs.Engine.Start(ctx, code, mode)
		if err != nil {
			return nil, err
		}
		gs.Hub.Broadcast(Event{Type: EventGameStarted, Code: code, Room: room})
		gs.Clock.Arm(code)
		return room, nil

	case RequestNextSpeaker:
		room, err := gs.Engine.AdvanceTurn(ctx, code)
		if err != nil {
			return nil, err
		}
		gs.Hub.Broadcast(Event{Type: EventSpeakerChanged, Code: code, Room: room})
		gs.syncClock(room)
		return room, nil

	case RequestSubmitVote:
		if req.TargetID == "" {
			return nil, errBadRequest
		}
		room, err := gs.Engine.SubmitVote(ctx, code, c.ID, req.TargetID)
		if err != nil {
			return nil, err
		}
		gs.Hub.Broadcast(Event{Type: EventVoteSubmitted, Code: code, Room: room})
		if room.Status == models.StatusEnded {
			gs.Hub.Broadcast(Event{Type: EventGameEnded, Code: code, Room: room})
		}
		gs.syncClock(room)
		return room, nil
	}
	return nil, errBadRequest
}

// syncClock restarts the countdown when a new turn began and stops it otherwise.
func (gs *GameServer) syncClock(room *models.Room) {
	if room.Status == models.StatusSpeaking {
		gs.Clock.Arm(room.Code)
		return
	}
	gs.Clock.Disarm(room.Code)
}
