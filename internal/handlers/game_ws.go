// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jason-s-yu/shadow-signal/internal/middleware"
)

// maxRejections is how many rate-limited messages in a row close the connection.
const maxRejections = 20

// GameWSHandler upgrades to the "room" subprotocol. Every connection is a new participant
// identified by a fresh session ID. Cross-origin upgrades are accepted only from origins; an
// empty list accepts any origin.
func GameWSHandler(logger *logrus.Logger, gs *GameServer, origins []string) http.HandlerFunc {
	patterns := originPatterns(origins)
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		client := NewClient(uuid.NewString())
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, client, logger)
		err = readPump(ctx, c, client, gs, logger)

		gs.Hub.UnsubscribeAll(client)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// originPatterns turns CORS origins such as "https://app.example" into the host patterns
// websocket.Accept matches against.
func originPatterns(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if o = strings.TrimSuffix(o, "/"); o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// readPump handles requests until the connection fails. Each request is answered with an ack.
func readPump(ctx context.Context, c *websocket.Conn, client *Client, gs *GameServer, logger *logrus.Logger) error {
	limiter := rate.NewLimiter(gs.MessageRate, gs.MessageBurst)
	rejected := 0

	// the hello frame tells the client its player ID
	hello, _ := json.Marshal(map[string]string{"type": "session", "id": client.ID})
	client.send(hello)

	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("client %s sent non-text message type %d, ignoring", client.ID, typ)
			continue
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil || req.Type == "" {
			reply(client, Ack{Type: EventAck, Request: req.Type, Error: CodeBadRequest, Message: "invalid json request"}, logger)
			continue
		}

		if !limiter.Allow() {
			rejected++
			if rejected >= maxRejections {
				c.Close(RateLimitedError, "too many requests")
				return errors.New("rate limit exceeded repeatedly")
			}
			reply(client, Ack{Type: EventAck, Request: req.Type, Error: CodeRateLimited}, logger)
			continue
		}
		rejected = 0

		reply(client, gs.Handle(ctx, client, req), logger)
	}
}

func reply(client *Client, ack Ack, logger *logrus.Logger) {
	data, err := json.Marshal(ack)
	if err != nil {
		logger.Warnf("failed to marshal ack for client %s: %v", client.ID, err)
		return
	}
	if !client.send(data) {
		logger.Warnf("client %s queue full, dropping ack", client.ID)
	}
}

// writePump drains the client's queue to the socket and pings every 30 seconds.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-client.OutChan:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("failed to write to websocket for client %s: %v", client.ID, err)
				}
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("ping failed for client %s: %v", client.ID, err)
				}
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}
