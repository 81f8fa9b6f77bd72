// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes.
const (
	BadSubprotocolError = 3000 // Client connected without the room subprotocol.
	RateLimitedError    = 3004 // Client kept sending after repeated rate-limit rejections.
)
