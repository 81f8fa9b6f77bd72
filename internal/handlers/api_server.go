// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/shadow-signal/internal/middleware"
)

// NewRouter mounts the websocket gateway and the room endpoints. Any http(s) origin is
// allowed when origins is empty.
func NewRouter(logger *logrus.Logger, gs *GameServer, origins []string) http.Handler {
	corsOrigins := origins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"https://*", "http://*"}
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", HealthHandler)
	r.Get("/ws", GameWSHandler(logger, gs, origins))

	r.Group(func(r chi.Router) {
		r.Use(middleware.LogMiddleware(logger))
		r.Post("/rooms", CreateRoomHandler(gs))
		r.Get("/rooms/{code}", GetRoomHandler(gs))
	})
	return r
}
