// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrExists   = errors.New("room code already in use")
)

// RoomStore keeps room documents by code. Get returns a private copy; changes become visible
// only through Put. There is no compare-and-swap: Put is last-write-wins.
type RoomStore interface {
	Get(ctx context.Context, code string) (*models.Room, error)
	Put(ctx context.Context, room *models.Room) error
	// Create stores a new room, failing with ErrExists if the code is taken.
	Create(ctx context.Context, room *models.Room) error
}
