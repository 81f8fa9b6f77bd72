// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// Archive writes finished games and the action log to Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// RecordGameResult stores an ended room and its players in one transaction. Recording the same
// game twice overwrites the earlier rows.
func (a *Archive) RecordGameResult(ctx context.Context, room *models.Room) error {
	if room.Status != models.StatusEnded {
		return fmt.Errorf("room %s has not ended", room.Code)
	}
	err := pgx.BeginTxFunc(ctx, a.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (room_code, created_at, mode, topic, main_word, decoy_word, winner, rounds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (room_code, created_at)
			DO UPDATE SET winner = $7, rounds = $8, ended_at = NOW()
		`
		if _, err := tx.Exec(ctx, upsertGame,
			room.Code, room.CreatedAt, string(room.Mode), room.Topic, room.MainWord, room.DecoyWord, room.Winner, room.Round,
		); err != nil {
			return err
		}

		for seat, p := range room.Players {
			q := `
				INSERT INTO game_players (room_code, created_at, seat, player_id, name, role, survived)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (room_code, created_at, player_id)
				DO UPDATE SET role = $6, survived = $7
			`
			if _, err := tx.Exec(ctx, q, room.Code, room.CreatedAt, seat, p.ID, p.Name, string(p.Role), p.IsAlive); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or players: %w", err)
	}
	return nil
}

// InsertActions stores a batch of action records in one transaction. Records already stored are skipped.
func (a *Archive) InsertActions(ctx context.Context, recs []models.ActionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, a.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO room_actions (id, room_code, round, actor_id, action_type, action_payload, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`
		for _, rec := range recs {
			if rec.ActionPayload == nil {
				rec.ActionPayload = map[string]interface{}{}
			}
			payload, err := json.Marshal(rec.ActionPayload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", rec.ID, err)
			}
			if _, err := tx.Exec(ctx, q,
				rec.ID, rec.RoomCode, rec.Round, rec.ActorID, rec.ActionType, payload, time.UnixMilli(rec.Timestamp),
			); err != nil {
				return fmt.Errorf("insert action %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}
