// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

// UndoTokenRepository implements auth.UndoTokenRepository using PostgreSQL.
type UndoTokenRepository struct {
	pool pool
}

// NewUndoTokenRepository creates a new UndoTokenRepository.
func NewUndoTokenRepository(pool pool) *UndoTokenRepository {
	return &UndoTokenRepository{pool: pool}
}

// Upsert stores the token. The unique index on (player_id, function)
// enforces one slot per player per function; a conflict replaces the
// existing token, so only the latest change of each kind is revertible.
func (r *UndoTokenRepository) Upsert(ctx context.Context, token *auth.UndoToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO undo_tokens (id, player_id, function, previous_value, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, function) DO UPDATE
		SET id = EXCLUDED.id,
		    previous_value = EXCLUDED.previous_value,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
	`,
		token.ID.String(),
		token.PlayerID.String(),
		string(token.Function),
		token.PreviousValue,
		token.CreatedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return oops.Code("UNDO_UPSERT_FAILED").
			With("operation", "upsert undo token").
			With("player_id", token.PlayerID.String()).
			With("function", string(token.Function)).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a token by ID.
func (r *UndoTokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.UndoToken, error) {
	var (
		idStr         string
		playerIDStr   string
		function      string
		previousValue string
		createdAt     time.Time
		expiresAt     time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, player_id, function, previous_value, created_at, expires_at
		FROM undo_tokens
		WHERE id = $1
	`, id.String()).Scan(&idStr, &playerIDStr, &function, &previousValue, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("UNDO_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("UNDO_GET_FAILED").
			With("operation", "get undo token").
			With("id", id.String()).
			Wrap(err)
	}

	tokenID, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("UNDO_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	playerID, err := ulid.Parse(playerIDStr)
	if err != nil {
		return nil, oops.Code("UNDO_INVALID_PLAYER_ID").
			With("player_id", playerIDStr).
			Wrap(err)
	}

	return &auth.UndoToken{
		ID:            tokenID,
		PlayerID:      playerID,
		Function:      auth.UndoFunction(function),
		PreviousValue: previousValue,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
	}, nil
}

// Delete removes the token. Missing tokens are not an error.
func (r *UndoTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM undo_tokens WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("UNDO_DELETE_FAILED").
			With("operation", "delete undo token").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// DeleteByPlayer removes every token belonging to the player.
func (r *UndoTokenRepository) DeleteByPlayer(ctx context.Context, playerID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM undo_tokens WHERE player_id = $1
	`, playerID.String())
	if err != nil {
		return oops.Code("UNDO_DELETE_BY_PLAYER_FAILED").
			With("operation", "delete undo tokens by player").
			With("player_id", playerID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens that expired before now.
func (r *UndoTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM undo_tokens WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, oops.Code("UNDO_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired undo tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.UndoTokenRepository = (*UndoTokenRepository)(nil)
