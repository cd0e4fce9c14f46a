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

// ConfirmationTokenRepository implements auth.ConfirmationTokenRepository
// using PostgreSQL.
type ConfirmationTokenRepository struct {
	pool pool
}

// NewConfirmationTokenRepository creates a new ConfirmationTokenRepository.
func NewConfirmationTokenRepository(pool pool) *ConfirmationTokenRepository {
	return &ConfirmationTokenRepository{pool: pool}
}

// Upsert stores the token. The unique index on player_id enforces the
// one-slot-per-player rule; a conflict replaces the existing token.
func (r *ConfirmationTokenRepository) Upsert(ctx context.Context, token *auth.ConfirmationToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO confirmation_tokens (id, player_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE
		SET id = EXCLUDED.id,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
	`,
		token.ID.String(),
		token.PlayerID.String(),
		token.CreatedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return oops.Code("CONFIRMATION_UPSERT_FAILED").
			With("operation", "upsert confirmation token").
			With("player_id", token.PlayerID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a token by ID.
func (r *ConfirmationTokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.ConfirmationToken, error) {
	var (
		idStr       string
		playerIDStr string
		createdAt   time.Time
		expiresAt   time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, player_id, created_at, expires_at
		FROM confirmation_tokens
		WHERE id = $1
	`, id.String()).Scan(&idStr, &playerIDStr, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CONFIRMATION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CONFIRMATION_GET_FAILED").
			With("operation", "get confirmation token").
			With("id", id.String()).
			Wrap(err)
	}

	tokenID, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CONFIRMATION_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	playerID, err := ulid.Parse(playerIDStr)
	if err != nil {
		return nil, oops.Code("CONFIRMATION_INVALID_PLAYER_ID").
			With("player_id", playerIDStr).
			Wrap(err)
	}

	return &auth.ConfirmationToken{
		ID:        tokenID,
		PlayerID:  playerID,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes the token. Missing tokens are not an error.
func (r *ConfirmationTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM confirmation_tokens WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("CONFIRMATION_DELETE_FAILED").
			With("operation", "delete confirmation token").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens that expired before now.
func (r *ConfirmationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM confirmation_tokens WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, oops.Code("CONFIRMATION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired confirmation tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.ConfirmationTokenRepository = (*ConfirmationTokenRepository)(nil)
