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

// RefreshTokenRepository implements auth.RefreshTokenRepository using
// PostgreSQL.
type RefreshTokenRepository struct {
	pool pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(pool pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a token and evicts the player's oldest tokens beyond
// maxLive. Insert and eviction run in one transaction; the seq column
// breaks created_at ties so eviction order matches insertion order.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken, maxLive int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, player_id, secret_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		token.ID.String(),
		token.PlayerID.String(),
		token.SecretHash,
		token.CreatedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "insert refresh token").
			With("player_id", token.PlayerID.String()).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE player_id = $1 AND id NOT IN (
			SELECT id FROM refresh_tokens
			WHERE player_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		)
	`, token.PlayerID.String(), maxLive)
	if err != nil {
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "evict old refresh tokens").
			With("player_id", token.PlayerID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// Consume deletes the token and returns it. A concurrent consumer loses
// the race with auth.ErrNotFound, since only one DELETE can match.
func (r *RefreshTokenRepository) Consume(ctx context.Context, id ulid.ULID) (*auth.RefreshToken, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM refresh_tokens
		WHERE id = $1
		RETURNING id, player_id, secret_hash, created_at, expires_at
	`, id.String())

	token, err := scanRefreshToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_CONSUME_FAILED").
			With("operation", "consume refresh token").
			With("id", id.String()).
			Wrap(err)
	}
	return token, nil
}

// DeleteByPlayer removes every token belonging to the player.
func (r *RefreshTokenRepository) DeleteByPlayer(ctx context.Context, playerID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE player_id = $1
	`, playerID.String())
	if err != nil {
		return oops.Code("REFRESH_DELETE_BY_PLAYER_FAILED").
			With("operation", "delete refresh tokens by player").
			With("player_id", playerID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens that expired before now.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, oops.Code("REFRESH_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (*auth.RefreshToken, error) {
	var (
		idStr       string
		playerIDStr string
		secretHash  string
		createdAt   time.Time
		expiresAt   time.Time
	)

	err := row.Scan(&idStr, &playerIDStr, &secretHash, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("REFRESH_SCAN_FAILED").
			With("operation", "scan refresh token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REFRESH_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	playerID, err := ulid.Parse(playerIDStr)
	if err != nil {
		return nil, oops.Code("REFRESH_INVALID_PLAYER_ID").
			With("player_id", playerIDStr).
			Wrap(err)
	}

	return &auth.RefreshToken{
		ID:         id,
		PlayerID:   playerID,
		SecretHash: secretHash,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Compile-time interface check.
var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
