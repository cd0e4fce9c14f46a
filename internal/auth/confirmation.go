// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/clock"
)

// ConfirmationTokenTTL is the lifetime of an account or email confirmation
// token.
const ConfirmationTokenTTL = 15 * time.Minute

// ConfirmationToken is a single-use token mailed to a player to prove
// control of an email address. Each player holds at most one; issuing a
// new one replaces any outstanding token.
type ConfirmationToken struct {
	ID        ulid.ULID
	PlayerID  ulid.ULID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ConfirmationTokenRepository manages confirmation-token persistence.
type ConfirmationTokenRepository interface {
	// Upsert stores the token, replacing any existing token for the same
	// player.
	Upsert(ctx context.Context, token *ConfirmationToken) error

	// GetByID retrieves a token by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*ConfirmationToken, error)

	// Delete removes the token. Missing tokens are not an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes tokens that expired before now and returns the
	// count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ConfirmationTokenManager issues and consumes confirmation tokens.
type ConfirmationTokenManager struct {
	repo  ConfirmationTokenRepository
	clock clock.Clock
}

// NewConfirmationTokenManager creates a ConfirmationTokenManager.
func NewConfirmationTokenManager(repo ConfirmationTokenRepository, clk clock.Clock) *ConfirmationTokenManager {
	return &ConfirmationTokenManager{repo: repo, clock: clk}
}

// Issue mints a confirmation token for the player, replacing any token the
// player already holds.
func (m *ConfirmationTokenManager) Issue(ctx context.Context, playerID ulid.ULID) (*ConfirmationToken, error) {
	now := m.clock.Now()
	token := &ConfirmationToken{
		ID:        ulid.Make(),
		PlayerID:  playerID,
		CreatedAt: now,
		ExpiresAt: now.Add(ConfirmationTokenTTL),
	}
	if err := m.repo.Upsert(ctx, token); err != nil {
		return nil, oops.Code("AUTH_CONFIRMATION_CREATE_FAILED").With("player_id", playerID.String()).Wrap(err)
	}
	return token, nil
}

// Consume validates and deletes the token. The token must exist, belong to
// playerID, and be unexpired at the time of the call; a token that fails
// its ownership or expiry check is left in place so the error is
// reportable, but expired tokens are reaped by DeleteExpired regardless.
//
// Returns ErrNotFound for unknown tokens, ErrRelationalConflict for
// ownership mismatches, and ErrTokenExpired past the TTL.
func (m *ConfirmationTokenManager) Consume(ctx context.Context, id, playerID ulid.ULID) error {
	token, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return oops.Code("AUTH_CONFIRMATION_LOOKUP_FAILED").Wrap(err)
	}

	if token.PlayerID != playerID {
		return ErrRelationalConflict
	}
	if m.clock.Now().After(token.ExpiresAt) {
		return ErrTokenExpired
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return oops.Code("AUTH_CONFIRMATION_DELETE_FAILED").Wrap(err)
	}
	return nil
}
