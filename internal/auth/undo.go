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

// UndoTokenTTL is the window during which a credential change can be
// reverted.
const UndoTokenTTL = 24 * time.Hour

// UndoFunction names the kind of change an undo token reverts. The set is
// closed; persistence rejects anything else.
type UndoFunction string

// The supported undo functions.
const (
	UndoPassword UndoFunction = "password"
	UndoEmail    UndoFunction = "email"
)

// Valid reports whether f is a known undo function.
func (f UndoFunction) Valid() bool {
	return f == UndoPassword || f == UndoEmail
}

// UndoToken lets a player revert a recent credential change. A player holds
// at most one token per function; a newer change replaces the older token,
// so only the most recent change of each kind is revertible.
type UndoToken struct {
	ID       ulid.ULID
	PlayerID ulid.ULID
	Function UndoFunction

	// PreviousValue is the state restored on consumption: the prior
	// password hash for UndoPassword, the prior email for UndoEmail.
	PreviousValue string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// UndoTokenRepository manages undo-token persistence.
type UndoTokenRepository interface {
	// Upsert stores the token, replacing any existing token for the same
	// player and function.
	Upsert(ctx context.Context, token *UndoToken) error

	// GetByID retrieves a token by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*UndoToken, error)

	// Delete removes the token. Missing tokens are not an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByPlayer removes every token belonging to the player.
	DeleteByPlayer(ctx context.Context, playerID ulid.ULID) error

	// DeleteExpired removes tokens that expired before now and returns the
	// count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UndoTokenManager issues and consumes undo tokens.
type UndoTokenManager struct {
	repo  UndoTokenRepository
	clock clock.Clock
}

// NewUndoTokenManager creates an UndoTokenManager.
func NewUndoTokenManager(repo UndoTokenRepository, clk clock.Clock) *UndoTokenManager {
	return &UndoTokenManager{repo: repo, clock: clk}
}

// Issue mints an undo token recording the value to restore, replacing any
// outstanding token for the same player and function.
func (m *UndoTokenManager) Issue(ctx context.Context, playerID ulid.ULID, fn UndoFunction, previousValue string) (*UndoToken, error) {
	if !fn.Valid() {
		return nil, oops.Code("AUTH_UNKNOWN_UNDO_FUNCTION").Errorf("unknown undo function %q", fn)
	}

	now := m.clock.Now()
	token := &UndoToken{
		ID:            ulid.Make(),
		PlayerID:      playerID,
		Function:      fn,
		PreviousValue: previousValue,
		CreatedAt:     now,
		ExpiresAt:     now.Add(UndoTokenTTL),
	}
	if err := m.repo.Upsert(ctx, token); err != nil {
		return nil, oops.Code("AUTH_UNDO_CREATE_FAILED").
			With("player_id", playerID.String()).
			With("function", string(fn)).
			Wrap(err)
	}
	return token, nil
}

// Consume validates and deletes the token, returning it so the caller can
// apply the revert. Returns ErrNotFound for unknown tokens and
// ErrTokenExpired past the TTL; expired tokens are deleted on sight.
func (m *UndoTokenManager) Consume(ctx context.Context, id ulid.ULID) (*UndoToken, error) {
	token, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("AUTH_UNDO_LOOKUP_FAILED").Wrap(err)
	}

	if m.clock.Now().After(token.ExpiresAt) {
		if err := m.repo.Delete(ctx, id); err != nil {
			return nil, oops.Code("AUTH_UNDO_DELETE_FAILED").Wrap(err)
		}
		return nil, ErrTokenExpired
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return nil, oops.Code("AUTH_UNDO_DELETE_FAILED").Wrap(err)
	}
	return token, nil
}

// RevokeAll deletes every undo token the player holds.
func (m *UndoTokenManager) RevokeAll(ctx context.Context, playerID ulid.ULID) error {
	if err := m.repo.DeleteByPlayer(ctx, playerID); err != nil {
		return oops.Code("AUTH_UNDO_REVOKE_FAILED").With("player_id", playerID.String()).Wrap(err)
	}
	return nil
}
