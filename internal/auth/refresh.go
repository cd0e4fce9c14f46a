// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/clock"
)

// Refresh-token policy constants.
const (
	// RefreshTokenTTL is the lifetime of a refresh token.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// MaxLiveRefreshTokens caps concurrent refresh tokens per player.
	// Issuing beyond the cap evicts the oldest.
	MaxLiveRefreshTokens = 3

	refreshSecretLen = 32
)

// RefreshToken is a long-lived single-use credential for minting new access
// tokens. Only a hash of the secret is persisted; the cleartext secret
// exists solely inside the cookie handed to the client.
type RefreshToken struct {
	ID         ulid.ULID
	PlayerID   ulid.ULID
	SecretHash string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// FormatRefreshCookie builds the client-side cookie value "{id}:{secret}".
func FormatRefreshCookie(id ulid.ULID, secret string) string {
	return id.String() + ":" + secret
}

// ParseRefreshCookie splits a cookie value into token ID and secret.
// Returns ErrInvalidToken if the value is not "{id}:{secret}".
func ParseRefreshCookie(cookie string) (ulid.ULID, string, error) {
	idPart, secret, ok := strings.Cut(cookie, ":")
	if !ok || secret == "" {
		return ulid.ULID{}, "", ErrInvalidToken
	}
	id, err := ulid.Parse(idPart)
	if err != nil {
		return ulid.ULID{}, "", ErrInvalidToken
	}
	return id, secret, nil
}

// RefreshTokenRepository manages refresh-token persistence.
type RefreshTokenRepository interface {
	// Create stores a token and evicts the player's oldest tokens beyond
	// maxLive, atomically.
	Create(ctx context.Context, token *RefreshToken, maxLive int) error

	// Consume deletes the token and returns it. Returns ErrNotFound if the
	// token does not exist; a concurrent consumer loses the race the same
	// way.
	Consume(ctx context.Context, id ulid.ULID) (*RefreshToken, error)

	// DeleteByPlayer removes every token belonging to the player.
	DeleteByPlayer(ctx context.Context, playerID ulid.ULID) error

	// DeleteExpired removes tokens that expired before now and returns the
	// count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenManager issues and redeems refresh tokens.
type RefreshTokenManager struct {
	repo   RefreshTokenRepository
	hasher SecretHasher
	clock  clock.Clock
}

// NewRefreshTokenManager creates a RefreshTokenManager.
func NewRefreshTokenManager(repo RefreshTokenRepository, hasher SecretHasher, clk clock.Clock) *RefreshTokenManager {
	return &RefreshTokenManager{repo: repo, hasher: hasher, clock: clk}
}

// Issue mints a refresh token for the player and returns the cookie value.
// If the player already holds the maximum number of live tokens, the oldest
// is evicted.
func (m *RefreshTokenManager) Issue(ctx context.Context, playerID ulid.ULID) (string, error) {
	raw := make([]byte, refreshSecretLen)
	if _, err := rand.Read(raw); err != nil {
		return "", oops.Code("AUTH_SECRET_FAILED").Wrap(err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	secretHash, err := m.hasher.Hash(secret)
	if err != nil {
		return "", err
	}

	now := m.clock.Now()
	token := &RefreshToken{
		ID:         ulid.Make(),
		PlayerID:   playerID,
		SecretHash: secretHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(RefreshTokenTTL),
	}

	if err := m.repo.Create(ctx, token, MaxLiveRefreshTokens); err != nil {
		return "", oops.Code("AUTH_REFRESH_CREATE_FAILED").With("player_id", playerID.String()).Wrap(err)
	}
	return FormatRefreshCookie(token.ID, secret), nil
}

// Redeem consumes the refresh token named by the cookie. The token is
// deleted whether or not redemption succeeds past the lookup, so a token
// that fails its secret or expiry check cannot be retried.
//
// Returns ErrAuthenticationFailure for unknown IDs and secret mismatches,
// ErrTokenExpired past the TTL. Session revocation is the caller's check,
// via the returned token's CreatedAt.
func (m *RefreshTokenManager) Redeem(ctx context.Context, cookie string) (*RefreshToken, error) {
	id, secret, err := ParseRefreshCookie(cookie)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}

	token, err := m.repo.Consume(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAuthenticationFailure
		}
		return nil, oops.Code("AUTH_REFRESH_CONSUME_FAILED").Wrap(err)
	}

	ok, err := m.hasher.Verify(secret, token.SecretHash)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_VERIFY_FAILED").Wrap(err)
	}
	if !ok {
		return nil, ErrAuthenticationFailure
	}

	if m.clock.Now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return token, nil
}

// RevokeAll deletes every refresh token the player holds.
func (m *RefreshTokenManager) RevokeAll(ctx context.Context, playerID ulid.ULID) error {
	if err := m.repo.DeleteByPlayer(ctx, playerID); err != nil {
		return oops.Code("AUTH_REFRESH_REVOKE_FAILED").With("player_id", playerID.String()).Wrap(err)
	}
	return nil
}
