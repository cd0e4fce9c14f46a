// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/clock"
)

// AccessTokenTTL is the lifetime of a signed access token.
const AccessTokenTTL = 15 * time.Minute

// AccessClaims is the decoded content of a valid access token.
type AccessClaims struct {
	PlayerID ulid.ULID
	IssuedAt time.Time
	Expiry   time.Time
}

// TokenCodec signs and verifies access tokens. Tokens are HMAC-SHA-256
// JWTs carrying the player ID as subject plus issued-at and expiry claims.
type TokenCodec struct {
	key   []byte
	clock clock.Clock
}

// NewTokenCodec creates a TokenCodec signing with the given key.
func NewTokenCodec(key []byte, clk clock.Clock) (*TokenCodec, error) {
	if len(key) == 0 {
		return nil, oops.Code("AUTH_EMPTY_SIGNING_KEY").Errorf("signing key cannot be empty")
	}
	return &TokenCodec{key: key, clock: clk}, nil
}

// Encode signs an access token for the player, valid for AccessTokenTTL
// from now.
func (c *TokenCodec) Encode(playerID ulid.ULID) (string, error) {
	now := c.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Decode verifies a token's signature and expiry and returns its claims.
// Expired tokens yield ErrTokenExpired; anything else wrong with the token,
// including a signing algorithm other than HS256, yields ErrInvalidToken.
func (c *TokenCodec) Decode(tokenString string) (AccessClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, ErrInvalidToken
	}

	playerID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return AccessClaims{}, ErrInvalidToken
	}

	return AccessClaims{
		PlayerID: playerID,
		IssuedAt: claims.IssuedAt.Time,
		Expiry:   claims.ExpiresAt.Time,
	}, nil
}
