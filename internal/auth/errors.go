// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors forming the fixed failure taxonomy. Call sites must map
// onto these rather than inventing new variants; the HTTP layer translates
// them to status codes.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationFailure covers bad credentials of any kind. It never
	// distinguishes an unknown account from a wrong password or secret.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrTokenExpired is returned when a persisted or signed token has
	// passed its time-to-live.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when a refresh token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidToken covers malformed tokens, bad signatures, and tokens
	// declaring an unexpected signing algorithm.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRelationalConflict is returned when a token's owning player does
	// not match the player named in the request.
	ErrRelationalConflict = errors.New("relational conflict")

	// ErrInternalConflict is returned when an operation's precondition is
	// violated by the entity's own state, e.g. an unconfirmed account
	// logging in or an already-confirmed account re-confirming.
	ErrInternalConflict = errors.New("internal conflict")

	// ErrReusedCredential is returned when a new password matches the
	// current password or any entry in the password history.
	ErrReusedCredential = errors.New("password was used recently")

	// ErrNoProposedChange is returned when confirming an email change for a
	// player with no proposed email pending.
	ErrNoProposedChange = errors.New("no proposed change pending")
)

// AccountLockedError reports that login is suspended until a point in time.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// UniquenessError reports which unique player fields are already taken.
type UniquenessError struct {
	UsernameTaken bool
	EmailTaken    bool
}

func (e *UniquenessError) Error() string {
	switch {
	case e.UsernameTaken && e.EmailTaken:
		return "username and email already in use"
	case e.UsernameTaken:
		return "username already in use"
	case e.EmailTaken:
		return "email already in use"
	default:
		return "uniqueness violation"
	}
}

// ValidationError reports the policy problems found in player-supplied
// fields (username, password, email).
type ValidationError struct {
	Field    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, strings.Join(e.Problems, "; "))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
