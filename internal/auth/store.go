// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/clock"
)

// CredentialStore implements account-credential semantics over the player
// repository: registration, password verification and rotation with reuse
// checking, and the failed-login bookkeeping behind the lockout policy.
type CredentialStore struct {
	players PlayerRepository
	hasher  SecretHasher
	clock   clock.Clock
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(players PlayerRepository, hasher SecretHasher, clk clock.Clock) *CredentialStore {
	return &CredentialStore{players: players, hasher: hasher, clock: clk}
}

// Register validates the supplied fields, hashes the password, and creates
// an unconfirmed player. Returns *ValidationError for policy violations and
// *UniquenessError when the username or email is taken.
func (s *CredentialStore) Register(ctx context.Context, username, email, password string) (*Player, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	// Pre-check both fields so the caller learns every conflict at once.
	// The repository's unique indexes remain the backstop under races.
	uniqueness, err := s.checkUniqueness(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if uniqueness != nil {
		return nil, uniqueness
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	now := s.clock.Now()
	player := &Player{
		ID:                ulid.Make(),
		Username:          username,
		Email:             email,
		PasswordHash:      passwordHash,
		SessionValidAfter: now,
		CreatedAt:         now,
	}
	if err := s.players.Create(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// VerifyPassword checks the password against the player's stored hash.
func (s *CredentialStore) VerifyPassword(player *Player, password string) (bool, error) {
	ok, err := s.hasher.Verify(password, player.PasswordHash)
	if err != nil {
		return false, oops.Code("AUTH_VERIFY_FAILED").With("player_id", player.ID.String()).Wrap(err)
	}
	return ok, nil
}

// RecordFailedLogin bumps the player's failure counter and, when the count
// reaches the lockout threshold, persists the escalated lockout. Returns
// the new count and the lockout end, if any. The counter increment is
// atomic; concurrent failures each land.
func (s *CredentialStore) RecordFailedLogin(ctx context.Context, playerID ulid.ULID) (int, *time.Time, error) {
	failures, err := s.players.IncrementFailedLogins(ctx, playerID)
	if err != nil {
		return 0, nil, err
	}

	duration, locked := FailuresToLockout(failures)
	if !locked {
		return failures, nil, nil
	}

	until := s.clock.Now().Add(duration)
	if err := s.players.SetLockout(ctx, playerID, until); err != nil {
		return failures, nil, err
	}
	return failures, &until, nil
}

// RecordSuccessfulLogin resets failure bookkeeping and stamps the login
// time, refusing if a lockout took effect concurrently.
func (s *CredentialStore) RecordSuccessfulLogin(ctx context.Context, playerID ulid.ULID) error {
	return s.players.RecordSuccessfulLogin(ctx, playerID, s.clock.Now())
}

// UpdatePassword validates and installs a new password, rotating the old
// hash into the history ring and bumping session-valid-after so existing
// sessions die. The new password must differ from the current password and
// from every history entry; otherwise ErrReusedCredential.
//
// Returns the replaced hash so the caller can arm an undo token with it.
func (s *CredentialStore) UpdatePassword(ctx context.Context, player *Player, newPassword string) (string, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return "", err
	}

	candidates := append([]string{player.PasswordHash}, player.PasswordHistory.Hashes()...)
	for _, hash := range candidates {
		match, err := s.hasher.Verify(newPassword, hash)
		if err != nil {
			return "", oops.Code("AUTH_VERIFY_FAILED").With("player_id", player.ID.String()).Wrap(err)
		}
		if match {
			return "", ErrReusedCredential
		}
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	previousHash := player.PasswordHash
	history := player.PasswordHistory
	history.Insert(previousHash)

	if err := s.players.UpdateCredentials(ctx, player.ID, newHash, history, s.clock.Now()); err != nil {
		return "", err
	}

	player.PasswordHash = newHash
	player.PasswordHistory = history
	return previousHash, nil
}

// RestorePasswordHash reinstates a previous password hash, as when an undo
// token is consumed. The history ring is left alone and session-valid-after
// is bumped so sessions opened under the reverted password die too.
func (s *CredentialStore) RestorePasswordHash(ctx context.Context, player *Player, hash string) error {
	return s.players.UpdateCredentials(ctx, player.ID, hash, player.PasswordHistory, s.clock.Now())
}

// UpdateUsername validates and installs a new username, bumping
// session-valid-after.
func (s *CredentialStore) UpdateUsername(ctx context.Context, playerID ulid.ULID, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}

	if existing, err := s.players.GetByUsername(ctx, username); err == nil && existing.ID != playerID {
		return &UniquenessError{UsernameTaken: true}
	} else if err != nil && !isNotFound(err) {
		return err
	}

	return s.players.UpdateUsername(ctx, playerID, username, s.clock.Now())
}

// ProposeEmail validates and stores a candidate email. The change does not
// take effect until confirmed.
func (s *CredentialStore) ProposeEmail(ctx context.Context, playerID ulid.ULID, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}

	if existing, err := s.players.GetByEmail(ctx, email); err == nil && existing.ID != playerID {
		return &UniquenessError{EmailTaken: true}
	} else if err != nil && !isNotFound(err) {
		return err
	}

	return s.players.UpdateProposedEmail(ctx, playerID, email)
}

// PromoteProposedEmail makes the pending candidate email current and bumps
// session-valid-after. Returns ErrNoProposedChange if nothing is pending.
func (s *CredentialStore) PromoteProposedEmail(ctx context.Context, playerID ulid.ULID) error {
	return s.players.PromoteProposedEmail(ctx, playerID, s.clock.Now())
}

// RestoreEmail reinstates a previous email address, as when an undo token
// is consumed, clearing any pending proposal and bumping
// session-valid-after.
func (s *CredentialStore) RestoreEmail(ctx context.Context, playerID ulid.ULID, email string) error {
	if err := s.players.UpdateProposedEmail(ctx, playerID, email); err != nil {
		return err
	}
	return s.players.PromoteProposedEmail(ctx, playerID, s.clock.Now())
}

func (s *CredentialStore) checkUniqueness(ctx context.Context, username, email string) (*UniquenessError, error) {
	uniqueness := &UniquenessError{}

	if _, err := s.players.GetByUsername(ctx, username); err == nil {
		uniqueness.UsernameTaken = true
	} else if !isNotFound(err) {
		return nil, err
	}

	if _, err := s.players.GetByEmail(ctx, email); err == nil {
		uniqueness.EmailTaken = true
	} else if !isNotFound(err) {
		return nil, err
	}

	if uniqueness.UsernameTaken || uniqueness.EmailTaken {
		return uniqueness, nil
	}
	return nil, nil
}
