// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

const playerColumns = `id, username, email, proposed_email, password_hash,
       password_history, confirmed, failed_logins, locked_until,
       session_valid_after, last_login_at, created_at`

// PlayerRepository implements auth.PlayerRepository using PostgreSQL.
type PlayerRepository struct {
	pool pool
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(pool pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// Create stores a new player. Unique-index violations map to
// *auth.UniquenessError; the caller's pre-check handles the common case,
// this is the backstop under races.
func (r *PlayerRepository) Create(ctx context.Context, player *auth.Player) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (
			id, username, email, proposed_email, password_hash,
			password_history, confirmed, failed_logins, locked_until,
			session_valid_after, last_login_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		player.ID.String(),
		player.Username,
		player.Email,
		player.ProposedEmail,
		player.PasswordHash,
		player.PasswordHistory.Hashes(),
		player.Confirmed,
		player.FailedLogins,
		player.LockedUntil,
		player.SessionValidAfter,
		player.LastLoginAt,
		player.CreatedAt,
	)
	if err != nil {
		if uniqueness := uniquenessFromError(err); uniqueness != nil {
			return uniqueness
		}
		return oops.Code("PLAYER_CREATE_FAILED").
			With("operation", "insert player").
			With("username", player.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a player by ID.
func (r *PlayerRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id.String())

	player, err := r.scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_BY_ID_FAILED").
			With("operation", "get player by id").
			With("id", id.String()).
			Wrap(err)
	}
	return player, nil
}

// GetByUsername retrieves a player by username (case-insensitive).
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE LOWER(username) = LOWER($1)`, username)

	player, err := r.scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_BY_USERNAME_FAILED").
			With("operation", "get player by username").
			With("username", username).
			Wrap(err)
	}
	return player, nil
}

// GetByEmail retrieves a player by email (case-insensitive).
func (r *PlayerRepository) GetByEmail(ctx context.Context, email string) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE LOWER(email) = LOWER($1)`, email)

	player, err := r.scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_BY_EMAIL_FAILED").
			With("operation", "get player by email").
			With("email", email).
			Wrap(err)
	}
	return player, nil
}

// GetBySubject retrieves a player whose username or email matches the
// subject (case-insensitive).
func (r *PlayerRepository) GetBySubject(ctx context.Context, subject string) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players
		 WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)`, subject)

	player, err := r.scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("subject", subject).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_BY_SUBJECT_FAILED").
			With("operation", "get player by subject").
			With("subject", subject).
			Wrap(err)
	}
	return player, nil
}

// Confirm marks the player confirmed.
func (r *PlayerRepository) Confirm(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players SET confirmed = TRUE WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("PLAYER_CONFIRM_FAILED").
			With("operation", "confirm player").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// IncrementFailedLogins atomically bumps the failure counter and returns
// the new count.
func (r *PlayerRepository) IncrementFailedLogins(ctx context.Context, id ulid.ULID) (int, error) {
	var failures int
	err := r.pool.QueryRow(ctx, `
		UPDATE players SET failed_logins = failed_logins + 1
		WHERE id = $1
		RETURNING failed_logins
	`, id.String()).Scan(&failures)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("PLAYER_INCREMENT_FAILURES_FAILED").
			With("operation", "increment failed logins").
			With("id", id.String()).
			Wrap(err)
	}
	return failures, nil
}

// SetLockout persists the lockout-end timestamp.
func (r *PlayerRepository) SetLockout(ctx context.Context, id ulid.ULID, until time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players SET locked_until = $2 WHERE id = $1
	`, id.String(), until)
	if err != nil {
		return oops.Code("PLAYER_SET_LOCKOUT_FAILED").
			With("operation", "set lockout").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RecordSuccessfulLogin resets failure bookkeeping and stamps the login
// time. The update is conditional on no lockout being active at now, so a
// success that races a concurrent lockout loses.
func (r *PlayerRepository) RecordSuccessfulLogin(ctx context.Context, id ulid.ULID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players
		SET failed_logins = 0, locked_until = NULL, last_login_at = $2
		WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $2)
	`, id.String(), now)
	if err != nil {
		return oops.Code("PLAYER_RECORD_LOGIN_FAILED").
			With("operation", "record successful login").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// Either the player vanished or a lockout landed concurrently.
		player, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if player.LockedUntil != nil {
			return &auth.AccountLockedError{Until: *player.LockedUntil}
		}
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateCredentials stores a new password hash and history and bumps
// session-valid-after.
func (r *PlayerRepository) UpdateCredentials(ctx context.Context, id ulid.ULID, passwordHash string, history auth.PasswordHistory, validAfter time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players
		SET password_hash = $2, password_history = $3, session_valid_after = $4
		WHERE id = $1
	`, id.String(), passwordHash, history.Hashes(), validAfter)
	if err != nil {
		return oops.Code("PLAYER_UPDATE_CREDENTIALS_FAILED").
			With("operation", "update credentials").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateUsername changes the username and bumps session-valid-after.
func (r *PlayerRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string, validAfter time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players SET username = $2, session_valid_after = $3 WHERE id = $1
	`, id.String(), username, validAfter)
	if err != nil {
		if uniqueness := uniquenessFromError(err); uniqueness != nil {
			return uniqueness
		}
		return oops.Code("PLAYER_UPDATE_USERNAME_FAILED").
			With("operation", "update username").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateProposedEmail stores the unconfirmed candidate email.
func (r *PlayerRepository) UpdateProposedEmail(ctx context.Context, id ulid.ULID, email string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players SET proposed_email = $2 WHERE id = $1
	`, id.String(), email)
	if err != nil {
		return oops.Code("PLAYER_UPDATE_PROPOSED_EMAIL_FAILED").
			With("operation", "update proposed email").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// PromoteProposedEmail swaps the proposed email into place and bumps
// session-valid-after. Returns auth.ErrNoProposedChange if nothing is
// pending.
func (r *PlayerRepository) PromoteProposedEmail(ctx context.Context, id ulid.ULID, validAfter time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players
		SET email = proposed_email, proposed_email = NULL, session_valid_after = $2
		WHERE id = $1 AND proposed_email IS NOT NULL
	`, id.String(), validAfter)
	if err != nil {
		if uniqueness := uniquenessFromError(err); uniqueness != nil {
			return uniqueness
		}
		return oops.Code("PLAYER_PROMOTE_EMAIL_FAILED").
			With("operation", "promote proposed email").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// Distinguish a missing player from a missing proposal.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return auth.ErrNoProposedChange
	}
	return nil
}

// Delete removes a player.
func (r *PlayerRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM players WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("PLAYER_DELETE_FAILED").
			With("operation", "delete player").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanPlayer scans a single row into a Player.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *PlayerRepository) scanPlayer(row pgx.Row) (*auth.Player, error) {
	var (
		idStr             string
		username          string
		email             string
		proposedEmail     *string
		passwordHash      string
		passwordHistory   []string
		confirmed         bool
		failedLogins      int
		lockedUntil       *time.Time
		sessionValidAfter time.Time
		lastLoginAt       *time.Time
		createdAt         time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&email,
		&proposedEmail,
		&passwordHash,
		&passwordHistory,
		&confirmed,
		&failedLogins,
		&lockedUntil,
		&sessionValidAfter,
		&lastLoginAt,
		&createdAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PLAYER_SCAN_FAILED").
			With("operation", "scan player").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PLAYER_INVALID_ID").
			With("operation", "parse player id").
			With("id", idStr).
			Wrap(err)
	}

	var history auth.PasswordHistory
	for i, hash := range passwordHistory {
		if i >= auth.PasswordHistorySize {
			break
		}
		history[i] = hash
	}

	return &auth.Player{
		ID:                id,
		Username:          username,
		Email:             email,
		ProposedEmail:     proposedEmail,
		PasswordHash:      passwordHash,
		PasswordHistory:   history,
		Confirmed:         confirmed,
		FailedLogins:      failedLogins,
		LockedUntil:       lockedUntil,
		SessionValidAfter: sessionValidAfter,
		LastLoginAt:       lastLoginAt,
		CreatedAt:         createdAt,
	}, nil
}

// uniquenessFromError maps a unique-index violation to the field it names.
func uniquenessFromError(err error) *auth.UniquenessError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return &auth.UniquenessError{UsernameTaken: true}
	case strings.Contains(pgErr.ConstraintName, "email"):
		return &auth.UniquenessError{EmailTaken: true}
	default:
		return &auth.UniquenessError{}
	}
}

// Compile-time interface check.
var _ auth.PlayerRepository = (*PlayerRepository)(nil)
