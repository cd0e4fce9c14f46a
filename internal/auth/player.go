// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// PasswordHistorySize is the number of retired password hashes retained for
// reuse checking.
const PasswordHistorySize = 4

// Username validation constraints.
const (
	MinUsernameLength = 6
	MaxUsernameLength = 16
)

// Password validation constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 32
)

var (
	usernameCharsRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex         = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	passwordLowerRegex  = regexp.MustCompile(`[a-z]`)
	passwordUpperRegex  = regexp.MustCompile(`[A-Z]`)
	passwordDigitRegex  = regexp.MustCompile(`[0-9]`)
	passwordSymbolRegex = regexp.MustCompile(`[!@#$%^&*+=?]`)
	passwordLegalRegex  = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*+=?]+$`)
)

// Player is the account identity record.
type Player struct {
	ID                ulid.ULID
	Username          string
	Email             string
	ProposedEmail     *string
	PasswordHash      string
	PasswordHistory   PasswordHistory
	Confirmed         bool
	FailedLogins      int
	LockedUntil       *time.Time
	SessionValidAfter time.Time
	LastLoginAt       *time.Time
	CreatedAt         time.Time
}

// IsLockedAt returns true if the player is locked out at the given instant.
func (p *Player) IsLockedAt(now time.Time) bool {
	return p.LockedUntil != nil && p.LockedUntil.After(now)
}

// PasswordHistory is a bounded ring of the most recently retired password
// hashes, newest first. Inserting into a full ring evicts the oldest entry.
type PasswordHistory [PasswordHistorySize]string

// Insert pushes a retired hash into slot 0, shifting the rest right and
// dropping the oldest.
func (h *PasswordHistory) Insert(hash string) {
	for i := PasswordHistorySize - 1; i > 0; i-- {
		h[i] = h[i-1]
	}
	h[0] = hash
}

// Hashes returns the occupied slots, newest first.
func (h PasswordHistory) Hashes() []string {
	hashes := make([]string, 0, PasswordHistorySize)
	for _, hash := range h {
		if hash != "" {
			hashes = append(hashes, hash)
		}
	}
	return hashes
}

// ValidateUsername checks a username against account policy.
// Usernames are 6-16 characters of letters, digits, and underscores, must
// not start with an underscore, and must not contain consecutive
// underscores. Case-insensitive uniqueness is the repository's concern.
func ValidateUsername(username string) error {
	var problems []string

	if l := len(username); l < MinUsernameLength || l > MaxUsernameLength {
		problems = append(problems, fmt.Sprintf(
			"username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if !usernameCharsRegex.MatchString(username) {
		problems = append(problems, "username may only include letters, numbers, and underscores")
	}
	if strings.HasPrefix(username, "_") {
		problems = append(problems, "username cannot start with an underscore")
	}
	if strings.Contains(username, "__") {
		problems = append(problems, "username may not contain consecutive underscores")
	}

	if len(problems) > 0 {
		return &ValidationError{Field: "username", Problems: problems}
	}
	return nil
}

// ValidatePassword checks a password against account policy.
// Passwords are 8-32 characters and must include a lowercase letter, an
// uppercase letter, a digit, and one of ! @ # $ % ^ & * + = ?, with no
// other characters permitted.
func ValidatePassword(password string) error {
	var problems []string

	if l := len(password); l < MinPasswordLength || l > MaxPasswordLength {
		problems = append(problems, fmt.Sprintf(
			"password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength))
	}
	if !passwordLowerRegex.MatchString(password) {
		problems = append(problems, "password must include a lowercase letter")
	}
	if !passwordUpperRegex.MatchString(password) {
		problems = append(problems, "password must include an uppercase letter")
	}
	if !passwordDigitRegex.MatchString(password) {
		problems = append(problems, "password must include a number")
	}
	if !passwordSymbolRegex.MatchString(password) {
		problems = append(problems, "password must include one of the following symbols: ! @ # $ % ^ & * + = ?")
	}
	if !passwordLegalRegex.MatchString(password) {
		problems = append(problems, "password includes illegal characters")
	}

	if len(problems) > 0 {
		return &ValidationError{Field: "password", Problems: problems}
	}
	return nil
}

// ValidateEmail checks that an email address is syntactically plausible.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) || len(email) > 254 {
		return &ValidationError{Field: "email", Problems: []string{"email address is not valid"}}
	}
	return nil
}

// PlayerRepository manages player persistence. All timestamps are supplied
// by the caller so that expiry logic stays on the injected clock.
type PlayerRepository interface {
	// Create stores a new player. Returns *UniquenessError if the username
	// or email is already taken case-insensitively.
	Create(ctx context.Context, player *Player) error

	// GetByID retrieves a player by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Player, error)

	// GetByUsername retrieves a player by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Player, error)

	// GetByEmail retrieves a player by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Player, error)

	// GetBySubject retrieves a player whose username OR email matches the
	// subject case-insensitively.
	GetBySubject(ctx context.Context, subject string) (*Player, error)

	// Confirm marks the player's account confirmed. Idempotent; returns
	// ErrNotFound if the player no longer exists.
	Confirm(ctx context.Context, id ulid.ULID) error

	// IncrementFailedLogins atomically bumps the failure counter and
	// returns the new count.
	IncrementFailedLogins(ctx context.Context, id ulid.ULID) (int, error)

	// SetLockout persists the lockout-end timestamp.
	SetLockout(ctx context.Context, id ulid.ULID, until time.Time) error

	// RecordSuccessfulLogin resets the failure counter, clears the
	// lockout, and records the login time — atomically, and only when no
	// lockout is active at now. Returns *AccountLockedError otherwise.
	RecordSuccessfulLogin(ctx context.Context, id ulid.ULID, now time.Time) error

	// UpdateCredentials stores a new password hash and history and bumps
	// session-valid-after to validAfter.
	UpdateCredentials(ctx context.Context, id ulid.ULID, passwordHash string, history PasswordHistory, validAfter time.Time) error

	// UpdateUsername changes the username and bumps session-valid-after.
	// Returns *UniquenessError if taken.
	UpdateUsername(ctx context.Context, id ulid.ULID, username string, validAfter time.Time) error

	// UpdateProposedEmail stores the unconfirmed candidate email.
	UpdateProposedEmail(ctx context.Context, id ulid.ULID, email string) error

	// PromoteProposedEmail swaps the proposed email into place, clears the
	// proposal, and bumps session-valid-after. Returns ErrNoProposedChange
	// if no proposal is pending.
	PromoteProposedEmail(ctx context.Context, id ulid.ULID, validAfter time.Time) error

	// Delete removes a player.
	Delete(ctx context.Context, id ulid.ULID) error
}
