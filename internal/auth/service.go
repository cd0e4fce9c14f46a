// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/clock"
)

// Service orchestrates the credential lifecycle: registration and
// confirmation, the login protocol, token refresh, credential changes with
// undo, and account deletion. It owns no semantics of its own; it sequences
// the store, managers, and codec and handles notification and counting.
type Service struct {
	store         *CredentialStore
	players       PlayerRepository
	refresh       *RefreshTokenManager
	confirmations *ConfirmationTokenManager
	undos         *UndoTokenManager
	codec         *TokenCodec
	counters      CounterRepository
	notifier      Notifier
	clock         clock.Clock
	metrics       *Metrics
	logger        *slog.Logger
}

// NewService creates a Service.
func NewService(
	store *CredentialStore,
	players PlayerRepository,
	refresh *RefreshTokenManager,
	confirmations *ConfirmationTokenManager,
	undos *UndoTokenManager,
	codec *TokenCodec,
	counters CounterRepository,
	notifier Notifier,
	clk clock.Clock,
	metrics *Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:         store,
		players:       players,
		refresh:       refresh,
		confirmations: confirmations,
		undos:         undos,
		codec:         codec,
		counters:      counters,
		notifier:      notifier,
		clock:         clk,
		metrics:       metrics,
		logger:        logger,
	}
}

// TokenPair is a freshly minted access token plus the refresh cookie that
// can replace it.
type TokenPair struct {
	AccessToken   string
	RefreshCookie string
}

// Register creates an unconfirmed account and mails a confirmation token.
// A confirmation that cannot be delivered fails the registration, since the
// account would be unusable.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Player, error) {
	player, err := s.store.Register(ctx, username, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.confirmations.Issue(ctx, player.ID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendConfirmation(ctx, player.Email, player.Username, token); err != nil {
		return nil, oops.Code("AUTH_CONFIRMATION_SEND_FAILED").With("player_id", player.ID.String()).Wrap(err)
	}

	s.bumpCounter(ctx, CounterAccountsRegistered)
	s.metrics.Registrations.Inc()
	s.logger.InfoContext(ctx, "account registered",
		"player_id", player.ID.String(), "username", player.Username)
	return player, nil
}

// ResendConfirmation reissues the player's confirmation token, replacing
// any outstanding one. Returns ErrInternalConflict if the account is
// already confirmed.
func (s *Service) ResendConfirmation(ctx context.Context, subject string) error {
	player, err := s.players.GetBySubject(ctx, subject)
	if err != nil {
		return err
	}
	if player.Confirmed {
		return ErrInternalConflict
	}

	token, err := s.confirmations.Issue(ctx, player.ID)
	if err != nil {
		return err
	}
	if err := s.notifier.SendConfirmation(ctx, player.Email, player.Username, token); err != nil {
		return oops.Code("AUTH_CONFIRMATION_SEND_FAILED").With("player_id", player.ID.String()).Wrap(err)
	}
	return nil
}

// Confirm consumes a confirmation token and marks the account confirmed.
// Returns ErrInternalConflict if the account is already confirmed,
// ErrRelationalConflict if the token belongs to another player.
func (s *Service) Confirm(ctx context.Context, playerID, tokenID ulid.ULID) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return err
	}
	if player.Confirmed {
		return ErrInternalConflict
	}

	if err := s.confirmations.Consume(ctx, tokenID, playerID); err != nil {
		return err
	}
	if err := s.players.Confirm(ctx, playerID); err != nil {
		return err
	}

	s.bumpCounter(ctx, CounterAccountsConfirmed)
	s.metrics.Confirmations.Inc()
	s.logger.InfoContext(ctx, "account confirmed", "player_id", playerID.String())
	return nil
}

// Reject consumes a confirmation token and deletes the unconfirmed account
// it was issued for, for recipients reporting a registration they never
// made. Confirmed accounts cannot be rejected. A rejection whose account
// and token are already gone succeeds, so the link can be clicked twice.
func (s *Service) Reject(ctx context.Context, playerID, tokenID ulid.ULID) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if player.Confirmed {
		return ErrInternalConflict
	}

	if err := s.confirmations.Consume(ctx, tokenID, playerID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := s.players.Delete(ctx, playerID); err != nil {
		return err
	}

	s.bumpCounter(ctx, CounterAccountsRejected)
	s.logger.InfoContext(ctx, "account rejected", "player_id", playerID.String())
	return nil
}

// Login authenticates a player by username or email plus password and, on
// success, returns a token pair.
//
// The checks run in a fixed order: account lookup, confirmation status,
// lockout, password, then success bookkeeping. An unknown account and a
// wrong password are indistinguishable to the caller, and both feed the
// global failed-login counter; an unconfirmed account is reported before
// the password is examined so it can never accrue failures or lock, and
// an active lockout is reported before the password is examined so
// attempts during a lockout never touch the failure counter.
func (s *Service) Login(ctx context.Context, subject, password string) (*Player, TokenPair, error) {
	player, err := s.players.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.bumpCounter(ctx, CounterFailedLogins)
			s.metrics.FailedLogins.Inc()
			return nil, TokenPair{}, ErrAuthenticationFailure
		}
		return nil, TokenPair{}, err
	}

	if !player.Confirmed {
		return nil, TokenPair{}, ErrInternalConflict
	}

	now := s.clock.Now()
	if player.IsLockedAt(now) {
		return nil, TokenPair{}, &AccountLockedError{Until: *player.LockedUntil}
	}

	ok, err := s.store.VerifyPassword(player, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !ok {
		s.handleFailedLogin(ctx, player)
		return nil, TokenPair{}, ErrAuthenticationFailure
	}

	if err := s.store.RecordSuccessfulLogin(ctx, player.ID); err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issueTokens(ctx, player.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.bumpCounter(ctx, CounterLogins)
	s.metrics.Logins.Inc()
	s.logger.InfoContext(ctx, "login", "player_id", player.ID.String())
	return player, pair, nil
}

// Refresh redeems a refresh cookie for a new token pair, rotating the
// refresh token. Tokens issued before the player's session-valid-after
// cutoff are refused with ErrTokenRevoked; they are consumed regardless.
func (s *Service) Refresh(ctx context.Context, cookie string) (TokenPair, error) {
	token, err := s.refresh.Redeem(ctx, cookie)
	if err != nil {
		return TokenPair{}, err
	}

	player, err := s.players.GetByID(ctx, token.PlayerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrAuthenticationFailure
		}
		return TokenPair{}, err
	}
	if token.CreatedAt.Before(player.SessionValidAfter) {
		return TokenPair{}, ErrTokenRevoked
	}

	pair, err := s.issueTokens(ctx, player.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.metrics.Refreshes.Inc()
	return pair, nil
}

// Authenticate verifies an access token and returns the player it names.
// Tokens issued before the player's session-valid-after cutoff are refused
// with ErrTokenRevoked.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Player, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, err
	}

	player, err := s.players.GetByID(ctx, claims.PlayerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if claims.IssuedAt.Before(player.SessionValidAfter) {
		return nil, ErrTokenRevoked
	}
	return player, nil
}

// Logout consumes the refresh cookie so it cannot mint further access
// tokens. A cookie that is already dead is treated as success.
func (s *Service) Logout(ctx context.Context, cookie string) error {
	_, err := s.refresh.Redeem(ctx, cookie)
	if err != nil && !errors.Is(err, ErrAuthenticationFailure) && !errors.Is(err, ErrTokenExpired) {
		return err
	}
	return nil
}

// LogoutAll revokes every refresh token the player holds. Outstanding
// access tokens live out their TTL unless session-valid-after is bumped by
// a credential change.
func (s *Service) LogoutAll(ctx context.Context, playerID ulid.ULID) error {
	return s.refresh.RevokeAll(ctx, playerID)
}

// ChangePassword rotates the player's password after re-verifying the
// current one. Existing sessions and refresh tokens are revoked, and an
// undo token is mailed to the address of record.
func (s *Service) ChangePassword(ctx context.Context, playerID ulid.ULID, currentPassword, newPassword string) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return err
	}

	ok, err := s.store.VerifyPassword(player, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationFailure
	}

	previousHash, err := s.store.UpdatePassword(ctx, player, newPassword)
	if err != nil {
		return err
	}
	if err := s.refresh.RevokeAll(ctx, playerID); err != nil {
		return err
	}

	s.sendUndoNotice(ctx, player, UndoPassword, previousHash, player.Email)
	s.logger.InfoContext(ctx, "password changed", "player_id", playerID.String())
	return nil
}

// ChangeUsername renames the account after re-verifying the password.
// Existing sessions and refresh tokens are revoked.
func (s *Service) ChangeUsername(ctx context.Context, playerID ulid.ULID, password, username string) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return err
	}

	ok, err := s.store.VerifyPassword(player, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationFailure
	}

	if err := s.store.UpdateUsername(ctx, playerID, username); err != nil {
		return err
	}
	if err := s.refresh.RevokeAll(ctx, playerID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "username changed", "player_id", playerID.String())
	return nil
}

// RequestEmailChange stores a candidate email and mails a confirmation
// token to it. The address of record is untouched until the candidate is
// confirmed.
func (s *Service) RequestEmailChange(ctx context.Context, playerID ulid.ULID, password, newEmail string) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return err
	}

	ok, err := s.store.VerifyPassword(player, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationFailure
	}

	if err := s.store.ProposeEmail(ctx, playerID, newEmail); err != nil {
		return err
	}

	token, err := s.confirmations.Issue(ctx, playerID)
	if err != nil {
		return err
	}
	if err := s.notifier.SendConfirmation(ctx, newEmail, player.Username, token); err != nil {
		return oops.Code("AUTH_CONFIRMATION_SEND_FAILED").With("player_id", playerID.String()).Wrap(err)
	}
	return nil
}

// ConfirmEmailChange consumes a confirmation token and promotes the
// candidate email. The previous address receives a change notice with an
// undo token; sessions and refresh tokens are revoked.
func (s *Service) ConfirmEmailChange(ctx context.Context, playerID, tokenID ulid.ULID) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return err
	}

	if err := s.confirmations.Consume(ctx, tokenID, playerID); err != nil {
		return err
	}

	previousEmail := player.Email
	if err := s.store.PromoteProposedEmail(ctx, playerID); err != nil {
		return err
	}
	if err := s.refresh.RevokeAll(ctx, playerID); err != nil {
		return err
	}

	s.sendUndoNotice(ctx, player, UndoEmail, previousEmail, previousEmail)
	s.logger.InfoContext(ctx, "email changed", "player_id", playerID.String())
	return nil
}

// Undo consumes an undo token and reverts the change it recorded. All
// sessions and refresh tokens are revoked, since whoever made the change
// may still hold them.
func (s *Service) Undo(ctx context.Context, tokenID ulid.ULID) error {
	token, err := s.undos.Consume(ctx, tokenID)
	if err != nil {
		return err
	}

	player, err := s.players.GetByID(ctx, token.PlayerID)
	if err != nil {
		return err
	}

	switch token.Function {
	case UndoPassword:
		err = s.store.RestorePasswordHash(ctx, player, token.PreviousValue)
	case UndoEmail:
		err = s.store.RestoreEmail(ctx, player.ID, token.PreviousValue)
	default:
		return oops.Code("AUTH_UNKNOWN_UNDO_FUNCTION").Errorf("unknown undo function %q", token.Function)
	}
	if err != nil {
		return err
	}

	if err := s.refresh.RevokeAll(ctx, player.ID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "credential change reverted",
		"player_id", player.ID.String(), "function", string(token.Function))
	return nil
}

// DeleteAccount removes the player and every token they hold, after
// re-verifying the password.
func (s *Service) DeleteAccount(ctx context.Context, playerID ulid.ULID, password string) error {
	player, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return err
	}

	ok, err := s.store.VerifyPassword(player, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationFailure
	}

	if err := s.refresh.RevokeAll(ctx, playerID); err != nil {
		return err
	}
	if err := s.undos.RevokeAll(ctx, playerID); err != nil {
		return err
	}
	if err := s.players.Delete(ctx, playerID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "account deleted", "player_id", playerID.String())
	return nil
}

// Ping bumps the lifetime ping counter and returns the new value.
func (s *Service) Ping(ctx context.Context) (int64, error) {
	return s.counters.Increment(ctx, CounterPings)
}

func (s *Service) issueTokens(ctx context.Context, playerID ulid.ULID) (TokenPair, error) {
	access, err := s.codec.Encode(playerID)
	if err != nil {
		return TokenPair{}, err
	}
	cookie, err := s.refresh.Issue(ctx, playerID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshCookie: cookie}, nil
}

// handleFailedLogin records the failure and applies lockout bookkeeping.
// Counter and notification faults are logged, never surfaced: the caller
// already has its answer.
func (s *Service) handleFailedLogin(ctx context.Context, player *Player) {
	failures, lockedUntil, err := s.store.RecordFailedLogin(ctx, player.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "recording failed login",
			"player_id", player.ID.String(), "error", err)
		return
	}

	s.bumpCounter(ctx, CounterFailedLogins)
	s.metrics.FailedLogins.Inc()

	if lockedUntil == nil {
		return
	}

	s.metrics.Lockouts.Inc()
	s.logger.WarnContext(ctx, "account locked",
		"player_id", player.ID.String(), "failures", failures, "until", *lockedUntil)
	if err := s.notifier.SendLockoutNotice(ctx, player.Email, player.Username, *lockedUntil); err != nil {
		s.logger.ErrorContext(ctx, "sending lockout notice",
			"player_id", player.ID.String(), "error", err)
	}
}

// sendUndoNotice arms an undo token and mails the change notice. Failures
// are logged; the change itself already landed.
func (s *Service) sendUndoNotice(ctx context.Context, player *Player, fn UndoFunction, previousValue, email string) {
	token, err := s.undos.Issue(ctx, player.ID, fn, previousValue)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuing undo token",
			"player_id", player.ID.String(), "function", string(fn), "error", err)
		return
	}
	if err := s.notifier.SendChangeNotice(ctx, email, player.Username, token); err != nil {
		s.logger.ErrorContext(ctx, "sending change notice",
			"player_id", player.ID.String(), "function", string(fn), "error", err)
	}
}

func (s *Service) bumpCounter(ctx context.Context, id CounterID) {
	if _, err := s.counters.Increment(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "incrementing counter", "counter", string(id), "error", err)
	}
}
