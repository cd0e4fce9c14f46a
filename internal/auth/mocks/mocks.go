// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package mocks provides testify mocks for the auth package's interfaces.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/cardroom/cardroom/internal/auth"
)

// MockPlayerRepository is a mock auth.PlayerRepository.
type MockPlayerRepository struct {
	mock.Mock
}

// NewMockPlayerRepository creates a MockPlayerRepository whose expectations
// are asserted on test cleanup.
func NewMockPlayerRepository(t *testing.T) *MockPlayerRepository {
	t.Helper()
	m := &MockPlayerRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPlayerRepository) Create(ctx context.Context, player *auth.Player) error {
	args := m.Called(ctx, player)
	return args.Error(0)
}

func (m *MockPlayerRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Player, error) {
	args := m.Called(ctx, id)
	return playerOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPlayerRepository) GetByUsername(ctx context.Context, username string) (*auth.Player, error) {
	args := m.Called(ctx, username)
	return playerOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPlayerRepository) GetByEmail(ctx context.Context, email string) (*auth.Player, error) {
	args := m.Called(ctx, email)
	return playerOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPlayerRepository) GetBySubject(ctx context.Context, subject string) (*auth.Player, error) {
	args := m.Called(ctx, subject)
	return playerOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPlayerRepository) Confirm(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPlayerRepository) IncrementFailedLogins(ctx context.Context, id ulid.ULID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockPlayerRepository) SetLockout(ctx context.Context, id ulid.ULID, until time.Time) error {
	args := m.Called(ctx, id, until)
	return args.Error(0)
}

func (m *MockPlayerRepository) RecordSuccessfulLogin(ctx context.Context, id ulid.ULID, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *MockPlayerRepository) UpdateCredentials(ctx context.Context, id ulid.ULID, passwordHash string, history auth.PasswordHistory, validAfter time.Time) error {
	args := m.Called(ctx, id, passwordHash, history, validAfter)
	return args.Error(0)
}

func (m *MockPlayerRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string, validAfter time.Time) error {
	args := m.Called(ctx, id, username, validAfter)
	return args.Error(0)
}

func (m *MockPlayerRepository) UpdateProposedEmail(ctx context.Context, id ulid.ULID, email string) error {
	args := m.Called(ctx, id, email)
	return args.Error(0)
}

func (m *MockPlayerRepository) PromoteProposedEmail(ctx context.Context, id ulid.ULID, validAfter time.Time) error {
	args := m.Called(ctx, id, validAfter)
	return args.Error(0)
}

func (m *MockPlayerRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRefreshTokenRepository is a mock auth.RefreshTokenRepository.
type MockRefreshTokenRepository struct {
	mock.Mock
}

// NewMockRefreshTokenRepository creates a MockRefreshTokenRepository whose
// expectations are asserted on test cleanup.
func NewMockRefreshTokenRepository(t *testing.T) *MockRefreshTokenRepository {
	t.Helper()
	m := &MockRefreshTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken, maxLive int) error {
	args := m.Called(ctx, token, maxLive)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) Consume(ctx context.Context, id ulid.ULID) (*auth.RefreshToken, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*auth.RefreshToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteByPlayer(ctx context.Context, playerID ulid.ULID) error {
	args := m.Called(ctx, playerID)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockConfirmationTokenRepository is a mock auth.ConfirmationTokenRepository.
type MockConfirmationTokenRepository struct {
	mock.Mock
}

// NewMockConfirmationTokenRepository creates a MockConfirmationTokenRepository
// whose expectations are asserted on test cleanup.
func NewMockConfirmationTokenRepository(t *testing.T) *MockConfirmationTokenRepository {
	t.Helper()
	m := &MockConfirmationTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockConfirmationTokenRepository) Upsert(ctx context.Context, token *auth.ConfirmationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockConfirmationTokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.ConfirmationToken, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*auth.ConfirmationToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConfirmationTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConfirmationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockUndoTokenRepository is a mock auth.UndoTokenRepository.
type MockUndoTokenRepository struct {
	mock.Mock
}

// NewMockUndoTokenRepository creates a MockUndoTokenRepository whose
// expectations are asserted on test cleanup.
func NewMockUndoTokenRepository(t *testing.T) *MockUndoTokenRepository {
	t.Helper()
	m := &MockUndoTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUndoTokenRepository) Upsert(ctx context.Context, token *auth.UndoToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockUndoTokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.UndoToken, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*auth.UndoToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUndoTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUndoTokenRepository) DeleteByPlayer(ctx context.Context, playerID ulid.ULID) error {
	args := m.Called(ctx, playerID)
	return args.Error(0)
}

func (m *MockUndoTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockCounterRepository is a mock auth.CounterRepository.
type MockCounterRepository struct {
	mock.Mock
}

// NewMockCounterRepository creates a MockCounterRepository whose
// expectations are asserted on test cleanup.
func NewMockCounterRepository(t *testing.T) *MockCounterRepository {
	t.Helper()
	m := &MockCounterRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCounterRepository) Increment(ctx context.Context, id auth.CounterID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterRepository) Get(ctx context.Context, id auth.CounterID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// MockSecretHasher is a mock auth.SecretHasher.
type MockSecretHasher struct {
	mock.Mock
}

// NewMockSecretHasher creates a MockSecretHasher whose expectations are
// asserted on test cleanup.
func NewMockSecretHasher(t *testing.T) *MockSecretHasher {
	t.Helper()
	m := &MockSecretHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSecretHasher) Hash(secret string) (string, error) {
	args := m.Called(secret)
	return args.String(0), args.Error(1)
}

func (m *MockSecretHasher) Verify(secret, hash string) (bool, error) {
	args := m.Called(secret, hash)
	return args.Bool(0), args.Error(1)
}

// MockNotifier is a mock auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a MockNotifier whose expectations are asserted on
// test cleanup.
func NewMockNotifier(t *testing.T) *MockNotifier {
	t.Helper()
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) SendConfirmation(ctx context.Context, email, username string, token *auth.ConfirmationToken) error {
	args := m.Called(ctx, email, username, token)
	return args.Error(0)
}

func (m *MockNotifier) SendLockoutNotice(ctx context.Context, email, username string, until time.Time) error {
	args := m.Called(ctx, email, username, until)
	return args.Error(0)
}

func (m *MockNotifier) SendChangeNotice(ctx context.Context, email, username string, token *auth.UndoToken) error {
	args := m.Called(ctx, email, username, token)
	return args.Error(0)
}

func playerOrNil(v any) *auth.Player {
	if v == nil {
		return nil
	}
	return v.(*auth.Player)
}

// Compile-time interface checks.
var (
	_ auth.PlayerRepository            = (*MockPlayerRepository)(nil)
	_ auth.RefreshTokenRepository      = (*MockRefreshTokenRepository)(nil)
	_ auth.ConfirmationTokenRepository = (*MockConfirmationTokenRepository)(nil)
	_ auth.UndoTokenRepository         = (*MockUndoTokenRepository)(nil)
	_ auth.CounterRepository           = (*MockCounterRepository)(nil)
	_ auth.SecretHasher                = (*MockSecretHasher)(nil)
	_ auth.Notifier                    = (*MockNotifier)(nil)
)
