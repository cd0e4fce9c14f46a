// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/auth"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
		problem  string
	}{
		{name: "valid", username: "player_one", wantErr: false},
		{name: "valid minimum length", username: "abcdef", wantErr: false},
		{name: "valid maximum length", username: "abcdefghij123456", wantErr: false},
		{name: "too short", username: "abcde", wantErr: true, problem: "between 6 and 16"},
		{name: "too long", username: "abcdefghij1234567", wantErr: true, problem: "between 6 and 16"},
		{name: "illegal characters", username: "player-one", wantErr: true, problem: "letters, numbers, and underscores"},
		{name: "leading underscore", username: "_player", wantErr: true, problem: "start with an underscore"},
		{name: "consecutive underscores", username: "play__er", wantErr: true, problem: "consecutive underscores"},
		{name: "spaces", username: "play er", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *auth.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "username", verr.Field)
			if tt.problem != "" {
				assert.Contains(t, err.Error(), tt.problem)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
		problem  string
	}{
		{name: "valid", password: "Passw0rd!", wantErr: false},
		{name: "valid all symbol kinds", password: "aB3!@#$%^&*+=?", wantErr: false},
		{name: "too short", password: "aB3!xyz", wantErr: true, problem: "between 8 and 32"},
		{name: "too long", password: "aB3!aB3!aB3!aB3!aB3!aB3!aB3!aB3!x", wantErr: true, problem: "between 8 and 32"},
		{name: "missing lowercase", password: "PASSW0RD!", wantErr: true, problem: "lowercase"},
		{name: "missing uppercase", password: "passw0rd!", wantErr: true, problem: "uppercase"},
		{name: "missing digit", password: "Password!", wantErr: true, problem: "number"},
		{name: "missing symbol", password: "Passw0rdd", wantErr: true, problem: "symbols"},
		{name: "illegal character", password: "Passw0rd!~", wantErr: true, problem: "illegal characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *auth.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "password", verr.Field)
			if tt.problem != "" {
				assert.Contains(t, err.Error(), tt.problem)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid", email: "player@example.com", wantErr: false},
		{name: "subdomain", email: "player@mail.example.com", wantErr: false},
		{name: "missing at", email: "playerexample.com", wantErr: true},
		{name: "missing domain dot", email: "player@example", wantErr: true},
		{name: "spaces", email: "player one@example.com", wantErr: true},
		{name: "empty", email: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPasswordHistory(t *testing.T) {
	t.Run("empty history has no hashes", func(t *testing.T) {
		var h auth.PasswordHistory
		assert.Empty(t, h.Hashes())
	})

	t.Run("insert puts newest first", func(t *testing.T) {
		var h auth.PasswordHistory
		h.Insert("hash1")
		h.Insert("hash2")
		h.Insert("hash3")
		assert.Equal(t, []string{"hash3", "hash2", "hash1"}, h.Hashes())
	})

	t.Run("full ring evicts oldest", func(t *testing.T) {
		var h auth.PasswordHistory
		for _, hash := range []string{"hash1", "hash2", "hash3", "hash4", "hash5"} {
			h.Insert(hash)
		}
		assert.Equal(t, []string{"hash5", "hash4", "hash3", "hash2"}, h.Hashes())
	})
}

func TestPlayerIsLockedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no lockout", func(t *testing.T) {
		p := &auth.Player{}
		assert.False(t, p.IsLockedAt(now))
	})

	t.Run("active lockout", func(t *testing.T) {
		until := now.Add(10 * time.Minute)
		p := &auth.Player{LockedUntil: &until}
		assert.True(t, p.IsLockedAt(now))
	})

	t.Run("expired lockout", func(t *testing.T) {
		until := now.Add(-time.Second)
		p := &auth.Player{LockedUntil: &until}
		assert.False(t, p.IsLockedAt(now))
	})

	t.Run("lockout ending exactly now", func(t *testing.T) {
		until := now
		p := &auth.Player{LockedUntil: &until}
		assert.False(t, p.IsLockedAt(now))
	})
}
