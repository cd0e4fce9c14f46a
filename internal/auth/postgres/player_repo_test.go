// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/auth"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var playerTestColumns = []string{
	"id", "username", "email", "proposed_email", "password_hash",
	"password_history", "confirmed", "failed_logins", "locked_until",
	"session_valid_after", "last_login_at", "created_at",
}

// playerRow builds a result row for the given player, with sensible
// defaults for the nullable columns.
func playerRow(id ulid.ULID, lockedUntil *time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(playerTestColumns).AddRow(
		id.String(), "player_one", "p1@example.com", (*string)(nil), "password-hash",
		[]string{"older-hash"}, true, 0, lockedUntil,
		testNow, (*time.Time)(nil), testNow,
	)
}

func TestPlayerRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	playerID := ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT (.+) FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnRows(playerRow(playerID, nil))

		repo := NewPlayerRepository(mock)
		player, err := repo.GetByID(ctx, playerID)
		require.NoError(t, err)
		assert.Equal(t, playerID, player.ID)
		assert.Equal(t, "player_one", player.Username)
		assert.Equal(t, auth.PasswordHistory{"older-hash"}, player.PasswordHistory)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT (.+) FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPlayerRepository(mock)
		_, err = repo.GetByID(ctx, playerID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestPlayerRepository_Create(t *testing.T) {
	ctx := context.Background()

	newPlayer := func() *auth.Player {
		return &auth.Player{
			ID:                ulid.Make(),
			Username:          "player_one",
			Email:             "p1@example.com",
			PasswordHash:      "password-hash",
			SessionValidAfter: testNow,
			CreatedAt:         testNow,
		}
	}

	t.Run("successful insert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO players`).
			WithArgs(
				pgxmock.AnyArg(), "player_one", "p1@example.com", (*string)(nil),
				"password-hash", []string{}, false, 0, (*time.Time)(nil),
				testNow, (*time.Time)(nil), testNow,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewPlayerRepository(mock)
		assert.NoError(t, repo.Create(ctx, newPlayer()))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("username unique violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO players`).
			WithArgs(
				pgxmock.AnyArg(), "player_one", "p1@example.com", (*string)(nil),
				"password-hash", []string{}, false, 0, (*time.Time)(nil),
				testNow, (*time.Time)(nil), testNow,
			).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "players_username_lower_idx",
			})

		repo := NewPlayerRepository(mock)
		err = repo.Create(ctx, newPlayer())

		var uerr *auth.UniquenessError
		require.ErrorAs(t, err, &uerr)
		assert.True(t, uerr.UsernameTaken)
		assert.False(t, uerr.EmailTaken)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("email unique violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO players`).
			WithArgs(
				pgxmock.AnyArg(), "player_one", "p1@example.com", (*string)(nil),
				"password-hash", []string{}, false, 0, (*time.Time)(nil),
				testNow, (*time.Time)(nil), testNow,
			).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "players_email_lower_idx",
			})

		repo := NewPlayerRepository(mock)
		err = repo.Create(ctx, newPlayer())

		var uerr *auth.UniquenessError
		require.ErrorAs(t, err, &uerr)
		assert.True(t, uerr.EmailTaken)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO players`).
			WithArgs(
				pgxmock.AnyArg(), "player_one", "p1@example.com", (*string)(nil),
				"password-hash", []string{}, false, 0, (*time.Time)(nil),
				testNow, (*time.Time)(nil), testNow,
			).
			WillReturnError(errors.New("connection refused"))

		repo := NewPlayerRepository(mock)
		err = repo.Create(ctx, newPlayer())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestPlayerRepository_IncrementFailedLogins(t *testing.T) {
	ctx := context.Background()
	playerID := ulid.Make()

	t.Run("returns the new count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`UPDATE players SET failed_logins = failed_logins \+ 1`).
			WithArgs(playerID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"failed_logins"}).AddRow(5))

		repo := NewPlayerRepository(mock)
		failures, err := repo.IncrementFailedLogins(ctx, playerID)
		require.NoError(t, err)
		assert.Equal(t, 5, failures)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown player", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`UPDATE players SET failed_logins = failed_logins \+ 1`).
			WithArgs(playerID.String()).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPlayerRepository(mock)
		_, err = repo.IncrementFailedLogins(ctx, playerID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestPlayerRepository_RecordSuccessfulLogin(t *testing.T) {
	ctx := context.Background()
	playerID := ulid.Make()

	t.Run("resets bookkeeping", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players`).
			WithArgs(playerID.String(), testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewPlayerRepository(mock)
		assert.NoError(t, repo.RecordSuccessfulLogin(ctx, playerID, testNow))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("concurrent lockout wins", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		until := testNow.Add(15 * time.Minute)
		mock.ExpectExec(`UPDATE players`).
			WithArgs(playerID.String(), testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT (.+) FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnRows(playerRow(playerID, &until))

		repo := NewPlayerRepository(mock)
		err = repo.RecordSuccessfulLogin(ctx, playerID, testNow)

		var lockErr *auth.AccountLockedError
		require.ErrorAs(t, err, &lockErr)
		assert.True(t, lockErr.Until.Equal(until))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("player vanished", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players`).
			WithArgs(playerID.String(), testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT (.+) FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPlayerRepository(mock)
		err = repo.RecordSuccessfulLogin(ctx, playerID, testNow)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestPlayerRepository_Confirm(t *testing.T) {
	ctx := context.Background()
	playerID := ulid.Make()

	t.Run("marks confirmed", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players SET confirmed = TRUE`).
			WithArgs(playerID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewPlayerRepository(mock)
		assert.NoError(t, repo.Confirm(ctx, playerID))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown player", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players SET confirmed = TRUE`).
			WithArgs(playerID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewPlayerRepository(mock)
		assert.ErrorIs(t, repo.Confirm(ctx, playerID), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestPlayerRepository_PromoteProposedEmail(t *testing.T) {
	ctx := context.Background()
	playerID := ulid.Make()

	t.Run("promotes pending candidate", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players`).
			WithArgs(playerID.String(), testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewPlayerRepository(mock)
		assert.NoError(t, repo.PromoteProposedEmail(ctx, playerID, testNow))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("nothing pending", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players`).
			WithArgs(playerID.String(), testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT (.+) FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnRows(playerRow(playerID, nil))

		repo := NewPlayerRepository(mock)
		err = repo.PromoteProposedEmail(ctx, playerID, testNow)
		assert.ErrorIs(t, err, auth.ErrNoProposedChange)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown player", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE players`).
			WithArgs(playerID.String(), testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT (.+) FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPlayerRepository(mock)
		err = repo.PromoteProposedEmail(ctx, playerID, testNow)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestPlayerRepository_Delete(t *testing.T) {
	ctx := context.Background()
	playerID := ulid.Make()

	t.Run("successful delete", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewPlayerRepository(mock)
		assert.NoError(t, repo.Delete(ctx, playerID))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown player", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM players WHERE id = \$1`).
			WithArgs(playerID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewPlayerRepository(mock)
		assert.ErrorIs(t, repo.Delete(ctx, playerID), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}
