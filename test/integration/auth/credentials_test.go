// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

//go:build integration

package auth_test

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/cardroom/cardroom/internal/auth"
)

// confirmationTokenID looks up the player's outstanding confirmation token.
// The notifier only logs tokens, so tests read them back from storage the
// way a mailed link would carry them.
func confirmationTokenID(playerID ulid.ULID) ulid.ULID {
	var idStr string
	err := env.pool.QueryRow(env.ctx,
		`SELECT id FROM confirmation_tokens WHERE player_id = $1`,
		playerID.String()).Scan(&idStr)
	Expect(err).NotTo(HaveOccurred())
	id, err := ulid.Parse(idStr)
	Expect(err).NotTo(HaveOccurred())
	return id
}

func undoTokenID(playerID ulid.ULID, function string) ulid.ULID {
	var idStr string
	err := env.pool.QueryRow(env.ctx,
		`SELECT id FROM undo_tokens WHERE player_id = $1 AND function = $2`,
		playerID.String(), function).Scan(&idStr)
	Expect(err).NotTo(HaveOccurred())
	id, err := ulid.Parse(idStr)
	Expect(err).NotTo(HaveOccurred())
	return id
}

// registerConfirmed creates and confirms a fresh account.
func registerConfirmed(username, email, password string) *auth.Player {
	player, err := env.Service.Register(env.ctx, username, email, password)
	Expect(err).NotTo(HaveOccurred())

	tokenID := confirmationTokenID(player.ID)
	Expect(env.Service.Confirm(env.ctx, player.ID, tokenID)).To(Succeed())
	return player
}

var accountSeq int

func nextAccount() (string, string) {
	accountSeq++
	return fmt.Sprintf("player_%03d", accountSeq), fmt.Sprintf("player%03d@example.com", accountSeq)
}

var _ = Describe("Account lifecycle", func() {
	const password = "Passw0rd!"

	It("registers, confirms, and logs in", func() {
		username, email := nextAccount()

		player, err := env.Service.Register(env.ctx, username, email, password)
		Expect(err).NotTo(HaveOccurred())
		Expect(player.Confirmed).To(BeFalse())

		// Unconfirmed accounts cannot log in.
		_, _, err = env.Service.Login(env.ctx, username, password)
		Expect(err).To(MatchError(auth.ErrInternalConflict))

		tokenID := confirmationTokenID(player.ID)
		Expect(env.Service.Confirm(env.ctx, player.ID, tokenID)).To(Succeed())

		got, pair, err := env.Service.Login(env.ctx, username, password)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(player.ID))
		Expect(pair.AccessToken).NotTo(BeEmpty())

		authed, err := env.Service.Authenticate(env.ctx, pair.AccessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(authed.ID).To(Equal(player.ID))

		// Login works by email too.
		_, _, err = env.Service.Login(env.ctx, email, password)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a duplicate username", func() {
		username, email := nextAccount()
		registerConfirmed(username, email, password)

		_, otherEmail := nextAccount()
		_, err := env.Service.Register(env.ctx, username, otherEmail, password)

		var uerr *auth.UniquenessError
		Expect(err).To(BeAssignableToTypeOf(uerr))
	})

	It("rejects an unknown confirmation and deletes the account", func() {
		username, email := nextAccount()
		player, err := env.Service.Register(env.ctx, username, email, password)
		Expect(err).NotTo(HaveOccurred())

		tokenID := confirmationTokenID(player.ID)
		Expect(env.Service.Reject(env.ctx, player.ID, tokenID)).To(Succeed())

		_, err = env.Players.GetByID(env.ctx, player.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))

		// The rejection link can be clicked twice.
		Expect(env.Service.Reject(env.ctx, player.ID, tokenID)).To(Succeed())
	})
})

var _ = Describe("Login protocol", func() {
	const password = "Passw0rd!"

	It("locks the account after five failures", func() {
		username, email := nextAccount()
		player := registerConfirmed(username, email, password)

		for i := 0; i < 4; i++ {
			_, _, err := env.Service.Login(env.ctx, username, "Wr0ng!pass")
			Expect(err).To(MatchError(auth.ErrAuthenticationFailure))
		}

		// Fifth failure trips the lockout.
		_, _, err := env.Service.Login(env.ctx, username, "Wr0ng!pass")
		Expect(err).To(MatchError(auth.ErrAuthenticationFailure))

		var lockErr *auth.AccountLockedError
		_, _, err = env.Service.Login(env.ctx, username, password)
		Expect(err).To(BeAssignableToTypeOf(lockErr))

		stored, err := env.Players.GetByID(env.ctx, player.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.FailedLogins).To(Equal(5))
		Expect(stored.LockedUntil).NotTo(BeNil())
		Expect(stored.LockedUntil.Sub(env.clock.Now())).To(Equal(15 * time.Minute))

		// After the lockout expires the correct password works again and
		// resets the counter.
		env.clock.Advance(16 * time.Minute)
		_, _, err = env.Service.Login(env.ctx, username, password)
		Expect(err).NotTo(HaveOccurred())

		stored, err = env.Players.GetByID(env.ctx, player.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.FailedLogins).To(BeZero())
		Expect(stored.LockedUntil).To(BeNil())
	})

	It("rotates refresh tokens on use", func() {
		username, email := nextAccount()
		registerConfirmed(username, email, password)

		_, pair, err := env.Service.Login(env.ctx, username, password)
		Expect(err).NotTo(HaveOccurred())

		rotated, err := env.Service.Refresh(env.ctx, pair.RefreshCookie)
		Expect(err).NotTo(HaveOccurred())
		Expect(rotated.RefreshCookie).NotTo(Equal(pair.RefreshCookie))

		// The consumed cookie is dead.
		_, err = env.Service.Refresh(env.ctx, pair.RefreshCookie)
		Expect(err).To(MatchError(auth.ErrAuthenticationFailure))
	})

	It("evicts the oldest refresh token beyond the cap", func() {
		username, email := nextAccount()
		registerConfirmed(username, email, password)

		cookies := make([]string, 0, auth.MaxLiveRefreshTokens+1)
		for i := 0; i < auth.MaxLiveRefreshTokens+1; i++ {
			_, pair, err := env.Service.Login(env.ctx, username, password)
			Expect(err).NotTo(HaveOccurred())
			cookies = append(cookies, pair.RefreshCookie)
		}

		// The first cookie was evicted; the rest still work.
		_, err := env.Service.Refresh(env.ctx, cookies[0])
		Expect(err).To(MatchError(auth.ErrAuthenticationFailure))

		_, err = env.Service.Refresh(env.ctx, cookies[1])
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Credential changes", func() {
	const password = "Passw0rd!"
	const newPassword = "N3wPassw0rd!"

	It("changes the password and undoes the change", func() {
		username, email := nextAccount()
		player := registerConfirmed(username, email, password)

		_, pair, err := env.Service.Login(env.ctx, username, password)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Service.ChangePassword(env.ctx, player.ID, password, newPassword)).To(Succeed())

		// Old sessions are revoked; old refresh tokens are gone.
		_, err = env.Service.Authenticate(env.ctx, pair.AccessToken)
		Expect(err).To(MatchError(auth.ErrTokenRevoked))
		_, err = env.Service.Refresh(env.ctx, pair.RefreshCookie)
		Expect(err).To(MatchError(auth.ErrAuthenticationFailure))

		// New password works, old one does not.
		_, _, err = env.Service.Login(env.ctx, username, password)
		Expect(err).To(MatchError(auth.ErrAuthenticationFailure))
		_, _, err = env.Service.Login(env.ctx, username, newPassword)
		Expect(err).NotTo(HaveOccurred())

		// Undo restores the previous password.
		undoID := undoTokenID(player.ID, "password")
		Expect(env.Service.Undo(env.ctx, undoID)).To(Succeed())

		_, _, err = env.Service.Login(env.ctx, username, newPassword)
		Expect(err).To(MatchError(auth.ErrAuthenticationFailure))
		_, _, err = env.Service.Login(env.ctx, username, password)
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses password reuse", func() {
		username, email := nextAccount()
		player := registerConfirmed(username, email, password)

		err := env.Service.ChangePassword(env.ctx, player.ID, password, password)
		Expect(err).To(MatchError(auth.ErrReusedCredential))
	})

	It("changes the email via confirmation", func() {
		username, email := nextAccount()
		player := registerConfirmed(username, email, password)
		newEmail := "changed_" + email

		Expect(env.Service.RequestEmailChange(env.ctx, player.ID, password, newEmail)).To(Succeed())

		// The address of record is untouched until confirmed.
		stored, err := env.Players.GetByID(env.ctx, player.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Email).To(Equal(email))
		Expect(stored.ProposedEmail).NotTo(BeNil())

		tokenID := confirmationTokenID(player.ID)
		Expect(env.Service.ConfirmEmailChange(env.ctx, player.ID, tokenID)).To(Succeed())

		stored, err = env.Players.GetByID(env.ctx, player.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Email).To(Equal(newEmail))
		Expect(stored.ProposedEmail).To(BeNil())

		// Undo restores the old address.
		undoID := undoTokenID(player.ID, "email")
		Expect(env.Service.Undo(env.ctx, undoID)).To(Succeed())

		stored, err = env.Players.GetByID(env.ctx, player.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Email).To(Equal(email))
	})

	It("deletes the account", func() {
		username, email := nextAccount()
		player := registerConfirmed(username, email, password)

		Expect(env.Service.DeleteAccount(env.ctx, player.ID, password)).To(Succeed())

		_, err := env.Players.GetByID(env.ctx, player.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
