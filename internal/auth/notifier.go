// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"context"
	"time"
)

// Notifier delivers account email. Implementations live in internal/mail;
// failures are logged but never fail the operation that triggered them,
// except for confirmation mail, where an undeliverable token makes the
// operation pointless.
type Notifier interface {
	// SendConfirmation mails a confirmation link for a new account or a
	// proposed email change. The address is the one being confirmed.
	SendConfirmation(ctx context.Context, email, username string, token *ConfirmationToken) error

	// SendLockoutNotice tells the player their account is locked until the
	// given time.
	SendLockoutNotice(ctx context.Context, email, username string, until time.Time) error

	// SendChangeNotice tells the player a credential changed, with an undo
	// link for reverting it. Sent to the address of record before the
	// change.
	SendChangeNotice(ctx context.Context, email, username string, token *UndoToken) error
}
