// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import "context"

// CounterID names a lifetime statistics counter. The set is closed so that
// arbitrary strings cannot create rows.
type CounterID string

// The tracked counters.
const (
	CounterPings              CounterID = "pings"
	CounterAccountsRegistered CounterID = "accounts_registered"
	CounterAccountsConfirmed  CounterID = "accounts_confirmed"
	CounterAccountsRejected   CounterID = "accounts_rejected"
	CounterLogins             CounterID = "logins"
	CounterFailedLogins       CounterID = "failed_logins"
)

// Valid reports whether id is a known counter.
func (id CounterID) Valid() bool {
	switch id {
	case CounterPings, CounterAccountsRegistered, CounterAccountsConfirmed,
		CounterAccountsRejected, CounterLogins, CounterFailedLogins:
		return true
	}
	return false
}

// CounterRepository persists lifetime counters.
type CounterRepository interface {
	// Increment atomically bumps the counter, creating it at 1 if absent,
	// and returns the new value.
	Increment(ctx context.Context, id CounterID) (int64, error)

	// Get returns the counter's value, or 0 if it has never been
	// incremented.
	Get(ctx context.Context, id CounterID) (int64, error)
}
