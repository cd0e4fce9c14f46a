// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package auth implements the credential and session lifecycle for player
// accounts: password authentication, short-lived access tokens, rotating
// refresh tokens, single-use confirmation and undo tokens, and the
// escalating lockout policy.
//
// The package owns the domain models and service logic; persistence lives
// behind repository interfaces implemented in the postgres subpackage.
// Email delivery is behind the Notifier interface and time behind
// clock.Clock, so every expiry rule is testable without wall-clock sleeps.
package auth
