// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import "time"

// Lockout policy constants.
const (
	// LockoutThreshold is the failed-login count at which lockouts begin.
	LockoutThreshold = 5

	// LockoutStep is the lockout duration added per failure at or past the
	// threshold.
	LockoutStep = 15 * time.Minute
)

// FailuresToLockout maps a failed-login count to a lockout duration.
// Below the threshold there is no lockout; at or past it, the duration
// escalates linearly: 15m at 5 failures, 30m at 6, 45m at 7, and so on.
func FailuresToLockout(failures int) (time.Duration, bool) {
	if failures < LockoutThreshold {
		return 0, false
	}
	return time.Duration(failures-(LockoutThreshold-1)) * LockoutStep, true
}
