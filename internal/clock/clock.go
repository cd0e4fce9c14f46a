// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package clock provides an injectable time source.
package clock

import "time"

// Clock supplies the current time. Services take a Clock instead of calling
// time.Now directly so expiry logic can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// System implements Clock using the system clock.
type System struct{}

// NewSystem creates a System clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current time.
func (c *System) Now() time.Time {
	return time.Now()
}

// Fixed implements Clock with a settable instant for tests.
type Fixed struct {
	t time.Time
}

// NewFixed creates a Fixed clock pinned to t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

// Now returns the pinned instant.
func (c *Fixed) Now() time.Time {
	return c.t
}

// Set repins the clock to t.
func (c *Fixed) Set(t time.Time) {
	c.t = t
}

// Advance moves the clock forward by d.
func (c *Fixed) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}
