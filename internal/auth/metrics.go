// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks credential-service activity for the observability
// endpoint. Lifetime counters in the database are authoritative; these are
// process-local.
type Metrics struct {
	Registrations prometheus.Counter
	Confirmations prometheus.Counter
	Logins        prometheus.Counter
	FailedLogins  prometheus.Counter
	Lockouts      prometheus.Counter
	Refreshes     prometheus.Counter
}

// NewMetrics creates and registers the auth metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_auth_registrations_total",
			Help: "Accounts registered.",
		}),
		Confirmations: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_auth_confirmations_total",
			Help: "Accounts confirmed.",
		}),
		Logins: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_auth_logins_total",
			Help: "Successful logins.",
		}),
		FailedLogins: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_auth_failed_logins_total",
			Help: "Failed login attempts.",
		}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_auth_lockouts_total",
			Help: "Lockouts applied after repeated failures.",
		}),
		Refreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_auth_refreshes_total",
			Help: "Access tokens minted from refresh tokens.",
		}),
	}
}

// NopMetrics returns metrics bound to a throwaway registry, for tests and
// callers that do not scrape.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
