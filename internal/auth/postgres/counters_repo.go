// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

// CounterRepository implements auth.CounterRepository using PostgreSQL.
type CounterRepository struct {
	pool pool
}

// NewCounterRepository creates a new CounterRepository.
func NewCounterRepository(pool pool) *CounterRepository {
	return &CounterRepository{pool: pool}
}

// Increment atomically bumps the counter, creating it at 1 if absent, and
// returns the new value.
func (r *CounterRepository) Increment(ctx context.Context, id auth.CounterID) (int64, error) {
	if !id.Valid() {
		return 0, oops.Code("COUNTER_UNKNOWN").Errorf("unknown counter %q", id)
	}

	var value int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO counters (name, counter)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE
		SET counter = counters.counter + 1
		RETURNING counter
	`, string(id)).Scan(&value)
	if err != nil {
		return 0, oops.Code("COUNTER_INCREMENT_FAILED").
			With("operation", "increment counter").
			With("counter", string(id)).
			Wrap(err)
	}
	return value, nil
}

// Get returns the counter's value, or 0 if it has never been incremented.
func (r *CounterRepository) Get(ctx context.Context, id auth.CounterID) (int64, error) {
	if !id.Valid() {
		return 0, oops.Code("COUNTER_UNKNOWN").Errorf("unknown counter %q", id)
	}

	var value int64
	err := r.pool.QueryRow(ctx, `
		SELECT counter FROM counters WHERE name = $1
	`, string(id)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.Code("COUNTER_GET_FAILED").
			With("operation", "get counter").
			With("counter", string(id)).
			Wrap(err)
	}
	return value, nil
}

// Compile-time interface check.
var _ auth.CounterRepository = (*CounterRepository)(nil)
