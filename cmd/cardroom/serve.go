// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardroom/cardroom/internal/auth"
	authpg "github.com/cardroom/cardroom/internal/auth/postgres"
	"github.com/cardroom/cardroom/internal/clock"
	"github.com/cardroom/cardroom/internal/config"
	"github.com/cardroom/cardroom/internal/logging"
	"github.com/cardroom/cardroom/internal/mail"
	"github.com/cardroom/cardroom/internal/observability"
	"github.com/cardroom/cardroom/internal/store"
	"github.com/cardroom/cardroom/pkg/errutil"
)

// sweepInterval is how often expired tokens are garbage collected. Expiry
// is enforced at use time; the sweep only reclaims rows.
const sweepInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential service",
		Long: `Start the credential service: connect to PostgreSQL, expose
observability endpoints, and garbage-collect expired tokens.`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault("cardroom", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var ready atomic.Bool
	obs := observability.NewServer(cfg.Metrics.Addr, ready.Load)
	obsErrs, err := obs.Start()
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Stop(stopCtx); err != nil {
			errutil.LogError(logger, "stopping observability server", err)
		}
	}()

	clk := clock.NewSystem()
	hasher := auth.NewArgon2idHasher()

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.SigningKey), clk)
	if err != nil {
		return err
	}

	players := authpg.NewPlayerRepository(pool)
	refreshRepo := authpg.NewRefreshTokenRepository(pool)
	confirmRepo := authpg.NewConfirmationTokenRepository(pool)
	undoRepo := authpg.NewUndoTokenRepository(pool)
	counters := authpg.NewCounterRepository(pool)

	var notifier auth.Notifier
	if cfg.Mail.Mode == "smtp" {
		notifier = mail.NewSMTPNotifier(mail.Config{
			Addr:     cfg.Mail.Addr,
			From:     cfg.Mail.From,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			BaseURL:  cfg.Mail.BaseURL,
		}, logger)
	} else {
		notifier = mail.NewLogNotifier(logger)
	}

	service := auth.NewService(
		auth.NewCredentialStore(players, hasher, clk),
		players,
		auth.NewRefreshTokenManager(refreshRepo, hasher, clk),
		auth.NewConfirmationTokenManager(confirmRepo, clk),
		auth.NewUndoTokenManager(undoRepo, clk),
		codec,
		counters,
		notifier,
		clk,
		auth.NewMetrics(obs.Registry()),
		logger,
	)

	// The startup ping both verifies read-write access and feeds the
	// lifetime counter.
	pings, err := service.Ping(ctx)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "service started", "pings", pings, "metrics_addr", obs.Addr())
	ready.Store(true)

	sweeper := time.NewTicker(sweepInterval)
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case err, ok := <-obsErrs:
			if !ok {
				return nil
			}
			return err
		case <-sweeper.C:
			sweepExpired(ctx, logger, clk, refreshRepo, confirmRepo, undoRepo)
		}
	}
}

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func sweepExpired(ctx context.Context, logger *slog.Logger, clk clock.Clock, repos ...expiredDeleter) {
	now := clk.Now()
	var removed int64
	for _, repo := range repos {
		n, err := repo.DeleteExpired(ctx, now)
		if err != nil {
			logger.ErrorContext(ctx, "sweeping expired tokens", "error", err)
			continue
		}
		removed += n
	}
	if removed > 0 {
		logger.InfoContext(ctx, "swept expired tokens", "removed", removed)
	}
}
