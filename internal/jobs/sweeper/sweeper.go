// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

// Package sweeper runs the periodic expiry job for the security engine.
//
// # Architecture
//
// The core components expose SweepExpired but never own a timer; this
// package owns the single ticker that drives all of them. One missed pass
// only delays cleanup — expiry is always enforced on the read path first.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper prunes expired sessions and stale cache entries.
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// TokenSweeper deletes refresh records past their absolute expiry.
type TokenSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper drives the expiry passes on a fixed interval.
type Sweeper struct {
	sessions SessionSweeper
	tokens   TokenSweeper
	interval time.Duration
	logger   *slog.Logger
}

// New creates a sweeper. It does nothing until Run is called.
func New(sessions SessionSweeper, tokens TokenSweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		tokens:   tokens,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, sweeping every interval until the context is cancelled.
//
// # Usage
//
// Started as a goroutine from main; cancelling the application context is
// the only way to stop it.
func (sweeper *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	sweeper.logger.Info("sweeper_started", slog.Duration("interval", sweeper.interval))

	for {
		select {
		case <-ticker.C:
			sweeper.sweep(ctx)
		case <-ctx.Done():
			sweeper.logger.Info("sweeper_stopped")
			return
		}
	}
}

// sweep performs one pass. Failures are logged and never abort the pass:
// the next tick retries everything anyway.
func (sweeper *Sweeper) sweep(ctx context.Context) {
	started := time.Now()

	sessionCount, err := sweeper.sessions.SweepExpired(ctx)
	if err != nil {
		sweeper.logger.Error("sweeper_sessions_failed", slog.Any("error", err))
	}

	tokenCount, err := sweeper.tokens.SweepExpired(ctx)
	if err != nil {
		sweeper.logger.Error("sweeper_tokens_failed", slog.Any("error", err))
	}

	sweeper.logger.Info("sweeper_pass_completed",
		slog.Int("sessions_terminated", sessionCount),
		slog.Int("tokens_deleted", tokenCount),
		slog.Duration("elapsed", time.Since(started)))
}
