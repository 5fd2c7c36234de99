// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	sessions := &countingSweeper{}
	tokens := &countingSweeper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := New(sessions, tokens, 5*time.Millisecond, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return sessions.calls.Load() >= 3 && tokens.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}

func TestSweeper_FailureDoesNotAbortPass(t *testing.T) {
	sessions := &countingSweeper{err: errors.New("db down")}
	tokens := &countingSweeper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := New(sessions, tokens, 5*time.Millisecond, logger)
	go sweeper.Run(ctx)

	// The token sweep keeps running even while the session sweep errors.
	assert.Eventually(t, func() bool {
		return tokens.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}
