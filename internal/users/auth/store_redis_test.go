// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhphan-dev/lifelink/internal/platform/apperr"
	"github.com/thanhphan-dev/lifelink/internal/platform/constants"
	"github.com/thanhphan-dev/lifelink/internal/users/auth"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestRedisResetTokenRepository_Lifecycle(t *testing.T) {
	server, client := newRedisClient(t)
	repository := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, "tok-abc", "user-1", time.Hour))

	// The key carries the namespaced prefix.
	assert.True(t, server.Exists(constants.RedisPrefixResetToken+"tok-abc"))

	userID, err := repository.Get(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	require.NoError(t, repository.Delete(ctx, "tok-abc"))
	_, err = repository.Get(ctx, "tok-abc")
	appErr := &apperr.AppError{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestRedisResetTokenRepository_Expiry(t *testing.T) {
	server, client := newRedisClient(t)
	repository := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, "tok-short", "user-1", time.Minute))

	server.FastForward(2 * time.Minute)

	_, err := repository.Get(ctx, "tok-short")
	appErr := &apperr.AppError{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestRedisVerificationTokenRepository_Lifecycle(t *testing.T) {
	server, client := newRedisClient(t)
	repository := auth.NewVerificationTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, "verify-xyz", "user-2", 24*time.Hour))
	assert.True(t, server.Exists(constants.RedisPrefixVerifyToken+"verify-xyz"))

	userID, err := repository.Get(ctx, "verify-xyz")
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)

	// Reset and verification tokens live in separate namespaces; one never
	// redeems as the other.
	resetRepository := auth.NewResetTokenRepository(client)
	_, err = resetRepository.Get(ctx, "verify-xyz")
	require.Error(t, err)

	require.NoError(t, repository.Delete(ctx, "verify-xyz"))
	_, err = repository.Get(ctx, "verify-xyz")
	require.Error(t, err)
}
