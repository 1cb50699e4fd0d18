package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dst *cachedThing) func() error {
		return func() error {
			calls++
			*dst = cachedThing{ID: 1, Name: "general"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, CommunityKey(1), &first, CommunityTTL, fetch(&first)))
	assert.Equal(t, "general", first.Name)
	assert.True(t, mr.Exists(CommunityKey(1)))
	assert.Equal(t, CommunityTTL, mr.TTL(CommunityKey(1)))

	var second cachedThing
	require.NoError(t, Aside(ctx, CommunityKey(1), &second, CommunityTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	InvalidateCommunity(ctx, 1)
	assert.False(t, mr.Exists(CommunityKey(1)))
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniRedis(t)
	boom := errors.New("boom")

	var dst cachedThing
	err := Aside(context.Background(), CommunityKey(2), &dst, CommunityTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(CommunityKey(2)))
}

func TestAside_NoClientBypasses(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dst cachedThing
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), CommunityKey(3), &dst, time.Minute, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_RedisDownFallsThrough(t *testing.T) {
	mr := setupMiniRedis(t)
	mr.Close()

	var dst cachedThing
	err := Aside(context.Background(), CommunityKey(4), &dst, time.Minute, func() error {
		dst.Name = "fresh"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", dst.Name)
}

func TestTokenRevocation(t *testing.T) {
	setupMiniRedis(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, RevokeToken(ctx, "abc", time.Hour))
	revoked, err = IsTokenRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestInvalidateMemberships(t *testing.T) {
	mr := setupMiniRedis(t)
	require.NoError(t, mr.Set(MembershipKey(1), "[]"))
	require.NoError(t, mr.Set(MembershipKey(2), "[]"))

	InvalidateMemberships(context.Background(), 1, 2)
	assert.False(t, mr.Exists(MembershipKey(1)))
	assert.False(t, mr.Exists(MembershipKey(2)))
}
