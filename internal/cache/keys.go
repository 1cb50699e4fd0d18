package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	CommunityKeyPrefix  = "community:%d"
	MembershipKeyPrefix = "user:%d:communities"
	RevokedTokenPrefix  = "blacklist:%s"
)

const (
	CommunityTTL  = 10 * time.Minute
	MembershipTTL = 2 * time.Minute
)

func CommunityKey(communityID uint) string {
	return fmt.Sprintf(CommunityKeyPrefix, communityID)
}

func MembershipKey(userID uint) string {
	return fmt.Sprintf(MembershipKeyPrefix, userID)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenPrefix, jti)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateCommunity(ctx context.Context, communityID uint) {
	Invalidate(ctx, CommunityKey(communityID))
}

func InvalidateMemberships(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, MembershipKey(id))
	}
	Invalidate(ctx, keys...)
}

// IsTokenRevoked reports whether jti was revoked. Without Redis nothing is revoked.
func IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if client == nil {
		return false, nil
	}
	n, err := client.Exists(ctx, RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeToken marks jti as revoked for ttl.
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	return client.Set(ctx, RevokedTokenKey(jti), 1, ttl).Err()
}
