package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenRevocationPrefix = "docflow:token:revoked:"

// RevocationStore 令牌吊销列表
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// RedisRevocationStore 基于 Redis 的吊销列表
type RedisRevocationStore struct {
	rdb *redis.Client
}

// NewRedisRevocationStore 创建 Redis 吊销列表
func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb}
}

// IsRevoked 判断令牌是否已被吊销
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, tokenRevocationPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke 吊销令牌, ttl 通常为令牌剩余有效期
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, tokenRevocationPrefix+tokenID, "revoked", ttl).Err()
}
