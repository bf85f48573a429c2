package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const blacklistPrefix = "blacklist:"

// TokenRepository 维护已注销令牌的黑名单
type TokenRepository interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

type tokenRepository struct {
	rdb *redis.Client
}

func NewTokenRepository(rdb *redis.Client) TokenRepository {
	return &tokenRepository{rdb: rdb}
}

// Blacklist 将令牌加入黑名单直到它自然过期
func (r *tokenRepository) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

func (r *tokenRepository) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := r.rdb.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
