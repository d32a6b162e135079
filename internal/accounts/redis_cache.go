package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache é um read-through na frente de outro Directory
// Client: cliente Redis
// TTL: tempo de expiração dos perfis em cache
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	Next   Directory
	Log    *zap.Logger
}

// NewRedisCache cria o cache com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration, next Directory, log *zap.Logger) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl, Next: next, Log: log}
}

// key gera a chave Redis do perfil de uma conta
func key(accountID string) string { return "accounts:profile:" + accountID }

// Lookup tenta o Redis e cai no diretório de origem; falhas do Redis não derrubam a consulta
func (r *RedisCache) Lookup(ctx context.Context, accountID string) (Profile, error) {
	if accountID == "" {
		return Profile{}, ErrAccountNotFound
	}
	b, err := r.Client.Get(ctx, key(accountID)).Bytes()
	switch {
	case err == nil:
		var p Profile
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
		r.Log.Warn("profile cache corrupted", zap.String("accountId", accountID))
	case !errors.Is(err, redis.Nil):
		r.Log.Warn("profile cache read failed", zap.String("accountId", accountID), zap.Error(err))
	}

	p, err := r.Next.Lookup(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := r.Client.Set(ctx, key(accountID), b, r.TTL).Err(); err != nil {
			r.Log.Warn("profile cache write failed", zap.String("accountId", accountID), zap.Error(err))
		}
	}
	return p, nil
}

// Invalidate remove o perfil do cache (ex: conta suspensa pelo serviço de contas)
func (r *RedisCache) Invalidate(ctx context.Context, accountID string) error {
	return r.Client.Del(ctx, key(accountID)).Err()
}
