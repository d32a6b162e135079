package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// KeyRecent guarda as últimas apostas liquidadas, mais nova primeiro
const KeyRecent = "bets:recent"

// RedisCache mantém a lista de apostas recentes no Redis
// Size: quantidade máxima de itens mantidos na lista
type RedisCache struct {
	Client *redis.Client
	Size   int64
}

func NewRedisCache(c *redis.Client, size int64) *RedisCache {
	return &RedisCache{Client: c, Size: size}
}

// PushRecent insere a aposta no topo e corta a lista no tamanho configurado
func (r *RedisCache) PushRecent(ctx context.Context, e events.BetSettled) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.LPush(ctx, KeyRecent, b)
	pipe.LTrim(ctx, KeyRecent, 0, r.Size-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent devolve até n apostas da lista
func (r *RedisCache) Recent(ctx context.Context, n int64) ([]events.BetSettled, error) {
	raw, err := r.Client.LRange(ctx, KeyRecent, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]events.BetSettled, 0, len(raw))
	for _, s := range raw {
		var e events.BetSettled
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
