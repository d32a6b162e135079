package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

// WSUpdate é o payload lido pelo websocket do dice-service
type WSUpdate struct {
	Currency string            `json:"currency"`
	Payload  events.BetSettled `json:"payload"`
}

// Broadcast publica a aposta no canal do feed
func (b *RedisBroadcaster) Broadcast(ctx context.Context, e events.BetSettled) error {
	msg, err := json.Marshal(WSUpdate{Currency: e.Currency, Payload: e})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, msg).Err()
}
