package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// Reader é o subconjunto de *kafka.Reader usado pelo processor
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type RecentCache interface {
	PushRecent(ctx context.Context, e events.BetSettled) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, e events.BetSettled) error
}

// Processor consome bet_settled, atualiza a lista de recentes e avisa o websocket
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log         *zap.Logger
	Reader      Reader
	Cache       RecentCache
	Broadcaster Broadcaster

	OnConsumed  func()       // métricas (counter++)
	OnCached    func()       // métricas
	OnBroadcast func()       // métricas
	OnError     func(string) // métricas por fase

	// pausa após falha de leitura; padrão 500ms
	Backoff time.Duration
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.handle(ctx, m.Value)
	}
}

func (p *Processor) handle(ctx context.Context, value []byte) {
	var ev events.BetSettled
	if err := json.Unmarshal(value, &ev); err != nil || ev.BetID == "" {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}

	// falha no cache não impede o broadcast
	if err := p.Cache.PushRecent(ctx, ev); err != nil {
		p.Log.Warn("redis push failed", zap.String("betId", ev.BetID), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Broadcast(bctx, ev); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("betId", ev.BetID), zap.Error(err))
		p.fail("broadcast")
		return
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
