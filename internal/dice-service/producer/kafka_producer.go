package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/provably-fair-dice/internal/shared/kafka"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do dice-service, um writer por tópico.
// Chave da mensagem: account id, para manter a ordem por conta na partição.
type KafkaPublisher struct {
	Settled *kafka.Writer
	Rotated *kafka.Writer
	DLQ     *kafka.Writer
}

func NewKafkaPublisher(settled, rotated, dlq *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Settled: settled, Rotated: rotated, DLQ: dlq}
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.Settled, e.AccountID, e)
}

func (p *KafkaPublisher) PublishSeedRotated(ctx context.Context, e events.SeedRotated) error {
	return write(ctx, p.Rotated, e.AccountID, e)
}

func (p *KafkaPublisher) PublishCompensationRequired(ctx context.Context, e events.CompensationRequired) error {
	return write(ctx, p.DLQ, e.AccountID, e)
}

func write(ctx context.Context, w *kafka.Writer, key string, v any) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return skafka.WriteJSON(ctx, w, key, b)
}
