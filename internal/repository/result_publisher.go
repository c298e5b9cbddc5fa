package repository

import (
	"context"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	pkgkafka "RegimeTrader/pkg/kafka"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaPublisher sends each result summary to the results topic and its
// trades, one message each, to the trades topic. Both are keyed by symbol.
type KafkaPublisher struct {
	producer     producer
	resultsTopic string
	tradesTopic  string
}

// NewKafkaPublisher creates Kafka publisher. An empty tradesTopic disables
// per-trade messages.
func NewKafkaPublisher(p *pkgkafka.Producer, resultsTopic, tradesTopic string) *KafkaPublisher {
	return newKafkaPublisher(p, resultsTopic, tradesTopic)
}

func newKafkaPublisher(p producer, resultsTopic, tradesTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, resultsTopic: resultsTopic, tradesTopic: tradesTopic}
}

// tradeEvent is a trade stamped with its run for downstream joins.
type tradeEvent struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"symbol"`
	models.Trade
}

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.BacktestResult) error {
	key := []byte(r.Symbol)
	if err := p.producer.Publish(ctx, p.resultsTopic, key, r); err != nil {
		return err
	}
	if p.tradesTopic == "" || len(r.Trades) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(r.Trades))
	for i, t := range r.Trades {
		msgs[i] = pkgkafka.Message{
			Key:   key,
			Value: tradeEvent{RunID: r.RunID, Symbol: r.Symbol, Trade: t},
		}
	}
	return p.producer.PublishBatch(ctx, p.tradesTopic, msgs)
}

var _ domrepo.ResultPublisher = (*KafkaPublisher)(nil)
