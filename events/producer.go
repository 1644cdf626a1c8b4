package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
)

// BatchEvent announces a completed conversion batch to downstream
// consumers (metrics, audit).
type BatchEvent struct {
	BatchID     string    `json:"batch_id"`
	Files       int       `json:"files"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

type Producer interface {
	PublishBatch(ctx context.Context, topic string, event *BatchEvent) error
	Close() error
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &producer{producer: p}, nil
}

func (p *producer) PublishBatch(ctx context.Context, topic string, event *BatchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.BatchID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
