package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

const topic = "folio.transactions"

// Publisher writes events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
