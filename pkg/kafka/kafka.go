package kafka

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "products"

// ProducerClient is the part of [kgo.Client] the publisher needs.
type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Config holds Kafka connection details.
type Config struct {
	SeedBrokers []string
	Topic       string
	Logger      hclog.Logger
}

// Publisher produces events to a single topic.
type Publisher struct {
	cl     ProducerClient
	topic  string
	logger hclog.Logger
}

// NewPublisher creates a kgo client for cfg.SeedBrokers producing to cfg.Topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	const op = "kafka.NewPublisher"

	if len(cfg.SeedBrokers) == 0 {
		return nil, fmt.Errorf("%s: no seed brokers", op)
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.SeedBrokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewPublisherWithClient(cl, cfg.Topic, cfg.Logger), nil
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(cl ProducerClient, topic string, logger hclog.Logger) *Publisher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Publisher{cl: cl, topic: topic, logger: logger}
}

// Publish produces one record keyed by key and waits for the broker to acknowledge it.
func (p *Publisher) Publish(ctx context.Context, key string, body []byte) error {
	const op = "Publisher.Publish"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: body}
	if err := p.cl.ProduceSync(ctx, r).FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.logger.Debug("Produced event", "topic", p.topic, "key", key)
	return nil
}

// Close flushes and closes the underlying client.
func (p *Publisher) Close() {
	p.logger.Info("Closing Kafka publisher")
	p.cl.Close()
}
