package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic with commit-on-success semantics: an offset is
// committed only after the handler returns nil, so a failed apply is
// redelivered rather than lost. Poison handling is the caller's job: a
// handler that wants to skip a message returns nil for it.
type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r: kafka.NewReader(cfg),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume loops fetch → handle → commit until the context ends or an
// error escapes. A handler error leaves the offset uncommitted and is
// returned with its position, so the owner can log it and re-enter.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(m.Key, m.Value); err != nil {
			return errors.Wrapf(err, "handle message %s/%d@%d", m.Topic, m.Partition, m.Offset)
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
