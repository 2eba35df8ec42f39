package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-preorder/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Envelope is one decoded event as read back from a topic.
type Envelope struct {
	Topic   string          `json:"topic"`
	Key     string          `json:"key"`
	EventID string          `json:"event_id"`
	Offset  int64           `json:"offset"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
}

// NewConsumer reads every topic in topics as part of groupID.
func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log}
}

// Start consumes until ctx is cancelled. Messages that are not JSON objects
// are logged and skipped; a handler error stops the loop.
func (c *Consumer) Start(ctx context.Context, handler func(Envelope) error) error {
	c.Logger.Info("KAFKA", "consumer started")
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		env, err := decode(msg)
		if err != nil {
			c.Logger.LogKafka("DECODE_FAILED", msg.Topic, fmt.Sprintf("offset %d: %v", msg.Offset, err))
			continue
		}
		if err := handler(env); err != nil {
			return err
		}
	}
}

func decode(msg kafka.Message) (Envelope, error) {
	var meta struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(msg.Value, &meta); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Topic:   msg.Topic,
		Key:     string(msg.Key),
		EventID: meta.EventID,
		Offset:  msg.Offset,
		Time:    msg.Time,
		Payload: json.RawMessage(msg.Value),
	}, nil
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
