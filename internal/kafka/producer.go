package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ms-preorder/internal/config"
	"ms-preorder/internal/events"
	"ms-preorder/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Logger *logger.Logger
}

// NewProducer returns a producer whose topic is chosen per message.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Logger: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, err.Error())
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.Logger.LogKafka("PUBLISHED", topic, fmt.Sprintf("key=%s", key))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// ---------------- EVENT SINK ----------------

// EventSink forwards bus events to their Kafka topics as JSON.
type EventSink struct {
	Producer *Producer
	Topics   map[string]string
}

func NewEventSink(p *Producer, topics config.TopicConfig) *EventSink {
	return &EventSink{
		Producer: p,
		Topics: map[string]string{
			events.NamePreOrderCreated: topics.PreOrderCreated,
			events.NamePreOrderResumed: topics.PreOrderResumed,
			events.NameCartSaved:       topics.CartSaved,
		},
	}
}

// TopicNames lists the configured topics, for EnsureTopicsExist.
func (s *EventSink) TopicNames() []string {
	out := make([]string, 0, len(s.Topics))
	for _, t := range s.Topics {
		if t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Handle is subscribed to every bus event. Unmapped events are ignored.
func (s *EventSink) Handle(ctx context.Context, e events.Event) error {
	topic := s.Topics[e.EventName()]
	if topic == "" {
		return nil
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.EventName(), err)
	}
	return s.Producer.Publish(ctx, topic, e.Key(), value)
}
