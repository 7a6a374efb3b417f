// Package events publishes delivery notifications for sent news documents.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/m3rciful/newsbot/core/logger"
)

// Delivery describes one document handed to a user.
type Delivery struct {
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	Descriptor string    `json:"descriptor"`
	Entries    int       `json:"entries"`
	Format     string    `json:"format"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher receives deliveries. Implementations must not block the conversation for long.
type Publisher interface {
	Publish(ctx context.Context, d Delivery) error
	Close() error
}

// Config selects the Kafka sink; no brokers means deliveries are dropped.
type Config struct {
	Brokers []string      `yaml:"brokers" envconfig:"EVENTS_KAFKA_BROKERS"`
	Topic   string        `yaml:"topic" envconfig:"EVENTS_KAFKA_TOPIC"`
	Timeout time.Duration `yaml:"timeout" envconfig:"EVENTS_TIMEOUT"`
}

const (
	defaultTopic   = "newsbot.deliveries"
	defaultTimeout = 5 * time.Second
)

// New returns a Kafka publisher when brokers are configured, otherwise Nop.
func New(cfg Config) Publisher {
	var brokers []string
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return Nop{}
	}
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		MaxAttempts:            3,
	}
	return NewKafka(w, cfg.Timeout)
}

// Nop discards deliveries.
type Nop struct{}

func (Nop) Publish(context.Context, Delivery) error { return nil }
func (Nop) Close() error                            { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes deliveries as JSON keyed by user id, so one user's events stay ordered within a partition.
type Kafka struct {
	w       messageWriter
	timeout time.Duration
}

// NewKafka wraps a kafka-go writer.
func NewKafka(w messageWriter, timeout time.Duration) *Kafka {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Kafka{w: w, timeout: timeout}
}

// Publish encodes and writes d.
func (k *Kafka) Publish(ctx context.Context, d Delivery) error {
	if d.SentAt.IsZero() {
		d.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("events: encode delivery: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	start := time.Now()
	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(d.Kind)},
		},
	})
	if err != nil {
		logger.Warn(ctx, logger.CompEvents, "events.publish",
			slog.String("status", "fail"),
			slog.String("kind", d.Kind),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("events: publish: %w", err)
	}
	logger.Debug(ctx, logger.CompEvents, "events.publish",
		slog.String("status", "ok"),
		slog.String("kind", d.Kind),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// Close flushes pending writes.
func (k *Kafka) Close() error {
	return k.w.Close()
}
