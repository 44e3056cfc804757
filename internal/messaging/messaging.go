// Package messaging carries domain events between the API and the workers.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
)

// Message represents a message consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// propagator carries the publisher's trace into consumer spans via headers.
var propagator = propagation.TraceContext{}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	case "memory":
		logger.Info("messaging uses in-process queue", zap.String("topic", topic))
		return NewMemoryClient(topic, 64), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, []byte, []byte) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

// MemoryClient is a buffered in-process queue. Consumers compete for
// messages; a failed handler puts the message back.
type MemoryClient struct {
	topic  string
	queue  chan Message
	offset chan int64
}

// NewMemoryClient returns a queue holding up to size pending messages.
func NewMemoryClient(topic string, size int) *MemoryClient {
	offset := make(chan int64, 1)
	offset <- 0
	return &MemoryClient{topic: topic, queue: make(chan Message, size), offset: offset}
}

// Publish enqueues a message, blocking while the queue is full.
func (m *MemoryClient) Publish(ctx context.Context, key []byte, value []byte) error {
	headers := map[string]string{}
	propagator.Inject(ctx, propagation.MapCarrier(headers))

	next := <-m.offset
	m.offset <- next + 1

	msg := Message{
		Topic:   m.topic,
		Key:     append([]byte(nil), key...),
		Value:   append([]byte(nil), value...),
		Headers: headers,
		Offset:  next,
		Time:    time.Now().UTC(),
	}
	select {
	case m.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume hands messages to handler until ctx ends.
func (m *MemoryClient) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.queue:
			msgCtx := propagator.Extract(ctx, propagation.MapCarrier(msg.Headers))
			if err := handler(msgCtx, msg); err != nil {
				select {
				case m.queue <- msg:
				default:
				}
			}
		}
	}
}

// Topic returns the queue's topic.
func (m *MemoryClient) Topic() string { return m.topic }

// Pending reports the number of queued messages.
func (m *MemoryClient) Pending() int { return len(m.queue) }

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte) error {
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)

	msg := kafka.Message{Topic: k.topic, Key: key, Value: value}
	for _, name := range carrier.Keys() {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(carrier.Get(name))})
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		wrapped := fromKafka(msg)
		msgCtx := propagator.Extract(ctx, propagation.MapCarrier(wrapped.Headers))
		if err := handler(msgCtx, wrapped); err != nil {
			// Uncommitted messages are redelivered after a rebalance.
			k.logger.Error("message handler failed",
				zap.Error(err),
				zap.String("key", string(msg.Key)),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func fromKafka(msg kafka.Message) Message {
	wrapped := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		wrapped.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			wrapped.Headers[h.Key] = string(h.Value)
		}
	}
	return wrapped
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) Client {
	kcfg := cfg.Messaging.Kafka
	kafkaLog := logger.Named("kafka")

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kcfg.Brokers...),
		Topic:        kcfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafka.LoggerFunc(kafkaLog.Sugar().Debugf),
		ErrorLogger:  kafka.LoggerFunc(kafkaLog.Sugar().Errorf),
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kcfg.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kcfg.Topic,
		MinBytes:       kcfg.MinBytes,
		MaxBytes:       kcfg.MaxBytes,
		CommitInterval: kcfg.CommitInterval,
		Logger:         kafka.LoggerFunc(kafkaLog.Sugar().Debugf),
		ErrorLogger:    kafka.LoggerFunc(kafkaLog.Sugar().Errorf),
		Dialer: &kafka.Dialer{
			Timeout:  kcfg.ConnectTimeout,
			ClientID: kcfg.ClientID,
		},
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")
			return errors.Join(writer.Close(), reader.Close())
		},
	})

	return &kafkaClient{writer: writer, reader: reader, topic: kcfg.Topic, logger: logger}
}
