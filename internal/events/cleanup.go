// Package events carries cleanup requests for stored objects that no longer
// have a metadata row.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	ReasonDeleted      = "deleted"
	ReasonInsertFailed = "insert_failed"
)

type CleanupEvent struct {
	UserID string   `json:"user_id"`
	Paths  []string `json:"paths"`
	Reason string   `json:"reason"`
}

type Publisher interface {
	PublishCleanup(ctx context.Context, ev CleanupEvent) error
}

// Deleter is satisfied by objectstore.Store.
type Deleter interface {
	Delete(ctx context.Context, objectPath string) error
}

// Cleaner deletes the objects named by an event.
type Cleaner struct {
	store Deleter
	log   *zap.Logger
}

func NewCleaner(store Deleter, log *zap.Logger) *Cleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{store: store, log: log}
}

// Handle attempts every path and joins the failures.
func (c *Cleaner) Handle(ctx context.Context, ev CleanupEvent) error {
	var errs []error
	for _, p := range ev.Paths {
		if p == "" {
			continue
		}
		if err := c.store.Delete(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
			continue
		}
		c.log.Info("stored object removed", zap.String("path", p), zap.String("reason", ev.Reason), zap.String("user_id", ev.UserID))
	}
	return errors.Join(errs...)
}

// InlinePublisher handles events immediately, for deployments without Kafka.
type InlinePublisher struct {
	cleaner *Cleaner
}

func NewInlinePublisher(c *Cleaner) *InlinePublisher {
	return &InlinePublisher{cleaner: c}
}

func (p *InlinePublisher) PublishCleanup(ctx context.Context, ev CleanupEvent) error {
	return p.cleaner.Handle(ctx, ev)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishCleanup(ctx context.Context, ev CleanupEvent) error {
	const op = "events.PublishCleanup"

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.UserID), Value: value}); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Consumer reads cleanup events from Kafka and hands them to a Cleaner.
type Consumer struct {
	reader  MessageReader
	cleaner *Cleaner
	log     *zap.Logger
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

func NewConsumer(r MessageReader, c *Cleaner, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: r, cleaner: c, log: log}
}

// Run consumes until ctx is cancelled. Malformed messages and failed
// deletions are logged and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("error reading cleanup message", zap.Error(err))
			continue
		}

		var ev CleanupEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Warn("dropping malformed cleanup message", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if err := c.cleaner.Handle(ctx, ev); err != nil {
			c.log.Error("cleanup failed", zap.String("user_id", ev.UserID), zap.Strings("paths", ev.Paths), zap.Error(err))
		}
	}
}
