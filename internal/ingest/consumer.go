package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

const Source = "kafka"

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Submitter interface {
	Submit(req model.EnqueueRequest, source string) (string, error)
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})
}

// Consumer turns alarm events from a topic into queued messages. Events are
// committed once queued; undecodable or invalid events are committed and
// skipped.
type Consumer struct {
	reader    MessageReader
	submitter Submitter
	log       *slog.Logger

	maxBackoff time.Duration
}

func NewConsumer(reader MessageReader, submitter Submitter, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		reader:     reader,
		submitter:  submitter,
		log:        log,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is done or the engine stops accepting messages.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Warn("failed to close kafka reader", slog.Any("error", err))
		}
	}()

	c.log.Info("alarm event consumer started")

	backoff := 500 * time.Millisecond
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("alarm event consumer stopping")
				return nil
			}
			c.log.Error("error fetching alarm event", slog.Any("error", err))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < c.maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = 500 * time.Millisecond

		if stop := c.handle(ctx, msg); stop {
			return nil
		}
	}
}

// handle processes one event and reports whether the consumer should stop.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	log := c.log.With(
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	var req model.EnqueueRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		log.Error("failed to decode alarm event, skipping", slog.Any("error", err))
		c.commit(ctx, log, msg)
		return false
	}

	alarmID, err := c.submitter.Submit(req, Source)
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		log.Warn("invalid alarm event, skipping", slog.Any("error", err))
	case err != nil:
		// Left uncommitted so the event is redelivered after restart.
		log.Warn("alarm event not queued", slog.Any("error", err))
		return true
	default:
		log.Debug("alarm event queued", slog.String("alarm_id", alarmID))
	}

	c.commit(ctx, log, msg)
	return false
}

func (c *Consumer) commit(ctx context.Context, log *slog.Logger, msg kafka.Message) {
	if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		log.Error("failed to commit alarm event", slog.Any("error", err))
	}
}
