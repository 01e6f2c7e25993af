// Package kafka imports orders that partner platforms publish to a topic.
// Each message is an orderdraft.Draft encoded as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"courierhub/internal/adapters/in/orderdraft"
	"courierhub/internal/core/application/usecases/commands"

	"github.com/IBM/sarama"
	"gopkg.in/go-playground/validator.v9"
)

const consumeRetryDelay = time.Second

type OrderCreator interface {
	Handle(ctx context.Context, cmd commands.CreateAndDispatchOrderCommand) (commands.CreateAndDispatchResult, error)
}

type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && strings.TrimSpace(c.GroupID) != "" && strings.TrimSpace(c.Topic) != ""
}

// OrderImportConsumer feeds imported drafts into create-and-dispatch.
// Malformed messages are logged and skipped. A message whose order already
// exists counts as handled, so redelivery after a crash is harmless.
type OrderImportConsumer struct {
	group     sarama.ConsumerGroup
	topic     string
	creator   OrderCreator
	validator *validator.Validate
	logger    *slog.Logger
}

func NewOrderImportConsumer(cfg Config, creator OrderCreator, logger *slog.Logger) (*OrderImportConsumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}
	return newOrderImportConsumer(group, cfg.Topic, creator, logger), nil
}

func newOrderImportConsumer(
	group sarama.ConsumerGroup,
	topic string,
	creator OrderCreator,
	logger *slog.Logger,
) *OrderImportConsumer {
	return &OrderImportConsumer{
		group:     group,
		topic:     topic,
		creator:   creator,
		validator: orderdraft.NewValidator(),
		logger:    logger.With("component", "order_import", "topic", topic),
	}
}

// Run consumes until ctx is done. Broker errors are retried after a pause.
func (c *OrderImportConsumer) Run(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Warn("consume failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(consumeRetryDelay):
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *OrderImportConsumer) Close() error {
	return c.group.Close()
}

func (c *OrderImportConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *OrderImportConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *OrderImportConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.handle(sess.Context(), msg); err != nil {
			// leave the offset unmarked so the message comes back
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func (c *OrderImportConsumer) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)

	var draft orderdraft.Draft
	if err := json.Unmarshal(msg.Value, &draft); err != nil {
		log.Warn("skipping undecodable message", "error", err)
		return nil
	}
	cmd, err := draft.Command(c.validator)
	if err != nil {
		log.Warn("skipping invalid draft", "error", err)
		return nil
	}

	res, err := c.creator.Handle(ctx, cmd)
	switch {
	case errors.Is(err, commands.ErrOrderAlreadyExists):
		log.Info("order already imported", "order_id", cmd.OrderID().String())
		return nil
	case err != nil:
		log.Error("import failed", "order_id", cmd.OrderID().String(), "error", err)
		return err
	}

	log.Info("order imported", "order_id", res.OrderID.String(), "tracking_code", res.TrackingCode,
		"candidates", res.Candidates, "no_courier_available", res.NoCourierAvailable)
	return nil
}
