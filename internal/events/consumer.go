package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivered event.
type Handler interface {
	HandleEvent(ctx context.Context, topic string, body []byte) error
}

type ConsumerConfig struct {
	URI      string
	Exchange string
	Queue    string
	Prefetch int
}

// Consumer binds a durable queue to every note topic and feeds deliveries
// to a Handler. Deliveries the handler fails on are rejected without
// requeue.
type Consumer struct {
	cfg     ConsumerConfig
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "RabbitConsumer"),
	}
}

// Run consumes until ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URI)
	if err != nil {
		return fmt.Errorf("error connecting to message broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("error opening channel: %w", err)
	}
	defer ch.Close()

	if err := declareExchange(ch, c.cfg.Exchange); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error declaring queue %s: %w", c.cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, NoteTopicPattern, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("error binding queue %s: %w", q.Name, err)
	}
	if c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("error setting prefetch: %w", err)
		}
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error starting consumer on %s: %w", q.Name, err)
	}
	c.logger.Info("consumer started", "queue", q.Name, "pattern", NoteTopicPattern)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	logger := c.logger.With("topic", d.RoutingKey, "message_id", d.MessageId)
	if err := c.handler.HandleEvent(ctx, d.RoutingKey, d.Body); err != nil {
		logger.Error("failed to process event", "err", err)
		if err := d.Nack(false, false); err != nil {
			logger.Error("failed to reject delivery", "err", err)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		logger.Error("failed to ack delivery", "err", err)
	}
}
