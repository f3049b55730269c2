package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitConfig struct {
	URI      string
	Exchange string
	// ConnectRetries is the number of dial attempts made on startup.
	ConnectRetries int
	// RetryDelay is the first backoff delay; it doubles after every attempt.
	RetryDelay     time.Duration
	PublishTimeout time.Duration
}

// RabbitPublisher publishes persistent JSON messages to a durable topic
// exchange and waits for the broker confirm of each one.
type RabbitPublisher struct {
	cfg    RabbitConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialPublisher connects to the broker, retrying with exponential backoff.
func DialPublisher(ctx context.Context, cfg RabbitConfig, logger *slog.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{
		cfg:    cfg,
		logger: logger.With("component", "RabbitPublisher"),
	}

	retries := max(cfg.ConnectRetries, 1)
	delay := cfg.RetryDelay
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = p.reconnect(); err == nil {
			p.logger.Info("connected to message broker", "exchange", cfg.Exchange)
			return p, nil
		}
		p.logger.Warn("could not connect to message broker",
			"attempt", attempt,
			"retries", retries,
			"err", err)
		if attempt == retries {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, fmt.Errorf("failed to connect to message broker after %d attempts: %w", retries, err)
}

func (p *RabbitPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error JSON-encoding %s payload: %w", topic, err)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	if p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
	}

	p.logger.Debug("publishing event", "topic", topic)
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("error publishing %s: %w", topic, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("error awaiting confirm for %s: %w", topic, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected %s", topic)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.logger.Warn("broker channel closed; reconnecting")
	if err := p.reconnectLocked(); err != nil {
		return nil, err
	}
	return p.ch, nil
}

func (p *RabbitPublisher) reconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconnectLocked()
}

func (p *RabbitPublisher) reconnectLocked() error {
	_ = p.closeLocked()

	conn, err := amqp.Dial(p.cfg.URI)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := declareExchange(ch, p.cfg.Exchange); err != nil {
		conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("error enabling publisher confirms: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitPublisher) closeLocked() error {
	var result *multierror.Error
	if p.ch != nil && !p.ch.IsClosed() {
		if err := p.ch.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.ch, p.conn = nil, nil
	return result.ErrorOrNil()
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error declaring exchange %s: %w", exchange, err)
	}
	return nil
}
