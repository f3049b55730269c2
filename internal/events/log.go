package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// LogPublisher writes events to the log instead of a broker. It is meant
// for local development where no broker runs.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "LogPublisher")}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error JSON-encoding %s payload: %w", topic, err)
	}
	p.logger.InfoContext(ctx, "event", "topic", topic, "payload", string(body))
	return nil
}
