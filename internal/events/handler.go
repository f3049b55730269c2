package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var ErrUnknownTopic = errors.New("unknown event topic")

// NoteEventHandler decodes note lifecycle events and logs them. Callbacks
// may be set to react to individual events.
type NoteEventHandler struct {
	logger *slog.Logger

	OnCreated func(context.Context, NoteCreated) error
	OnUpdated func(context.Context, NoteUpdated) error
	OnDeleted func(context.Context, NoteDeleted) error
}

func NewNoteEventHandler(logger *slog.Logger) *NoteEventHandler {
	return &NoteEventHandler{logger: logger.With("component", "NoteEventHandler")}
}

func (h *NoteEventHandler) HandleEvent(ctx context.Context, topic string, body []byte) error {
	switch topic {
	case TopicNoteCreated:
		var ev NoteCreated
		if err := decode(body, &ev); err != nil {
			return err
		}
		h.logger.Info("note created", "note_id", ev.ID, "owner_id", ev.OwnerID, "created_at", ev.CreatedAt)
		if h.OnCreated != nil {
			return h.OnCreated(ctx, ev)
		}
	case TopicNoteUpdated:
		var ev NoteUpdated
		if err := decode(body, &ev); err != nil {
			return err
		}
		h.logger.Info("note updated", "note_id", ev.ID, "owner_id", ev.OwnerID, "updated_at", ev.UpdatedAt)
		if h.OnUpdated != nil {
			return h.OnUpdated(ctx, ev)
		}
	case TopicNoteDeleted:
		var ev NoteDeleted
		if err := decode(body, &ev); err != nil {
			return err
		}
		h.logger.Info("note deleted", "note_id", ev.ID, "owner_id", ev.OwnerID)
		if h.OnDeleted != nil {
			return h.OnDeleted(ctx, ev)
		}
	default:
		h.logger.Warn("unknown event", "topic", topic)
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid event payload: %w", err)
	}
	return nil
}
