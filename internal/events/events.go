// Package events defines the note lifecycle events and the RabbitMQ
// publisher and consumer that carry them.
//
// Events are flat JSON payloads routed by their dot-separated topic name on a
// durable topic exchange. Identifiers and timestamps are strings; timestamps
// use RFC 3339 (ISO-8601).
package events

import (
	"context"
	"time"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

const (
	TopicNoteCreated = "note.created"
	TopicNoteUpdated = "note.updated"
	TopicNoteDeleted = "note.deleted"

	// NoteTopicPattern matches every note lifecycle topic.
	NoteTopicPattern = "note.*"
)

// Publisher announces a lifecycle event. Publish returns only after the bus
// accepted (or rejected) the message.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type NoteCreated struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

type NoteUpdated struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	OwnerID   string `json:"owner_id"`
	UpdatedAt string `json:"updated_at"`
}

type NoteDeleted struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

func NewNoteCreated(n *notes.Note) NoteCreated {
	return NoteCreated{
		ID:        n.ID.String(),
		Title:     n.Title,
		OwnerID:   n.OwnerID.String(),
		CreatedAt: formatTime(n.CreatedAt),
	}
}

func NewNoteUpdated(n *notes.Note) NoteUpdated {
	return NoteUpdated{
		ID:        n.ID.String(),
		Title:     n.Title,
		OwnerID:   n.OwnerID.String(),
		UpdatedAt: formatTime(n.UpdatedAt),
	}
}

func NewNoteDeleted(n *notes.Note) NoteDeleted {
	return NoteDeleted{
		ID:      n.ID.String(),
		OwnerID: n.OwnerID.String(),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
