package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

func sampleNote() *notes.Note {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &notes.Note{
		ID:        uuid.MustParse("6f1d3c2a-8b7e-4f0a-9c1d-2e3f4a5b6c7d"),
		Title:     "Groceries",
		Content:   "milk",
		OwnerID:   uuid.MustParse("11111111-2222-4333-8444-555555555555"),
		CreatedAt: created,
		UpdatedAt: created.Add(1500 * time.Millisecond),
	}
}

func TestPayloads(t *testing.T) {
	n := sampleNote()

	created, err := json.Marshal(NewNoteCreated(n))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "6f1d3c2a-8b7e-4f0a-9c1d-2e3f4a5b6c7d",
		"title": "Groceries",
		"owner_id": "11111111-2222-4333-8444-555555555555",
		"created_at": "2024-03-01T12:00:00Z"
	}`, string(created))

	updated, err := json.Marshal(NewNoteUpdated(n))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "6f1d3c2a-8b7e-4f0a-9c1d-2e3f4a5b6c7d",
		"title": "Groceries",
		"owner_id": "11111111-2222-4333-8444-555555555555",
		"updated_at": "2024-03-01T12:00:01.5Z"
	}`, string(updated))

	deleted, err := json.Marshal(NewNoteDeleted(n))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "6f1d3c2a-8b7e-4f0a-9c1d-2e3f4a5b6c7d",
		"owner_id": "11111111-2222-4333-8444-555555555555"
	}`, string(deleted))
}

func TestNoteEventHandlerDispatch(t *testing.T) {
	var buf bytes.Buffer
	h := NewNoteEventHandler(slog.New(slog.NewTextHandler(&buf, nil)))
	var seen []string
	h.OnCreated = func(_ context.Context, ev NoteCreated) error {
		seen = append(seen, "created:"+ev.Title)
		return nil
	}
	h.OnDeleted = func(_ context.Context, ev NoteDeleted) error {
		seen = append(seen, "deleted:"+ev.ID)
		return errors.New("downstream failed")
	}

	n := sampleNote()
	body, _ := json.Marshal(NewNoteCreated(n))
	require.NoError(t, h.HandleEvent(context.Background(), TopicNoteCreated, body))

	body, _ = json.Marshal(NewNoteUpdated(n))
	require.NoError(t, h.HandleEvent(context.Background(), TopicNoteUpdated, body))

	body, _ = json.Marshal(NewNoteDeleted(n))
	assert.EqualError(t, h.HandleEvent(context.Background(), TopicNoteDeleted, body), "downstream failed")

	assert.Equal(t, []string{"created:Groceries", "deleted:" + n.ID.String()}, seen)
	assert.Contains(t, buf.String(), "note updated")
}

func TestNoteEventHandlerRejects(t *testing.T) {
	h := NewNoteEventHandler(slog.New(slog.DiscardHandler))

	err := h.HandleEvent(context.Background(), "user.created", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownTopic)

	err = h.HandleEvent(context.Background(), TopicNoteCreated, []byte(`{not json`))
	assert.ErrorContains(t, err, "invalid event payload")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Publish(context.Background(), TopicNoteDeleted, NewNoteDeleted(sampleNote())))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TopicNoteDeleted, record["topic"])
	assert.Contains(t, record["payload"], "11111111-2222-4333-8444-555555555555")

	assert.Error(t, p.Publish(context.Background(), TopicNoteCreated, make(chan int)))
}

func TestRabbitRoundTrip(t *testing.T) {
	uri := os.Getenv("NOTES_API_TEST_AMQP_URI")
	if uri == "" {
		t.Skip("NOTES_API_TEST_AMQP_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	logger := slog.New(slog.DiscardHandler)
	exchange := "notes-test-" + uuid.NewString()

	received := make(chan NoteCreated, 1)
	h := NewNoteEventHandler(logger)
	h.OnCreated = func(_ context.Context, ev NoteCreated) error {
		received <- ev
		return nil
	}
	consumer := NewConsumer(ConsumerConfig{URI: uri, Exchange: exchange, Queue: exchange, Prefetch: 1}, h, logger)
	go consumer.Run(ctx)

	publisher, err := DialPublisher(ctx, RabbitConfig{
		URI:            uri,
		Exchange:       exchange,
		ConnectRetries: 3,
		RetryDelay:     100 * time.Millisecond,
		PublishTimeout: 5 * time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { publisher.Close() })

	want := NewNoteCreated(sampleNote())
	// The consumer declares its queue asynchronously; publish until it lands.
	for {
		require.NoError(t, publisher.Publish(ctx, TopicNoteCreated, want))
		select {
		case got := <-received:
			assert.Equal(t, want, got)
			return
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("event was not consumed")
		}
	}
}
