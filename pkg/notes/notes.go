package notes

import (
	"time"

	"github.com/google/uuid"
)

// EntityName is used in error messages that name the entity type.
const EntityName = "Note"

type Note struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheKey returns the key under which a snapshot of the note with the
// given id is cached.
func CacheKey(id uuid.UUID) string {
	return "note:" + id.String()
}

// Now is the clock used for note timestamps. Timestamps are kept in UTC at
// millisecond precision so they survive a round trip through every store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type NoteList struct {
	Notes []*Note `json:"notes"`
	Total int64   `json:"total"`
	Skip  int     `json:"skip"`
	Limit int     `json:"limit"`
}
