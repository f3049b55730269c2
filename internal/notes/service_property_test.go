package notes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/mrshanahan/notes-service/internal/events"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

func titleGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9 ]{1,100}`)
}

func contentGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9 .,!?\n]{1,200}`)
}

func testCreate_Roundtrip_Properties(t *rapid.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	owner := notes.Owner{ID: uuid.New()}
	title := titleGenerator().Draw(t, "title")
	content := contentGenerator().Draw(t, "content")

	created, err := f.svc.Create(ctx, owner, notes.CreateNoteRequest{Title: title, Content: content})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("created_at %v != updated_at %v", created.CreatedAt, created.UpdatedAt)
	}
	if f.publisher.Count(events.TopicNoteCreated) != 1 {
		t.Fatalf("expected exactly one created event, got %d", f.publisher.Count(events.TopicNoteCreated))
	}
	ev := f.publisher.Events()[0].Payload.(events.NoteCreated)
	if ev.ID != created.ID.String() || ev.Title != title || ev.OwnerID != owner.ID.String() {
		t.Fatalf("event %+v does not match note %+v", ev, created)
	}

	// Read twice: once from the store, once from the cache.
	for i := 0; i < 2; i++ {
		got, err := f.svc.Get(ctx, owner, notes.GetNoteRequest{ID: created.ID})
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if *got != *created {
			t.Fatalf("read %d returned %+v, want %+v", i, got, created)
		}
	}
}

func TestCreate_Roundtrip_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCreate_Roundtrip_Properties)
}

func testCreate_QuotaBlocksWrites_Properties(t *rapid.T) {
	limit := rapid.IntRange(1, 5).Draw(t, "limit")
	attempts := rapid.IntRange(limit, limit+5).Draw(t, "attempts")
	f := newFixture(t, limit)
	ctx := context.Background()
	owner := notes.Owner{ID: uuid.New()}

	for i := 0; i < attempts; i++ {
		_, err := f.svc.Create(ctx, owner, notes.CreateNoteRequest{Title: "n", Content: "c"})
		if i < limit && err != nil {
			t.Fatalf("create %d under quota failed: %v", i, err)
		}
		if i >= limit && err == nil {
			t.Fatalf("create %d over quota succeeded", i)
		}
	}
	if f.store.Creates != limit {
		t.Fatalf("store saw %d writes, want %d", f.store.Creates, limit)
	}
	if got := f.publisher.Count(events.TopicNoteCreated); got != limit {
		t.Fatalf("published %d created events, want %d", got, limit)
	}
}

func TestCreate_QuotaBlocksWrites_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCreate_QuotaBlocksWrites_Properties)
}

func testUpdate_Sequence_Properties(t *rapid.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	owner := notes.Owner{ID: uuid.New()}
	admin := notes.Administrator{ID: uuid.New()}

	original, err := f.svc.Create(ctx, owner, notes.CreateNoteRequest{Title: "start", Content: "start"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	prev := original
	steps := rapid.IntRange(1, 10).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		// The clock may jump in either direction between updates.
		f.tick(time.Duration(rapid.IntRange(-3600, 3600).Draw(t, "skew")) * time.Second)
		who := rapid.SampledFrom([]notes.Identity{owner, admin}).Draw(t, "who")
		title := titleGenerator().Draw(t, "title")

		if rapid.Bool().Draw(t, "readFirst") {
			if _, err := f.svc.Get(ctx, owner, notes.GetNoteRequest{ID: original.ID}); err != nil {
				t.Fatalf("get failed: %v", err)
			}
		}

		updated, err := f.svc.Update(ctx, who, notes.UpdateNoteRequest{ID: original.ID, Title: title, Content: "c"})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.UpdatedAt.Before(prev.UpdatedAt) {
			t.Fatalf("updated_at went backwards: %v -> %v", prev.UpdatedAt, updated.UpdatedAt)
		}
		if updated.ID != original.ID || updated.OwnerID != original.OwnerID || !updated.CreatedAt.Equal(original.CreatedAt) {
			t.Fatalf("immutable fields changed: %+v -> %+v", original, updated)
		}

		got, err := f.svc.Get(ctx, owner, notes.GetNoteRequest{ID: original.ID})
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Title != title {
			t.Fatalf("get after update returned stale title %q, want %q", got.Title, title)
		}
		prev = updated
	}
	if got := f.publisher.Count(events.TopicNoteUpdated); got != steps {
		t.Fatalf("published %d updated events, want %d", got, steps)
	}
}

func TestUpdate_Sequence_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testUpdate_Sequence_Properties)
}

func testGet_AccessMatrix_Properties(t *rapid.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	owner := notes.Owner{ID: uuid.New()}
	n, err := f.svc.Create(ctx, owner, notes.CreateNoteRequest{Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	isAdmin := rapid.Bool().Draw(t, "isAdmin")
	isOwner := rapid.Bool().Draw(t, "isOwner")
	id := uuid.New()
	if isOwner {
		id = owner.ID
	}
	var who notes.Identity = notes.Owner{ID: id}
	if isAdmin {
		who = notes.Administrator{ID: id}
	}

	_, err = f.svc.Get(ctx, who, notes.GetNoteRequest{ID: n.ID})
	allowed := isAdmin || isOwner
	if allowed && err != nil {
		t.Fatalf("expected access for %+v, got %v", who, err)
	}
	if !allowed && err == nil {
		t.Fatalf("expected access denied for %+v", who)
	}
}

func TestGet_AccessMatrix_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testGet_AccessMatrix_Properties)
}
