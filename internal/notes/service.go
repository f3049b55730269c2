// Package notes implements the note lifecycle: authorization, per-owner
// quota, persistence through the cache-aside repository and publication of
// lifecycle events.
//
// Every mutation runs the same fixed sequence. The caller is authorized
// before anything is written, the quota is checked before a note is built,
// the store write commits before the cache entry is invalidated, and the
// event is published last. Publication is awaited. If it fails the store
// change stays committed and the operation returns a *notes.PublishError so
// the caller can tell "saved and announced" from "saved, not announced".
//
// The Service holds no mutable state and takes no per-note locks. Two
// concurrent updates of the same note race in the store and the last write
// wins; there is no version check. The quota has the same gap: it counts the
// owner's notes and then inserts, so concurrent creates by one owner can each
// pass the check and leave the owner above MaxNotesPerUser.
package notes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/mrshanahan/notes-service/internal/cache"
	"github.com/mrshanahan/notes-service/internal/events"
	"github.com/mrshanahan/notes-service/internal/repository"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

const (
	DefaultMaxNotesPerUser = 1
	DefaultCacheTTL        = time.Hour
)

// Settings are the policy values the Service is constructed with.
type Settings struct {
	MaxNotesPerUser int
	CacheTTL        time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxNotesPerUser: DefaultMaxNotesPerUser,
		CacheTTL:        DefaultCacheTTL,
	}
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.MaxNotesPerUser, validation.Required, validation.Min(1)),
		validation.Field(&s.CacheTTL, validation.Required, validation.Min(time.Second)),
	)
}

// Deps are the long-lived collaborators shared by every request. They are
// owned by the process; the Service never closes them. Cache may be nil.
type Deps struct {
	Store     repository.Store
	Cache     cache.Cache
	Publisher events.Publisher
	Logger    *slog.Logger
}

type Service struct {
	repo      *repository.Repository
	publisher events.Publisher
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(deps Deps, settings Settings) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, errors.New("notes service requires a store")
	}
	if deps.Publisher == nil {
		return nil, errors.New("notes service requires an event publisher")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repository.New(deps.Store, deps.Cache, settings.CacheTTL, logger),
		publisher: deps.Publisher,
		settings:  settings,
		logger:    logger.With("component", "NoteService"),
		now:       notes.Now,
	}, nil
}

// Create stores a new note owned by the caller, or by req.OwnerID when the
// caller is an administrator.
func (s *Service) Create(ctx context.Context, who notes.Identity, req notes.CreateNoteRequest) (*notes.Note, error) {
	logger, err := s.requestLogger(ctx, who)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var owner uuid.UUID
	switch who := who.(type) {
	case notes.Owner:
		owner = who.ID
	case notes.Administrator:
		owner = who.ID
		if req.OwnerID != nil {
			owner = *req.OwnerID
		}
	}
	logger = logger.With("owner_id", owner)

	count, err := s.repo.Count(ctx, &owner)
	if err != nil {
		logger.Error("failed to count notes for quota", "err", err)
		return nil, err
	}
	if count >= int64(s.settings.MaxNotesPerUser) {
		logger.Info("note quota reached", "count", count, "limit", s.settings.MaxNotesPerUser)
		return nil, &notes.LimitExceededError{Entity: notes.EntityName, Limit: s.settings.MaxNotesPerUser}
	}

	now := s.now()
	note := &notes.Note{
		ID:        uuid.New(),
		Title:     req.Title,
		Content:   req.Content,
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		logger.Error("failed to create note", "err", err)
		return nil, err
	}
	logger.Info("note created", "note_id", note.ID)

	if err := s.publish(ctx, logger, events.TopicNoteCreated, note.ID, events.NewNoteCreated(note)); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Get(ctx context.Context, who notes.Identity, req notes.GetNoteRequest) (*notes.Note, error) {
	logger, err := s.requestLogger(ctx, who)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	note, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		logger.Error("failed to load note", "note_id", req.ID, "err", err)
		return nil, err
	}
	if err := authorize(who, req.ID, note); err != nil {
		logger.Info("note lookup rejected", "note_id", req.ID, "err", err)
		return nil, err
	}
	return note, nil
}

// List returns a page of notes and the total number of notes in the same
// owner scope. Regular users only ever see their own notes.
func (s *Service) List(ctx context.Context, who notes.Identity, req notes.ListNotesRequest) (*notes.NoteList, error) {
	logger, err := s.requestLogger(ctx, who)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var owner *uuid.UUID
	switch who := who.(type) {
	case notes.Owner:
		id := who.ID
		owner = &id
	case notes.Administrator:
		owner = req.OwnerID
	}

	total, err := s.repo.Count(ctx, owner)
	if err != nil {
		logger.Error("failed to count notes", "err", err)
		return nil, err
	}
	found, err := s.repo.List(ctx, owner, req.Skip, req.Limit)
	if err != nil {
		logger.Error("failed to list notes", "err", err)
		return nil, err
	}
	if found == nil {
		found = []*notes.Note{}
	}
	return &notes.NoteList{
		Notes: found,
		Total: total,
		Skip:  req.Skip,
		Limit: req.Limit,
	}, nil
}

// Update replaces the title and content of a note. The current state is
// read from the store, never from the cache.
func (s *Service) Update(ctx context.Context, who notes.Identity, req notes.UpdateNoteRequest) (*notes.Note, error) {
	logger, err := s.requestLogger(ctx, who)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With("note_id", req.ID)

	current, err := s.repo.GetFresh(ctx, req.ID)
	if err != nil {
		logger.Error("failed to load note for update", "err", err)
		return nil, err
	}
	if err := authorize(who, req.ID, current); err != nil {
		logger.Info("note update rejected", "err", err)
		return nil, err
	}

	updated := *current
	updated.Title = req.Title
	updated.Content = req.Content
	updated.UpdatedAt = s.now()
	if updated.UpdatedAt.Before(current.UpdatedAt) {
		updated.UpdatedAt = current.UpdatedAt
	}

	found, err := s.repo.Update(ctx, &updated)
	if err != nil {
		logger.Error("failed to update note", "err", err)
		return nil, err
	}
	if !found {
		logger.Info("note was deleted during update")
		return nil, notFound(req.ID)
	}
	logger.Info("note updated")

	if err := s.publish(ctx, logger, events.TopicNoteUpdated, updated.ID, events.NewNoteUpdated(&updated)); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, who notes.Identity, req notes.DeleteNoteRequest) error {
	logger, err := s.requestLogger(ctx, who)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	logger = logger.With("note_id", req.ID)

	current, err := s.repo.GetFresh(ctx, req.ID)
	if err != nil {
		logger.Error("failed to load note for delete", "err", err)
		return err
	}
	if err := authorize(who, req.ID, current); err != nil {
		logger.Info("note delete rejected", "err", err)
		return err
	}

	found, err := s.repo.Delete(ctx, req.ID)
	if err != nil {
		logger.Error("failed to delete note", "err", err)
		return err
	}
	if !found {
		logger.Info("note was already deleted")
		return notFound(req.ID)
	}
	logger.Info("note deleted")

	return s.publish(ctx, logger, events.TopicNoteDeleted, current.ID, events.NewNoteDeleted(current))
}

func (s *Service) requestLogger(ctx context.Context, who notes.Identity) (*slog.Logger, error) {
	switch who.(type) {
	case notes.Owner, notes.Administrator:
	default:
		s.logger.Warn("rejecting request without a valid identity", "request_id", notes.RequestID(ctx))
		return nil, &notes.AuthenticationError{Reason: "missing or unsupported identity"}
	}
	return s.logger.With(
		"request_id", notes.RequestID(ctx),
		"user_id", who.UserID(),
		"role", who.Role(),
	), nil
}

// publish awaits the event after the store change has committed. The
// request context may already be cancelled by then; the announcement is
// still attempted and the publisher applies its own timeout.
func (s *Service) publish(ctx context.Context, logger *slog.Logger, topic string, id uuid.UUID, payload any) error {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), topic, payload); err != nil {
		logger.Error("event not published; change is committed",
			"topic", topic,
			"note_id", id,
			"err", err)
		return &notes.PublishError{Topic: topic, EntityID: id.String(), Err: err}
	}
	logger.Debug("event published", "topic", topic, "note_id", id)
	return nil
}

// authorize decides whether who may act on note. Administrators may act on
// any note that exists.
func authorize(who notes.Identity, id uuid.UUID, note *notes.Note) error {
	if note == nil {
		return notFound(id)
	}
	if owner, ok := who.(notes.Owner); ok && note.OwnerID != owner.ID {
		return &notes.AccessDeniedError{Entity: notes.EntityName, ID: id.String()}
	}
	return nil
}

func notFound(id uuid.UUID) error {
	return &notes.NotFoundError{Entity: notes.EntityName, ID: id.String()}
}
