package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mrshanahan/notes-service/internal/middleware"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

// NoteService is the lifecycle the HTTP handlers drive.
type NoteService interface {
	Create(ctx context.Context, who notes.Identity, req notes.CreateNoteRequest) (*notes.Note, error)
	Get(ctx context.Context, who notes.Identity, req notes.GetNoteRequest) (*notes.Note, error)
	List(ctx context.Context, who notes.Identity, req notes.ListNotesRequest) (*notes.NoteList, error)
	Update(ctx context.Context, who notes.Identity, req notes.UpdateNoteRequest) (*notes.Note, error)
	Delete(ctx context.Context, who notes.Identity, req notes.DeleteNoteRequest) error
}

type NoteHandlers struct {
	service NoteService
}

func NewNoteHandlers(service NoteService) *NoteHandlers {
	return &NoteHandlers{service: service}
}

// NoteRequest is the body accepted by create and update.
type NoteRequest struct {
	Title   string     `json:"title"`
	Content string     `json:"content"`
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
}

func (h *NoteHandlers) ListNotes(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", notes.DefaultListLimit)
	if err != nil {
		return err
	}
	req := notes.ListNotesRequest{Skip: skip, Limit: limit}
	if ownerStr := c.Query("owner_id"); ownerStr != "" {
		owner, err := uuid.Parse(ownerStr)
		if err != nil {
			return &notes.ValidationError{Err: fmt.Errorf("owner_id: %w", err)}
		}
		req.OwnerID = &owner
	}

	list, err := h.service.List(c.UserContext(), middleware.Identity(c), req)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// queryInt reads an integer query parameter. Unlike fiber's QueryInt it
// rejects values that are present but not integers.
func queryInt(c *fiber.Ctx, key string, defaultValue int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &notes.ValidationError{Err: fmt.Errorf("%s: must be an integer", key)}
	}
	return v, nil
}

func (h *NoteHandlers) CreateNote(c *fiber.Ctx) error {
	data := &NoteRequest{}
	if err := decodeBody(c, data); err != nil {
		return err
	}

	note, err := h.service.Create(c.UserContext(), middleware.Identity(c), notes.CreateNoteRequest{
		Title:   data.Title,
		Content: data.Content,
		OwnerID: data.OwnerID,
	})
	if err != nil {
		return err
	}
	c.Status(fiber.StatusCreated)
	return c.JSON(note)
}

func (h *NoteHandlers) GetNote(c *fiber.Ctx) error {
	id, err := noteIDFromRoute(c)
	if err != nil {
		return err
	}
	note, err := h.service.Get(c.UserContext(), middleware.Identity(c), notes.GetNoteRequest{ID: id})
	if err != nil {
		return err
	}
	return c.JSON(note)
}

func (h *NoteHandlers) UpdateNote(c *fiber.Ctx) error {
	id, err := noteIDFromRoute(c)
	if err != nil {
		return err
	}
	data := &NoteRequest{}
	if err := decodeBody(c, data); err != nil {
		return err
	}

	note, err := h.service.Update(c.UserContext(), middleware.Identity(c), notes.UpdateNoteRequest{
		ID:      id,
		Title:   data.Title,
		Content: data.Content,
	})
	if err != nil {
		return err
	}
	return c.JSON(note)
}

func (h *NoteHandlers) DeleteNote(c *fiber.Ctx) error {
	id, err := noteIDFromRoute(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), middleware.Identity(c), notes.DeleteNoteRequest{ID: id}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func noteIDFromRoute(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("noteID"))
	if err != nil {
		return uuid.Nil, &notes.ValidationError{Err: fmt.Errorf("note id: %w", err)}
	}
	return id, nil
}

func decodeBody(c *fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return &notes.ValidationError{Err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}
