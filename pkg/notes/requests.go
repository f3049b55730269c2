package notes

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	MaxTitleLength   = 100
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	// OwnerID is honored only for administrators.
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
}

func (r CreateNoteRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.OwnerID, validation.By(nonNilUUID)),
	))
}

type GetNoteRequest struct {
	ID uuid.UUID `json:"id"`
}

func (r GetNoteRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.By(nonNilUUID)),
	))
}

type ListNotesRequest struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	// OwnerID filters the listing for administrators. Regular users are
	// always scoped to their own notes.
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
}

func (r ListNotesRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Skip, validation.Min(0)),
		validation.Field(&r.Limit, validation.Required, validation.Min(1), validation.Max(MaxListLimit)),
		validation.Field(&r.OwnerID, validation.By(nonNilUUID)),
	))
}

type UpdateNoteRequest struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
}

func (r UpdateNoteRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.By(nonNilUUID)),
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&r.Content, validation.Required),
	))
}

type DeleteNoteRequest struct {
	ID uuid.UUID `json:"id"`
}

func (r DeleteNoteRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.By(nonNilUUID)),
	))
}

func nonNilUUID(value interface{}) error {
	switch v := value.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return errors.New("must be a non-nil UUID")
		}
	case *uuid.UUID:
		if v != nil && *v == uuid.Nil {
			return errors.New("must be a non-nil UUID")
		}
	}
	return nil
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}
