package rpc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

// The request and response types mirror the notes.v1 messages field for
// field. They travel as protobuf through dynamicpb; see descriptor.go.

type CreateNoteRequest struct {
	Title   string
	Content string
	// OwnerID is honored for administrators only.
	OwnerID string
}

type GetNoteRequest struct {
	EntityID string
}

type ListNotesRequest struct {
	Skip    int32
	Limit   int32
	OwnerID string
}

type UpdateNoteRequest struct {
	EntityID string
	Title    string
	Content  string
}

type DeleteNoteRequest struct {
	EntityID string
}

type NoteResponse struct {
	ID        string
	Title     string
	Content   string
	OwnerID   string
	CreatedAt string
	UpdatedAt string
}

type ListNotesResponse struct {
	Notes []*NoteResponse
	Total int64
}

type DeleteNoteResponse struct {
	Success bool
}

func (r *CreateNoteRequest) toProto() proto.Message {
	m := dynamicpb.NewMessage(createNoteRequestDesc)
	setString(m, "title", r.Title)
	setString(m, "content", r.Content)
	setString(m, "owner_id", r.OwnerID)
	return m
}

func createNoteRequestFrom(m protoreflect.Message) *CreateNoteRequest {
	return &CreateNoteRequest{
		Title:   getString(m, "title"),
		Content: getString(m, "content"),
		OwnerID: getString(m, "owner_id"),
	}
}

func (r *GetNoteRequest) toProto() proto.Message {
	m := dynamicpb.NewMessage(getNoteRequestDesc)
	setString(m, "entity_id", r.EntityID)
	return m
}

func getNoteRequestFrom(m protoreflect.Message) *GetNoteRequest {
	return &GetNoteRequest{EntityID: getString(m, "entity_id")}
}

func (r *ListNotesRequest) toProto() proto.Message {
	m := dynamicpb.NewMessage(listNotesRequestDesc)
	m.Set(field(m, "skip"), protoreflect.ValueOfInt32(r.Skip))
	m.Set(field(m, "limit"), protoreflect.ValueOfInt32(r.Limit))
	setString(m, "owner_id", r.OwnerID)
	return m
}

func listNotesRequestFrom(m protoreflect.Message) *ListNotesRequest {
	return &ListNotesRequest{
		Skip:    int32(m.Get(field(m, "skip")).Int()),
		Limit:   int32(m.Get(field(m, "limit")).Int()),
		OwnerID: getString(m, "owner_id"),
	}
}

func (r *UpdateNoteRequest) toProto() proto.Message {
	m := dynamicpb.NewMessage(updateNoteRequestDesc)
	setString(m, "entity_id", r.EntityID)
	setString(m, "title", r.Title)
	setString(m, "content", r.Content)
	return m
}

func updateNoteRequestFrom(m protoreflect.Message) *UpdateNoteRequest {
	return &UpdateNoteRequest{
		EntityID: getString(m, "entity_id"),
		Title:    getString(m, "title"),
		Content:  getString(m, "content"),
	}
}

func (r *DeleteNoteRequest) toProto() proto.Message {
	m := dynamicpb.NewMessage(deleteNoteRequestDesc)
	setString(m, "entity_id", r.EntityID)
	return m
}

func deleteNoteRequestFrom(m protoreflect.Message) *DeleteNoteRequest {
	return &DeleteNoteRequest{EntityID: getString(m, "entity_id")}
}

func (r *NoteResponse) toProto() proto.Message {
	m := dynamicpb.NewMessage(noteResponseDesc)
	r.fill(m)
	return m
}

func (r *NoteResponse) fill(m protoreflect.Message) {
	setString(m, "id", r.ID)
	setString(m, "title", r.Title)
	setString(m, "content", r.Content)
	setString(m, "owner_id", r.OwnerID)
	setString(m, "created_at", r.CreatedAt)
	setString(m, "updated_at", r.UpdatedAt)
}

func noteResponseFrom(m protoreflect.Message) *NoteResponse {
	return &NoteResponse{
		ID:        getString(m, "id"),
		Title:     getString(m, "title"),
		Content:   getString(m, "content"),
		OwnerID:   getString(m, "owner_id"),
		CreatedAt: getString(m, "created_at"),
		UpdatedAt: getString(m, "updated_at"),
	}
}

func (r *ListNotesResponse) toProto() proto.Message {
	m := dynamicpb.NewMessage(listNotesResponseDesc)
	list := m.Mutable(field(m, "notes")).List()
	for _, n := range r.Notes {
		item := list.NewElement()
		n.fill(item.Message())
		list.Append(item)
	}
	m.Set(field(m, "total"), protoreflect.ValueOfInt64(r.Total))
	return m
}

func listNotesResponseFrom(m protoreflect.Message) *ListNotesResponse {
	list := m.Get(field(m, "notes")).List()
	resp := &ListNotesResponse{
		Notes: make([]*NoteResponse, 0, list.Len()),
		Total: m.Get(field(m, "total")).Int(),
	}
	for i := 0; i < list.Len(); i++ {
		resp.Notes = append(resp.Notes, noteResponseFrom(list.Get(i).Message()))
	}
	return resp
}

func (r *DeleteNoteResponse) toProto() proto.Message {
	m := dynamicpb.NewMessage(deleteNoteResponseDesc)
	m.Set(field(m, "success"), protoreflect.ValueOfBool(r.Success))
	return m
}

func deleteNoteResponseFrom(m protoreflect.Message) *DeleteNoteResponse {
	return &DeleteNoteResponse{Success: m.Get(field(m, "success")).Bool()}
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

func setString(m protoreflect.Message, name protoreflect.Name, value string) {
	m.Set(field(m, name), protoreflect.ValueOfString(value))
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func toNoteResponse(n *notes.Note) *NoteResponse {
	return &NoteResponse{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		OwnerID:   n.OwnerID.String(),
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, &notes.ValidationError{Err: fmt.Errorf("%s: %w", field, err)}
	}
	return id, nil
}

func parseOptionalID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
