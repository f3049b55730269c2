package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client calls notes.v1.NoteService over an established connection. Every
// call carries the bearer token and, when present, the request id held by
// the context.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

// WithRequestID returns a context whose outgoing calls carry requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDKey, requestID)
}

func (c *Client) CreateNote(ctx context.Context, req *CreateNoteRequest) (*NoteResponse, error) {
	return invoke(ctx, c, "CreateNote", req, noteResponseDesc, noteResponseFrom)
}

func (c *Client) GetNote(ctx context.Context, req *GetNoteRequest) (*NoteResponse, error) {
	return invoke(ctx, c, "GetNote", req, noteResponseDesc, noteResponseFrom)
}

func (c *Client) ListNotes(ctx context.Context, req *ListNotesRequest) (*ListNotesResponse, error) {
	return invoke(ctx, c, "ListNotes", req, listNotesResponseDesc, listNotesResponseFrom)
}

func (c *Client) UpdateNote(ctx context.Context, req *UpdateNoteRequest) (*NoteResponse, error) {
	return invoke(ctx, c, "UpdateNote", req, noteResponseDesc, noteResponseFrom)
}

func (c *Client) DeleteNote(ctx context.Context, req *DeleteNoteRequest) (*DeleteNoteResponse, error) {
	return invoke(ctx, c, "DeleteNote", req, deleteNoteResponseDesc, deleteNoteResponseFrom)
}

func invoke[Resp any](
	ctx context.Context,
	c *Client,
	method string,
	in protoMessage,
	output protoreflect.MessageDescriptor,
	decode func(protoreflect.Message) *Resp,
) (*Resp, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, AuthorizationKey, "Bearer "+c.token)
	}
	out := dynamicpb.NewMessage(output)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in.toProto(), out); err != nil {
		return nil, err
	}
	return decode(out), nil
}
