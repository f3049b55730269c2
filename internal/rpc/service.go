// Package rpc exposes the notes service over gRPC as notes.v1.NoteService.
// The notes.v1 descriptors are built at init and registered with the global
// protobuf registry, so standard clients and server reflection see the same
// schema the handlers decode.
package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/mrshanahan/notes-service/pkg/auth"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

const ServiceName = "notes.v1.NoteService"

// NoteService is the lifecycle the RPC server drives.
type NoteService interface {
	Create(ctx context.Context, who notes.Identity, req notes.CreateNoteRequest) (*notes.Note, error)
	Get(ctx context.Context, who notes.Identity, req notes.GetNoteRequest) (*notes.Note, error)
	List(ctx context.Context, who notes.Identity, req notes.ListNotesRequest) (*notes.NoteList, error)
	Update(ctx context.Context, who notes.Identity, req notes.UpdateNoteRequest) (*notes.Note, error)
	Delete(ctx context.Context, who notes.Identity, req notes.DeleteNoteRequest) error
}

type NoteServiceServer interface {
	CreateNote(context.Context, *CreateNoteRequest) (*NoteResponse, error)
	GetNote(context.Context, *GetNoteRequest) (*NoteResponse, error)
	ListNotes(context.Context, *ListNotesRequest) (*ListNotesResponse, error)
	UpdateNote(context.Context, *UpdateNoteRequest) (*NoteResponse, error)
	DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error)
}

// Server adapts NoteService to NoteServiceServer. The caller identity is
// expected in the context, put there by UnaryServerInterceptor.
type Server struct {
	service NoteService
}

func NewServer(service NoteService) *Server {
	return &Server{service: service}
}

func Register(s *grpc.Server, srv NoteServiceServer) {
	s.RegisterService(&NoteService_ServiceDesc, srv)
}

// NewGRPCServer returns a server carrying NoteService behind the auth
// interceptor, with server reflection enabled.
func NewGRPCServer(verifier auth.Verifier, logger *slog.Logger, service NoteService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(UnaryServerInterceptor(verifier, logger)))
	s := grpc.NewServer(opts...)
	Register(s, NewServer(service))
	reflection.Register(s)
	return s
}

func (s *Server) CreateNote(ctx context.Context, req *CreateNoteRequest) (*NoteResponse, error) {
	owner, err := parseOptionalID("owner_id", req.OwnerID)
	if err != nil {
		return nil, err
	}
	who, _ := notes.IdentityFrom(ctx)
	n, err := s.service.Create(ctx, who, notes.CreateNoteRequest{
		Title:   req.Title,
		Content: req.Content,
		OwnerID: owner,
	})
	if err != nil {
		return nil, err
	}
	return toNoteResponse(n), nil
}

func (s *Server) GetNote(ctx context.Context, req *GetNoteRequest) (*NoteResponse, error) {
	id, err := parseID("entity_id", req.EntityID)
	if err != nil {
		return nil, err
	}
	who, _ := notes.IdentityFrom(ctx)
	n, err := s.service.Get(ctx, who, notes.GetNoteRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return toNoteResponse(n), nil
}

func (s *Server) ListNotes(ctx context.Context, req *ListNotesRequest) (*ListNotesResponse, error) {
	owner, err := parseOptionalID("owner_id", req.OwnerID)
	if err != nil {
		return nil, err
	}
	limit := int(req.Limit)
	if limit == 0 {
		limit = notes.DefaultListLimit
	}
	who, _ := notes.IdentityFrom(ctx)
	list, err := s.service.List(ctx, who, notes.ListNotesRequest{
		Skip:    int(req.Skip),
		Limit:   limit,
		OwnerID: owner,
	})
	if err != nil {
		return nil, err
	}
	resp := &ListNotesResponse{Notes: make([]*NoteResponse, 0, len(list.Notes)), Total: list.Total}
	for _, n := range list.Notes {
		resp.Notes = append(resp.Notes, toNoteResponse(n))
	}
	return resp, nil
}

func (s *Server) UpdateNote(ctx context.Context, req *UpdateNoteRequest) (*NoteResponse, error) {
	id, err := parseID("entity_id", req.EntityID)
	if err != nil {
		return nil, err
	}
	who, _ := notes.IdentityFrom(ctx)
	n, err := s.service.Update(ctx, who, notes.UpdateNoteRequest{
		ID:      id,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return nil, err
	}
	return toNoteResponse(n), nil
}

func (s *Server) DeleteNote(ctx context.Context, req *DeleteNoteRequest) (*DeleteNoteResponse, error) {
	id, err := parseID("entity_id", req.EntityID)
	if err != nil {
		return nil, err
	}
	who, _ := notes.IdentityFrom(ctx)
	if err := s.service.Delete(ctx, who, notes.DeleteNoteRequest{ID: id}); err != nil {
		return nil, err
	}
	return &DeleteNoteResponse{Success: true}, nil
}

type protoMessage interface {
	toProto() proto.Message
}

// unaryHandler decodes a dynamic notes.v1 message, hands the Go form to the
// interceptor chain and encodes the reply back to its notes.v1 message.
func unaryHandler[Req any, Resp protoMessage](
	method string,
	input protoreflect.MessageDescriptor,
	decode func(protoreflect.Message) *Req,
	call func(NoteServiceServer, context.Context, *Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		msg := dynamicpb.NewMessage(input)
		if err := dec(msg); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			resp, err := call(srv.(NoteServiceServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			return resp.toProto(), nil
		}
		if interceptor == nil {
			return handler(ctx, decode(msg))
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		return interceptor(ctx, decode(msg), info, handler)
	}
}

var NoteService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NoteServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateNote",
			Handler:    unaryHandler("CreateNote", createNoteRequestDesc, createNoteRequestFrom, NoteServiceServer.CreateNote),
		},
		{
			MethodName: "GetNote",
			Handler:    unaryHandler("GetNote", getNoteRequestDesc, getNoteRequestFrom, NoteServiceServer.GetNote),
		},
		{
			MethodName: "ListNotes",
			Handler:    unaryHandler("ListNotes", listNotesRequestDesc, listNotesRequestFrom, NoteServiceServer.ListNotes),
		},
		{
			MethodName: "UpdateNote",
			Handler:    unaryHandler("UpdateNote", updateNoteRequestDesc, updateNoteRequestFrom, NoteServiceServer.UpdateNote),
		},
		{
			MethodName: "DeleteNote",
			Handler:    unaryHandler("DeleteNote", deleteNoteRequestDesc, deleteNoteRequestFrom, NoteServiceServer.DeleteNote),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: FileName,
}
