package rpc

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FileName is the path notes.v1 is registered under in
// protoregistry.GlobalFiles, which server reflection serves from.
const FileName = "notes/v1/notes.proto"

const protoPackage = "notes.v1"

var fileDescriptor = mustRegisterFile(noteServiceFile())

var (
	createNoteRequestDesc  = fileDescriptor.Messages().ByName("CreateNoteRequest")
	getNoteRequestDesc     = fileDescriptor.Messages().ByName("GetNoteRequest")
	listNotesRequestDesc   = fileDescriptor.Messages().ByName("ListNotesRequest")
	updateNoteRequestDesc  = fileDescriptor.Messages().ByName("UpdateNoteRequest")
	deleteNoteRequestDesc  = fileDescriptor.Messages().ByName("DeleteNoteRequest")
	noteResponseDesc       = fileDescriptor.Messages().ByName("NoteResponse")
	listNotesResponseDesc  = fileDescriptor.Messages().ByName("ListNotesResponse")
	deleteNoteResponseDesc = fileDescriptor.Messages().ByName("DeleteNoteResponse")
)

func mustRegisterFile(fdp *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		panic("rpc: invalid descriptor for " + fdp.GetName() + ": " + err.Error())
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic("rpc: " + err.Error())
	}
	return fd
}

// noteServiceFile describes notes/v1/notes.proto:
//
//	service NoteService {
//	  rpc CreateNote(CreateNoteRequest) returns (NoteResponse);
//	  rpc GetNote(GetNoteRequest) returns (NoteResponse);
//	  rpc ListNotes(ListNotesRequest) returns (ListNotesResponse);
//	  rpc UpdateNote(UpdateNoteRequest) returns (NoteResponse);
//	  rpc DeleteNote(DeleteNoteRequest) returns (DeleteNoteResponse);
//	}
func noteServiceFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(FileName),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/mrshanahan/notes-service/internal/rpc"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("CreateNoteRequest",
				scalar("title", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("content", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("owner_id", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("GetNoteRequest",
				scalar("entity_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("ListNotesRequest",
				scalar("skip", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("limit", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("owner_id", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("UpdateNoteRequest",
				scalar("entity_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("title", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("content", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("DeleteNoteRequest",
				scalar("entity_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("NoteResponse",
				scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("title", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("content", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("owner_id", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("created_at", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("updated_at", 6, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("ListNotesResponse",
				repeatedMessage("notes", 1, "NoteResponse"),
				scalar("total", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
			message("DeleteNoteResponse",
				scalar("success", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("NoteService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("CreateNote", "CreateNoteRequest", "NoteResponse"),
				method("GetNote", "GetNoteRequest", "NoteResponse"),
				method("ListNotes", "ListNotesRequest", "ListNotesResponse"),
				method("UpdateNote", "UpdateNoteRequest", "NoteResponse"),
				method("DeleteNote", "DeleteNoteRequest", "DeleteNoteResponse"),
			},
		}},
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
		JsonName: proto.String(jsonName(name)),
	}
}

func repeatedMessage(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String("." + protoPackage + "." + typeName),
		JsonName: proto.String(jsonName(name)),
	}
}

func method(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + protoPackage + "." + input),
		OutputType: proto.String("." + protoPackage + "." + output),
	}
}

// jsonName is the lowerCamelCase name protoc assigns to a snake_case field.
func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
