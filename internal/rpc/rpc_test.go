package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	notesvc "github.com/mrshanahan/notes-service/internal/notes"
	"github.com/mrshanahan/notes-service/internal/testsupport"
	"github.com/mrshanahan/notes-service/pkg/auth"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	conn      *grpc.ClientConn
	store     *testsupport.MemoryStore
	publisher *testsupport.RecordingPublisher
}

func newHarness(t *testing.T, maxPerUser int) *harness {
	t.Helper()
	store := testsupport.NewMemoryStore()
	publisher := &testsupport.RecordingPublisher{}
	logger := slog.New(slog.DiscardHandler)
	svc, err := notesvc.NewService(notesvc.Deps{
		Store:     store,
		Cache:     testsupport.NewMapCache(),
		Publisher: publisher,
		Logger:    logger,
	}, notesvc.Settings{MaxNotesPerUser: maxPerUser, CacheTTL: time.Hour})
	require.NoError(t, err)
	verifier, err := auth.NewSecretVerifier(testSecret)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server := NewGRPCServer(verifier, logger, svc)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{conn: conn, store: store, publisher: publisher}
}

func (h *harness) client(t *testing.T, user uuid.UUID, role string) *Client {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, user, role, time.Hour)
	require.NoError(t, err)
	return NewClient(h.conn, tok)
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, status.Code(err), err.Error())
}

func TestLifecycleOverRPC(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	user := uuid.New()
	c := h.client(t, user, "")

	created, err := c.CreateNote(ctx, &CreateNoteRequest{Title: "Groceries", Content: "milk"})
	require.NoError(t, err)
	assert.Equal(t, user.String(), created.OwnerID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := c.GetNote(ctx, &GetNoteRequest{EntityID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := c.UpdateNote(ctx, &UpdateNoteRequest{EntityID: created.ID, Title: "Groceries", Content: "milk, eggs"})
	require.NoError(t, err)
	assert.Equal(t, "milk, eggs", updated.Content)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	list, err := c.ListNotes(ctx, &ListNotesRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Notes, 1)
	assert.Equal(t, created.ID, list.Notes[0].ID)

	deleted, err := c.DeleteNote(ctx, &DeleteNoteRequest{EntityID: created.ID})
	require.NoError(t, err)
	assert.True(t, deleted.Success)

	_, err = c.GetNote(ctx, &GetNoteRequest{EntityID: created.ID})
	requireCode(t, err, codes.NotFound)
	assert.Len(t, h.publisher.Events(), 3)
}

func TestStatusCodes(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	owner := h.client(t, uuid.New(), "")
	stranger := h.client(t, uuid.New(), "")

	created, err := owner.CreateNote(ctx, &CreateNoteRequest{Title: "Mine", Content: "private"})
	require.NoError(t, err)

	_, err = owner.CreateNote(ctx, &CreateNoteRequest{Title: "Second", Content: "too many"})
	requireCode(t, err, codes.ResourceExhausted)

	_, err = stranger.GetNote(ctx, &GetNoteRequest{EntityID: created.ID})
	requireCode(t, err, codes.PermissionDenied)

	_, err = owner.GetNote(ctx, &GetNoteRequest{EntityID: "not-a-uuid"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = stranger.CreateNote(ctx, &CreateNoteRequest{Title: "", Content: "untitled"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = NewClient(h.conn, "").GetNote(ctx, &GetNoteRequest{EntityID: created.ID})
	requireCode(t, err, codes.Unauthenticated)

	_, err = NewClient(h.conn, "garbage").GetNote(ctx, &GetNoteRequest{EntityID: created.ID})
	requireCode(t, err, codes.Unauthenticated)
}

func TestAdministratorOverRPC(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	ownerID := uuid.New()
	admin := h.client(t, uuid.New(), notes.RoleAdmin)

	created, err := admin.CreateNote(ctx, &CreateNoteRequest{Title: "Assigned", Content: "for you", OwnerID: ownerID.String()})
	require.NoError(t, err)
	assert.Equal(t, ownerID.String(), created.OwnerID)

	list, err := admin.ListNotes(ctx, &ListNotesRequest{OwnerID: ownerID.String()})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	_, err = h.client(t, ownerID, "").DeleteNote(ctx, &DeleteNoteRequest{EntityID: created.ID})
	require.NoError(t, err)
}

func TestPublishFailureIsUnavailable(t *testing.T) {
	h := newHarness(t, 1)
	h.publisher.Err = errors.New("broker down")
	c := h.client(t, uuid.New(), "")

	_, err := c.CreateNote(context.Background(), &CreateNoteRequest{Title: "Committed", Content: "anyway"})
	requireCode(t, err, codes.Unavailable)
	assert.Equal(t, 1, h.store.Len())
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t, 1)
	tok, err := auth.IssueToken(testSecret, uuid.New(), "", time.Hour)
	require.NoError(t, err)

	var header metadata.MD
	ctx := WithRequestID(context.Background(), "req-123")
	ctx = metadata.AppendToOutgoingContext(ctx, AuthorizationKey, "Bearer "+tok)
	out := dynamicpb.NewMessage(listNotesResponseDesc)
	err = h.conn.Invoke(ctx, "/"+ServiceName+"/ListNotes", (&ListNotesRequest{}).toProto(), out, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-123"}, header.Get(RequestIDKey))
}

// A caller holding only the registered notes.v1 schema talks to the server
// over the default protobuf codec.
func TestSchemaOnlyClient(t *testing.T) {
	h := newHarness(t, 1)
	user := uuid.New()
	tok, err := auth.IssueToken(testSecret, user, "", time.Hour)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), AuthorizationKey, "Bearer "+tok)

	newMessage := func(name protoreflect.FullName) *dynamicpb.Message {
		desc, err := protoregistry.GlobalFiles.FindDescriptorByName(name)
		require.NoError(t, err)
		return dynamicpb.NewMessage(desc.(protoreflect.MessageDescriptor))
	}
	set := func(m *dynamicpb.Message, name protoreflect.Name, value string) {
		m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfString(value))
	}
	get := func(m *dynamicpb.Message, name protoreflect.Name) string {
		return m.Get(m.Descriptor().Fields().ByName(name)).String()
	}

	in := newMessage("notes.v1.CreateNoteRequest")
	set(in, "title", "Groceries")
	set(in, "content", "milk")
	created := newMessage("notes.v1.NoteResponse")
	require.NoError(t, h.conn.Invoke(ctx, "/notes.v1.NoteService/CreateNote", in, created))
	assert.Equal(t, "Groceries", get(created, "title"))
	assert.Equal(t, user.String(), get(created, "owner_id"))

	getReq := newMessage("notes.v1.GetNoteRequest")
	set(getReq, "entity_id", get(created, "id"))
	got := newMessage("notes.v1.NoteResponse")
	require.NoError(t, h.conn.Invoke(ctx, "/notes.v1.NoteService/GetNote", getReq, got))
	assert.True(t, proto.Equal(created, got))

	missing := newMessage("notes.v1.DeleteNoteRequest")
	set(missing, "entity_id", uuid.NewString())
	err = h.conn.Invoke(ctx, "/notes.v1.NoteService/DeleteNote", missing, newMessage("notes.v1.DeleteNoteResponse"))
	requireCode(t, err, codes.NotFound)
}

func TestServerReflection(t *testing.T) {
	h := newHarness(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := reflectionpb.NewServerReflectionClient(h.conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)
	var services []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		services = append(services, svc.GetName())
	}
	assert.Contains(t, services, ServiceName)

	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: ServiceName},
	}))
	resp, err = stream.Recv()
	require.NoError(t, err)
	files := resp.GetFileDescriptorResponse().GetFileDescriptorProto()
	require.Len(t, files, 1)

	var file descriptorpb.FileDescriptorProto
	require.NoError(t, proto.Unmarshal(files[0], &file))
	assert.Equal(t, FileName, file.GetName())
	assert.Equal(t, "notes.v1", file.GetPackage())

	fields := map[string][]string{}
	for _, msg := range file.GetMessageType() {
		for _, f := range msg.GetField() {
			fields[msg.GetName()] = append(fields[msg.GetName()], f.GetName())
		}
	}
	assert.Equal(t, []string{"entity_id"}, fields["GetNoteRequest"])
	assert.Equal(t, []string{"entity_id", "title", "content"}, fields["UpdateNoteRequest"])
	assert.Equal(t, []string{"entity_id"}, fields["DeleteNoteRequest"])
	assert.Equal(t, []string{"id", "title", "content", "owner_id", "created_at", "updated_at"}, fields["NoteResponse"])
	require.NoError(t, stream.CloseSend())
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{&notes.ValidationError{Err: errors.New("title: required")}, codes.InvalidArgument},
		{&notes.AuthenticationError{}, codes.Unauthenticated},
		{&notes.AccessDeniedError{Entity: notes.EntityName, ID: "x"}, codes.PermissionDenied},
		{&notes.NotFoundError{Entity: notes.EntityName, ID: "x"}, codes.NotFound},
		{&notes.LimitExceededError{Entity: notes.EntityName, Limit: 1}, codes.ResourceExhausted},
		{&notes.PublishError{Topic: "note.created", Err: errors.New("closed")}, codes.Unavailable},
		{&notes.PersistenceError{Op: "get", Err: errors.New("disk")}, codes.Internal},
		{status.Error(codes.Canceled, "gone"), codes.Canceled},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, ToStatus(tc.err).Code(), tc.err.Error())
	}
	assert.Equal(t, "internal error", ToStatus(errors.New("secret detail")).Message())
}
