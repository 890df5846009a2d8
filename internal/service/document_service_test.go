package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/docstore"
	"github.com/gurkanbulca/tasktracker/internal/models"
)

func newDocumentService(t *testing.T) (*DocumentService, *docstore.MemoryStore) {
	t.Helper()
	mem := docstore.NewMemoryStore()
	t.Cleanup(mem.Close)
	return NewDocumentService(mem, quietLogger()), mem
}

func queryRequest(t *testing.T, userID any) *structpb.Struct {
	t.Helper()
	req, err := tasktrackerv1.QueryProto(docstore.Query{Collection: models.TaskCollection, Field: models.FieldUserID, Value: userID})
	require.NoError(t, err)
	return req
}

func insertRequest(t *testing.T, fields docstore.Fields) *structpb.Struct {
	t.Helper()
	req, err := tasktrackerv1.InsertRequest{Collection: models.TaskCollection, Fields: fields}.Proto()
	require.NoError(t, err)
	return req
}

func mutateRequest(t *testing.T, id string, fields docstore.Fields) *structpb.Struct {
	t.Helper()
	req, err := tasktrackerv1.MutateRequest{Collection: models.TaskCollection, ID: id, Fields: fields}.Proto()
	require.NoError(t, err)
	return req
}

func TestDocumentService_QueryIsScopedToCaller(t *testing.T) {
	svc, mem := newDocumentService(t)
	ctx := ContextForUserID("jane")

	_, err := mem.Insert(ctx, models.TaskCollection, docstore.Fields{"userId": "jane", "title": "Water plants"})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, models.TaskCollection, docstore.Fields{"userId": "sam", "title": "Pay rent"})
	require.NoError(t, err)

	resp, err := svc.Query(ctx, queryRequest(t, "jane"))
	require.NoError(t, err)
	docs, err := tasktrackerv1.DocumentsFromProto(resp)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Water plants", docs[0].Fields["title"])

	_, err = svc.Query(ctx, queryRequest(t, "sam"))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = svc.Query(context.Background(), queryRequest(t, "jane"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestDocumentService_InsertRequiresCallerAsOwner(t *testing.T) {
	svc, mem := newDocumentService(t)
	ctx := ContextForUserID("jane")

	resp, err := svc.Insert(ctx, insertRequest(t, docstore.Fields{"userId": "jane", "title": "Water plants"}))
	require.NoError(t, err)
	id, err := tasktrackerv1.IDFromProto(resp)
	require.NoError(t, err)

	doc, err := mem.Get(ctx, models.TaskCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "Water plants", doc.Fields["title"])

	tests := []struct {
		name   string
		fields docstore.Fields
	}{
		{name: "other owner", fields: docstore.Fields{"userId": "sam", "title": "x"}},
		{name: "no owner", fields: docstore.Fields{"title": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Insert(ctx, insertRequest(t, tt.fields))
			assert.Equal(t, codes.PermissionDenied, status.Code(err))
		})
	}
}

func TestDocumentService_MutateChecksStoredOwner(t *testing.T) {
	svc, mem := newDocumentService(t)
	jane := ContextForUserID("jane")
	sam := ContextForUserID("sam")

	id, err := mem.Insert(jane, models.TaskCollection, docstore.Fields{"userId": "jane", "completed": false})
	require.NoError(t, err)

	_, err = svc.Mutate(jane, mutateRequest(t, id, docstore.Fields{"completed": true}))
	require.NoError(t, err)
	doc, err := mem.Get(jane, models.TaskCollection, id)
	require.NoError(t, err)
	assert.Equal(t, true, doc.Fields["completed"])

	_, err = svc.Mutate(sam, mutateRequest(t, id, docstore.Fields{"completed": false}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = svc.Mutate(jane, mutateRequest(t, id, docstore.Fields{"userId": "sam"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Mutate(jane, mutateRequest(t, "missing", docstore.Fields{"completed": true}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDocumentService_Remove(t *testing.T) {
	svc, mem := newDocumentService(t)
	jane := ContextForUserID("jane")

	id, err := mem.Insert(jane, models.TaskCollection, docstore.Fields{"userId": "jane"})
	require.NoError(t, err)

	_, err = svc.Remove(ContextForUserID("sam"), mutateRequest(t, id, nil))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = svc.Remove(jane, mutateRequest(t, id, nil))
	require.NoError(t, err)
	_, err = mem.Get(jane, models.TaskCollection, id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	// Removing again is not an error.
	_, err = svc.Remove(jane, mutateRequest(t, id, nil))
	assert.NoError(t, err)
}

// watchStream collects what Watch sends.
type watchStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent chan *structpb.Struct
}

func (s *watchStream) Context() context.Context {
	return s.ctx
}

func (s *watchStream) Send(m *structpb.Struct) error {
	s.sent <- m
	return nil
}

// waitFor returns the first sent snapshot with n documents.
func (s *watchStream) waitFor(t *testing.T, n int) []docstore.Document {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-s.sent:
			docs, err := tasktrackerv1.DocumentsFromProto(msg)
			require.NoError(t, err)
			if len(docs) == n {
				return docs
			}
		case <-deadline:
			t.Fatalf("no snapshot with %d documents sent", n)
			return nil
		}
	}
}

func TestDocumentService_WatchStreamsSnapshots(t *testing.T) {
	svc, mem := newDocumentService(t)
	ctx, cancel := context.WithCancel(ContextForUserID("jane"))
	stream := &watchStream{ctx: ctx, sent: make(chan *structpb.Struct, 16)}

	req := queryRequest(t, "jane")
	done := make(chan error, 1)
	go func() { done <- svc.Watch(req, stream) }()

	stream.waitFor(t, 0)

	_, err := mem.Insert(ctx, models.TaskCollection, docstore.Fields{"userId": "jane", "title": "Water plants"})
	require.NoError(t, err)
	docs := stream.waitFor(t, 1)
	assert.Equal(t, "Water plants", docs[0].Fields["title"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Eventually(t, func() bool { return mem.Subscriptions() == 0 }, time.Second, 10*time.Millisecond)
}

func TestDocumentService_WatchRejectsForeignScope(t *testing.T) {
	svc, _ := newDocumentService(t)
	stream := &watchStream{ctx: ContextForUserID("jane"), sent: make(chan *structpb.Struct, 1)}

	err := svc.Watch(queryRequest(t, "sam"), stream)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}
