package service

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/docstore"
	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/internal/models"
)

// DocumentService serves the document store to authenticated callers. Every
// document carries its owner in the userId field; callers only ever see and
// change their own documents, and the owner of a document never changes.
type DocumentService struct {
	store  docstore.Backend
	logger *log.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(store docstore.Backend, logger *log.Logger) *DocumentService {
	if logger == nil {
		logger = log.Default()
	}
	return &DocumentService{store: store, logger: logger}
}

// Query returns the caller's documents matching the request
func (s *DocumentService) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := s.scopedQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.QueryScoped(ctx, q)
	if err != nil {
		return nil, tasktrackerv1.StoreStatus(err)
	}
	resp, err := tasktrackerv1.DocumentsProto(docs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// Watch streams a complete result set now and after every change. Snapshots
// produced faster than the client reads them are collapsed to the latest.
func (s *DocumentService) Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	q, err := s.scopedQuery(ctx, req)
	if err != nil {
		return err
	}

	updates := make(chan docstore.Snapshot, 1)
	unsubscribe, err := s.store.Subscribe(ctx, q, func(snap docstore.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			// Drop the unsent snapshot in favour of the newer one.
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		return tasktrackerv1.StoreStatus(err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if snap.Err != nil {
				s.logger.Printf("[documents] watch %s failed: %v", q.Collection, snap.Err)
				return tasktrackerv1.StoreStatus(snap.Err)
			}
			msg, err := tasktrackerv1.DocumentsProto(snap.Documents)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// Insert creates a document owned by the caller
func (s *DocumentService) Insert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	in, err := tasktrackerv1.InsertRequestFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if owner, _ := in.Fields[models.FieldUserID].(string); owner != caller {
		return nil, status.Error(codes.PermissionDenied, "documents must be owned by the caller")
	}

	id, err := s.store.Insert(ctx, in.Collection, in.Fields)
	if err != nil {
		return nil, tasktrackerv1.StoreStatus(err)
	}
	resp, err := tasktrackerv1.IDProto(id)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// Mutate updates one of the caller's documents
func (s *DocumentService) Mutate(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	in, err := tasktrackerv1.MutateRequestFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.ownedDocument(ctx, in.Collection, in.ID); err != nil {
		return nil, err
	}
	if _, ok := in.Fields[models.FieldUserID]; ok {
		return nil, status.Error(codes.InvalidArgument, "userId cannot be changed")
	}

	if err := s.store.Mutate(ctx, in.Collection, in.ID, in.Fields); err != nil {
		return nil, tasktrackerv1.StoreStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Remove deletes a caller's document. Removing a missing document succeeds.
func (s *DocumentService) Remove(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	in, err := tasktrackerv1.MutateRequestFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.ownedDocument(ctx, in.Collection, in.ID); err != nil {
		if status.Code(err) == codes.NotFound {
			return &emptypb.Empty{}, nil
		}
		return nil, err
	}

	if err := s.store.Remove(ctx, in.Collection, in.ID); err != nil {
		return nil, tasktrackerv1.StoreStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// scopedQuery decodes req and requires it to select the caller's documents.
func (s *DocumentService) scopedQuery(ctx context.Context, req *structpb.Struct) (docstore.Query, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return docstore.Query{}, err
	}
	q, err := tasktrackerv1.QueryFromProto(req)
	if err != nil {
		return docstore.Query{}, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := docstore.ValidateQuery(q); err != nil {
		return docstore.Query{}, tasktrackerv1.StoreStatus(err)
	}
	if q.Field != models.FieldUserID || q.Value != caller {
		return docstore.Query{}, status.Error(codes.PermissionDenied, "queries must be scoped to the caller")
	}
	return q, nil
}

func (s *DocumentService) ownedDocument(ctx context.Context, collection, id string) (docstore.Document, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return docstore.Document{}, err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Document{}, status.Error(codes.NotFound, "document not found")
		}
		return docstore.Document{}, tasktrackerv1.StoreStatus(err)
	}
	if owner, _ := doc.Fields[models.FieldUserID].(string); owner != caller {
		return docstore.Document{}, status.Error(codes.PermissionDenied, "document belongs to another user")
	}
	return doc, nil
}

func callerID(ctx context.Context) (string, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		return "", status.Error(codes.Unauthenticated, "user not authenticated")
	}
	return userID, nil
}
