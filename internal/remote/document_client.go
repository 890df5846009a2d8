package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/docstore"
)

// TokenRefresher renews credentials before a call is made.
type TokenRefresher interface {
	EnsureFresh(ctx context.Context) error
}

// DocumentOption configures a DocumentClient.
type DocumentOption func(*DocumentClient)

// WithTokenRefresher renews the access token before every call.
func WithTokenRefresher(r TokenRefresher) DocumentOption {
	return func(c *DocumentClient) {
		c.refresher = r
	}
}

// WithCredentials attaches creds to every call.
func WithCredentials(creds credentials.PerRPCCredentials) DocumentOption {
	return func(c *DocumentClient) {
		c.callOpts = append(c.callOpts, grpc.PerRPCCredentials(creds))
	}
}

// WithSession authenticates every call as the user signed in on auth and
// renews the access token when it is about to expire.
func WithSession(auth *AuthClient) DocumentOption {
	return func(c *DocumentClient) {
		WithTokenRefresher(auth)(c)
		WithCredentials(auth.Credentials())(c)
	}
}

// WithBackoff bounds the delay between watch reconnects.
func WithBackoff(initial, limit time.Duration) DocumentOption {
	return func(c *DocumentClient) {
		if initial > 0 {
			c.minBackoff = initial
		}
		if limit >= c.minBackoff {
			c.maxBackoff = limit
		}
	}
}

// WithLogger sets the logger for watch reconnects.
func WithLogger(l *log.Logger) DocumentOption {
	return func(c *DocumentClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// DocumentClient implements docstore.Store against the DocumentService.
// Errors come back as the docstore sentinels.
type DocumentClient struct {
	client     tasktrackerv1.DocumentServiceClient
	refresher  TokenRefresher
	callOpts   []grpc.CallOption
	logger     *log.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

var _ docstore.Store = (*DocumentClient)(nil)

// NewDocumentClient creates a document store client over cc.
func NewDocumentClient(cc grpc.ClientConnInterface, opts ...DocumentOption) *DocumentClient {
	c := &DocumentClient{
		client:     tasktrackerv1.NewDocumentServiceClient(cc),
		logger:     log.Default(),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryScoped returns the documents matching q.
func (c *DocumentClient) QueryScoped(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	req, err := tasktrackerv1.QueryProto(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Query(ctx, req, c.callOpts...)
	if err != nil {
		return nil, tasktrackerv1.StoreError(err)
	}
	return tasktrackerv1.DocumentsFromProto(resp)
}

// Subscribe opens a watch stream and keeps it open, reconnecting with
// exponential backoff, until the subscription is cancelled or ctx ends.
// Each failed connection is reported as a snapshot error.
func (c *DocumentClient) Subscribe(ctx context.Context, q docstore.Query, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	req, err := tasktrackerv1.QueryProto(q)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go c.watch(watchCtx, req, fn)

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (c *DocumentClient) watch(ctx context.Context, req *structpb.Struct, fn docstore.SnapshotFunc) {
	backoff := c.minBackoff
	for {
		delivered, err := c.watchOnce(ctx, req, fn)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			backoff = c.minBackoff
		}
		if err != nil {
			c.logger.Printf("[remote] watch interrupted, retrying in %v: %v", backoff, err)
			fn(docstore.Snapshot{Err: err})
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// watchOnce runs one stream until it ends. It reports whether any snapshot
// was delivered and returns nil when the server closed the stream cleanly.
func (c *DocumentClient) watchOnce(ctx context.Context, req *structpb.Struct, fn docstore.SnapshotFunc) (bool, error) {
	if err := c.refresh(ctx); err != nil {
		return false, err
	}
	stream, err := c.client.Watch(ctx, req, c.callOpts...)
	if err != nil {
		return false, tasktrackerv1.StoreError(err)
	}

	delivered := false
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return delivered, nil
		}
		if err != nil {
			return delivered, tasktrackerv1.StoreError(err)
		}
		docs, err := tasktrackerv1.DocumentsFromProto(msg)
		if err != nil {
			return delivered, err
		}
		if ctx.Err() != nil {
			return delivered, nil
		}
		fn(docstore.Snapshot{Documents: docs})
		delivered = true
	}
}

// Insert creates a document and returns its id.
func (c *DocumentClient) Insert(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := c.refresh(ctx); err != nil {
		return "", err
	}
	req, err := tasktrackerv1.InsertRequest{Collection: collection, Fields: fields}.Proto()
	if err != nil {
		return "", err
	}
	resp, err := c.client.Insert(ctx, req, c.callOpts...)
	if err != nil {
		return "", tasktrackerv1.StoreError(err)
	}
	return tasktrackerv1.IDFromProto(resp)
}

// Mutate merges partial into document id.
func (c *DocumentClient) Mutate(ctx context.Context, collection, id string, partial docstore.Fields) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}
	req, err := tasktrackerv1.MutateRequest{Collection: collection, ID: id, Fields: partial}.Proto()
	if err != nil {
		return err
	}
	if _, err := c.client.Mutate(ctx, req, c.callOpts...); err != nil {
		return tasktrackerv1.StoreError(err)
	}
	return nil
}

// Remove deletes document id.
func (c *DocumentClient) Remove(ctx context.Context, collection, id string) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}
	req, err := tasktrackerv1.MutateRequest{Collection: collection, ID: id}.Proto()
	if err != nil {
		return err
	}
	if _, err := c.client.Remove(ctx, req, c.callOpts...); err != nil {
		return tasktrackerv1.StoreError(err)
	}
	return nil
}

func (c *DocumentClient) refresh(ctx context.Context) error {
	if c.refresher == nil {
		return nil
	}
	if err := c.refresher.EnsureFresh(ctx); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return fmt.Errorf("%w: %v", docstore.ErrPermissionDenied, err)
		}
		return err
	}
	return nil
}
