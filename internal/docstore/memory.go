package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Backend. Documents keep insertion order and
// every write wakes the subscriptions of its collection.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc
	seq         uint64
	hub         *Hub
}

type memoryDoc struct {
	seq    uint64
	fields Fields
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryDoc),
		hub:         NewHub(),
	}
}

// QueryScoped returns the matching documents in insertion order.
func (s *MemoryStore) QueryScoped(ctx context.Context, q Query) ([]Document, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*memoryDoc
	ids := make(map[*memoryDoc]string)
	for id, doc := range s.collections[q.Collection] {
		if q.Matches(q.Collection, doc.fields) {
			matched = append(matched, doc)
			ids[doc] = id
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	docs := make([]Document, 0, len(matched))
	for _, doc := range matched {
		docs = append(docs, Document{ID: ids[doc], Fields: doc.fields.Clone()})
	}
	return docs, nil
}

// Subscribe delivers the query result now and after every write to the collection.
func (s *MemoryStore) Subscribe(_ context.Context, q Query, fn SnapshotFunc) (Unsubscribe, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(q, func(ctx context.Context) ([]Document, error) {
		return s.QueryScoped(ctx, q)
	}, fn), nil
}

// Insert stores fields under a new id.
func (s *MemoryStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if collection == "" {
		return "", ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*memoryDoc)
		s.collections[collection] = docs
	}
	s.seq++
	docs[id] = &memoryDoc{seq: s.seq, fields: fields.Clone()}
	s.mu.Unlock()

	s.hub.Notify(collection)
	return id, nil
}

// Mutate merges partial into an existing document.
func (s *MemoryStore) Mutate(ctx context.Context, collection, id string, partial Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("mutate %s/%s: %w", collection, id, ErrNotFound)
	}
	merged := doc.fields.Clone()
	for k, v := range partial {
		merged[k] = v
	}
	doc.fields = merged
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

// Remove deletes a document; removing a missing id is not an error.
func (s *MemoryStore) Remove(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if existed {
		s.hub.Notify(collection)
	}
	return nil
}

// Get loads one document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Fields: doc.fields.Clone()}, nil
}

// Subscriptions returns the number of live subscriptions.
func (s *MemoryStore) Subscriptions() int {
	return s.hub.Len()
}

// Close stops all subscriptions.
func (s *MemoryStore) Close() {
	s.hub.Close()
}
