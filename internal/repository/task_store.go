package repository

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/docstore"
	"github.com/gurkanbulca/tasktracker/internal/models"
)

// TaskSnapshot is the complete, ordered task set of one owner. Owner is nil
// when signed out. Err reports a failed refresh; Tasks then holds the last
// good set.
type TaskSnapshot struct {
	Owner *models.Identity
	Tasks []models.Task
	Err   error
}

// SnapshotFunc receives task snapshots.
type SnapshotFunc func(TaskSnapshot)

// Changes carries the fields the store stamps on an update besides the patch.
type Changes struct {
	UpdatedAt        time.Time
	SetCompletedAt   *time.Time
	ClearCompletedAt bool
}

// TaskStore owns the single live task subscription of the signed-in user and
// forwards task mutations to the document store.
type TaskStore struct {
	store  docstore.Store
	logger *log.Logger

	// emitMu serialises deliveries and acts as the barrier that keeps a
	// torn-down subscription from emitting after Bind returns.
	emitMu sync.Mutex

	mu          sync.Mutex
	bound       bool
	owner       *models.Identity
	unsubscribe docstore.Unsubscribe
	generation  uint64
	last        []models.Task

	listenersMu sync.RWMutex
	listeners   map[int]SnapshotFunc
	nextID      int
}

// NewTaskStore creates an unbound store client. A nil logger uses log.Default().
func NewTaskStore(store docstore.Store, logger *log.Logger) *TaskStore {
	if logger == nil {
		logger = log.Default()
	}
	return &TaskStore{
		store:     store,
		logger:    logger,
		listeners: make(map[int]SnapshotFunc),
	}
}

// OnSnapshot registers fn for every emitted snapshot. fn must not call Bind or Close.
func (s *TaskStore) OnSnapshot(fn SnapshotFunc) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// boundOwner returns the identity the store is bound to, or nil.
func (s *TaskStore) boundOwner() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == nil {
		return nil
	}
	id := *s.owner
	return &id
}

// Bind points the store at identity. The previous subscription is torn down
// before a new one scoped to identity.ID is opened; a nil identity publishes
// the empty task set. Binding the current identity again does nothing.
func (s *TaskStore) Bind(ctx context.Context, identity *models.Identity) error {
	s.emitMu.Lock()
	s.mu.Lock()
	if s.bound && models.SameIdentity(s.owner, identity) {
		s.mu.Unlock()
		s.emitMu.Unlock()
		return nil
	}
	s.generation++
	gen := s.generation
	prev := s.unsubscribe
	s.unsubscribe = nil
	s.bound = true
	s.last = nil
	if identity == nil {
		s.owner = nil
	} else {
		owner := *identity
		s.owner = &owner
	}
	s.mu.Unlock()
	s.emitMu.Unlock()

	if prev != nil {
		prev()
	}

	if identity == nil {
		s.emit(gen, TaskSnapshot{Tasks: []models.Task{}})
		return nil
	}

	owner := *identity
	q := docstore.Query{Collection: models.TaskCollection, Field: models.FieldUserID, Value: owner.ID}
	unsubscribe, err := s.store.Subscribe(ctx, q, func(snap docstore.Snapshot) {
		s.handle(gen, &owner, snap)
	})
	if err != nil {
		s.mu.Lock()
		if s.generation == gen {
			// Allow a retry with the same identity.
			s.bound = false
		}
		s.mu.Unlock()
		return &StoreError{Op: OpSubscribe, Err: err}
	}

	s.mu.Lock()
	if s.generation != gen {
		// Rebound while subscribing.
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Close releases the live subscription. The store may be bound again afterwards.
func (s *TaskStore) Close() {
	s.emitMu.Lock()
	s.mu.Lock()
	s.generation++
	prev := s.unsubscribe
	s.unsubscribe = nil
	s.bound = false
	s.owner = nil
	s.last = nil
	s.mu.Unlock()
	s.emitMu.Unlock()

	if prev != nil {
		prev()
	}
}

// Create inserts a new task document and returns its id.
func (s *TaskStore) Create(ctx context.Context, task models.Task) (string, error) {
	id, err := s.store.Insert(ctx, models.TaskCollection, TaskFields(task))
	if err != nil {
		return "", &StoreError{Op: OpCreate, Err: err}
	}
	return id, nil
}

// Update applies patch and changes to the task document id.
func (s *TaskStore) Update(ctx context.Context, id string, patch models.TaskPatch, changes Changes) error {
	if err := s.store.Mutate(ctx, models.TaskCollection, id, PatchFields(patch, changes)); err != nil {
		return &StoreError{Op: OpUpdate, ID: id, Err: err}
	}
	return nil
}

// Delete removes the task document id.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, models.TaskCollection, id); err != nil {
		return &StoreError{Op: OpDelete, ID: id, Err: err}
	}
	return nil
}

func (s *TaskStore) handle(gen uint64, owner *models.Identity, snap docstore.Snapshot) {
	if snap.Err != nil {
		s.logger.Printf("[tasks] subscription for user %s failed: %v", owner.ID, snap.Err)
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		s.emit(gen, TaskSnapshot{Owner: owner, Tasks: last, Err: &StoreError{Op: OpSubscribe, Err: snap.Err}})
		return
	}

	tasks := make([]models.Task, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		task, err := DecodeTask(doc)
		if err != nil {
			s.logger.Printf("[tasks] skipping malformed task %s: %v", doc.ID, err)
			continue
		}
		tasks = append(tasks, task)
	}
	SortNewestFirst(tasks)

	s.emit(gen, TaskSnapshot{Owner: owner, Tasks: tasks})
}

// emit delivers snap to the listeners unless gen has been superseded.
func (s *TaskStore) emit(gen uint64, snap TaskSnapshot) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if snap.Err == nil {
		s.last = snap.Tasks
	}
	s.mu.Unlock()

	s.listenersMu.RLock()
	fns := make([]SnapshotFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		out := snap
		out.Tasks = slices.Clone(snap.Tasks)
		if out.Tasks == nil {
			out.Tasks = []models.Task{}
		}
		if snap.Owner != nil {
			owner := *snap.Owner
			out.Owner = &owner
		}
		fn(out)
	}
}

// SortNewestFirst orders tasks by CreatedAt descending. Tasks without a
// CreatedAt go last and keep their relative order.
func SortNewestFirst(tasks []models.Task) {
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		switch az, bz := a.CreatedAt.IsZero(), b.CreatedAt.IsZero(); {
		case az && bz:
			return 0
		case az:
			return 1
		case bz:
			return -1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
