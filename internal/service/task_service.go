package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/identity"
	"github.com/gurkanbulca/tasktracker/internal/models"
	"github.com/gurkanbulca/tasktracker/internal/recurrence"
	"github.com/gurkanbulca/tasktracker/internal/repository"
	"github.com/gurkanbulca/tasktracker/internal/views"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyTitle       = errors.New("title is required")
	ErrInvalidPriority  = errors.New("invalid priority")
)

// TasksFunc observes the current task set.
type TasksFunc func([]models.Task)

// TaskOption configures a TaskService.
type TaskOption func(*TaskService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TaskOption {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used by the service and its reset engine.
func WithLogger(l *log.Logger) TaskOption {
	return func(s *TaskService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOptimisticReset shows stale recurring tasks as reset in the snapshot
// that triggered their reset instead of waiting for the write to round-trip.
func WithOptimisticReset(enabled bool) TaskOption {
	return func(s *TaskService) {
		s.optimistic = enabled
	}
}

// WithResetTimeout bounds each recurring task reset.
func WithResetTimeout(d time.Duration) TaskOption {
	return func(s *TaskService) {
		s.resetTimeout = d
	}
}

// TaskService is the task API offered to the presentation layer. It follows
// the session's identity, keeps the signed-in user's task set current and
// funnels every change through AddTask, UpdateTask and DeleteTask.
type TaskService struct {
	ctx     context.Context
	session *identity.Session
	store   *repository.TaskStore
	engine  *recurrence.Engine

	now          func() time.Time
	logger       *log.Logger
	optimistic   bool
	resetTimeout time.Duration

	mu      sync.RWMutex
	bound   bool
	owner   *models.Identity
	tasks   []models.Task
	loading bool
	loaded  chan struct{}

	listenersMu sync.RWMutex
	listeners   map[int]TasksFunc
	nextID      int

	// Listeners run on deliverLoop, never inside a store delivery.
	pendingMu  sync.Mutex
	pending    *delivery
	wake       chan struct{}
	done       chan struct{}
	loopDone   chan struct{}
	delivering atomic.Bool

	stopSession func()
	stopStore   func()
	closeOnce   sync.Once
}

// NewTaskService wires session and store together and binds the store to
// the session's current identity. ctx scopes the store subscriptions.
func NewTaskService(ctx context.Context, session *identity.Session, store *repository.TaskStore, opts ...TaskOption) (*TaskService, error) {
	s := &TaskService{
		ctx:       ctx,
		session:   session,
		store:     store,
		now:       time.Now,
		logger:    log.Default(),
		loaded:    make(chan struct{}),
		loading:   true,
		listeners: make(map[int]TasksFunc),
		tasks:     []models.Task{},
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = recurrence.NewEngine(s,
		recurrence.WithLogger(s.logger),
		recurrence.WithResetTimeout(s.resetTimeout),
	)

	go s.deliverLoop()
	s.stopStore = store.OnSnapshot(s.onSnapshot)
	s.stopSession = session.OnChange(s.onIdentity)

	if err := s.bind(session.Current()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Tasks returns the current task set, newest first.
func (s *TaskService) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Loading reports whether the signed-in user's first snapshot is still pending.
func (s *TaskService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// WaitLoaded blocks until the current identity's tasks have loaded.
func (s *TaskService) WaitLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnChange registers fn for new task sets. Calls come from a single
// goroutine in order; a burst of changes may be collapsed into the latest set.
func (s *TaskService) OnChange(fn TasksFunc) (cancel func()) {
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

// View returns the current tasks narrowed by filter and priority.
func (s *TaskService) View(filter models.Filter, priority models.PriorityFilter) []models.Task {
	return views.Apply(s.Tasks(), filter, priority, s.now())
}

// Counts tallies the current, unfiltered task set.
func (s *TaskService) Counts() views.Counts {
	return views.Count(s.Tasks(), s.now())
}

// Now is the service clock.
func (s *TaskService) Now() time.Time {
	return s.now()
}

// AddTask creates a task for the signed-in user.
func (s *TaskService) AddTask(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	owner := s.session.Current()
	if owner == nil {
		return models.Task{}, ErrNotAuthenticated
	}

	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return models.Task{}, ErrEmptyTitle
	}
	priority := draft.Priority
	if priority == "" {
		priority = models.PriorityNone
	}
	if !priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	if err := models.ValidateDueDate(draft.DueDate); err != nil {
		return models.Task{}, err
	}

	now := s.now()
	task := models.Task{
		Title:       title,
		Description: strings.TrimSpace(draft.Description),
		DueDate:     draft.DueDate,
		Priority:    priority,
		Completed:   draft.Completed,
		Recurrent:   draft.Recurrent,
		UserID:      owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Completed {
		task.CompletedAt = &now
	}

	id, err := s.store.Create(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	task.ID = id
	return task, nil
}

// UpdateTask applies patch to task id. It is the only writer of
// completedAt: completing stamps it with the current time, reopening clears it.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) error {
	if s.session.Current() == nil {
		return ErrNotAuthenticated
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrEmptyTitle
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		patch.Description = &description
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *patch.Priority)
	}
	if patch.DueDate != nil {
		if err := models.ValidateDueDate(*patch.DueDate); err != nil {
			return err
		}
	}

	now := s.now()
	changes := repository.Changes{UpdatedAt: now}
	if patch.Completed != nil {
		if *patch.Completed {
			changes.SetCompletedAt = &now
		} else {
			changes.ClearCompletedAt = true
		}
	}
	return s.store.Update(ctx, id, patch, changes)
}

// ToggleTask marks task id completed or open.
func (s *TaskService) ToggleTask(ctx context.Context, id string, completed bool) error {
	return s.UpdateTask(ctx, id, models.TaskPatch{Completed: &completed})
}

// DeleteTask removes task id. Store rejections are returned as-is.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Close releases the live subscription, stops change delivery and waits for
// pending resets. Called from an OnChange listener it does not wait for that
// listener to return.
func (s *TaskService) Close() {
	s.closeOnce.Do(func() {
		if s.stopSession != nil {
			s.stopSession()
		}
		s.store.Close()
		if s.stopStore != nil {
			s.stopStore()
		}
		if n := s.engine.Pending(); n > 0 {
			s.logger.Printf("[tasks] waiting for %d recurring task resets", n)
		}
		s.engine.Stop()
		close(s.done)
	})
	if !s.inDelivery() {
		<-s.loopDone
	}
}

func (s *TaskService) onIdentity(id *models.Identity) {
	if err := s.bind(id); err != nil {
		s.logger.Printf("[tasks] bind failed: %v", err)
	}
}

// bind resets the working set for id and points the store at it.
func (s *TaskService) bind(id *models.Identity) error {
	s.mu.Lock()
	if !s.bound || !models.SameIdentity(s.owner, id) {
		s.bound = true
		if id == nil {
			s.owner = nil
		} else {
			owner := *id
			s.owner = &owner
		}
		s.tasks = []models.Task{}
		if !s.loading {
			s.loading = true
			s.loaded = make(chan struct{})
		}
	}
	s.mu.Unlock()

	return s.store.Bind(s.ctx, id)
}

func (s *TaskService) onSnapshot(snap repository.TaskSnapshot) {
	s.mu.Lock()
	if !models.SameIdentity(s.owner, snap.Owner) {
		s.mu.Unlock()
		return
	}
	if snap.Err != nil {
		s.logger.Printf("[tasks] keeping last task set: %v", snap.Err)
		s.markLoaded()
		s.mu.Unlock()
		return
	}

	tasks := snap.Tasks
	stale := s.engine.Process(tasks, s.now())
	if s.optimistic && len(stale) > 0 {
		tasks = recurrence.ApplyReset(tasks, stale)
	}
	s.tasks = tasks
	s.markLoaded()
	owner := s.owner
	s.mu.Unlock()

	s.pendingMu.Lock()
	s.pending = &delivery{owner: owner, tasks: tasks}
	s.pendingMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type delivery struct {
	owner *models.Identity
	tasks []models.Task
}

// deliverLoop hands the latest task set to the listeners until Close.
func (s *TaskService) deliverLoop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.pendingMu.Lock()
		d := s.pending
		s.pending = nil
		s.pendingMu.Unlock()
		if d == nil {
			continue
		}

		s.mu.RLock()
		current := models.SameIdentity(s.owner, d.owner)
		s.mu.RUnlock()
		if !current {
			// Signed in as someone else since this set was queued.
			continue
		}

		s.listenersMu.RLock()
		fns := make([]TasksFunc, 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
		s.listenersMu.RUnlock()

		s.delivering.Store(true)
		for _, fn := range fns {
			select {
			case <-s.done:
				s.delivering.Store(false)
				return
			default:
			}
			fn(slices.Clone(d.tasks))
		}
		s.delivering.Store(false)
	}
}

// inDelivery reports whether the caller runs inside an OnChange listener.
func (s *TaskService) inDelivery() bool {
	return s.delivering.Load()
}

// markLoaded must be called with s.mu held.
func (s *TaskService) markLoaded() {
	if s.loading {
		s.loading = false
		close(s.loaded)
	}
}
