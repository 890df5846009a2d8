// Package recurrence resets recurring tasks whose completion belongs to an
// earlier calendar day.
package recurrence

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/models"
)

// DefaultResetTimeout bounds a single corrective write.
const DefaultResetTimeout = 10 * time.Second

// Toggler is the mutation entry point resets go through, so that the
// completedAt rule has a single writer.
type Toggler interface {
	ToggleTask(ctx context.Context, id string, completed bool) error
}

// ResetError is a failed corrective write. It is logged, never returned to
// callers; the next snapshot that still finds the task stale retries it.
type ResetError struct {
	TaskID string
	Err    error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("reset recurring task %s: %v", e.TaskID, e.Err)
}

func (e *ResetError) Unwrap() error {
	return e.Err
}

// IsStaleCompleted reports whether task is a recurring task completed on a
// calendar day before now's day, both days taken in now's location.
func IsStaleCompleted(task models.Task, now time.Time) bool {
	if !task.Recurrent || !task.Completed || task.CompletedAt == nil {
		return false
	}
	completedDay := models.StartOfDay(task.CompletedAt.In(now.Location()))
	return completedDay.Before(models.StartOfDay(now))
}

// StaleIDs returns the ids of the stale-completed tasks in tasks.
func StaleIDs(tasks []models.Task, now time.Time) []string {
	var ids []string
	for _, t := range tasks {
		if IsStaleCompleted(t, now) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// ApplyReset returns a copy of tasks where the tasks named in ids are shown
// as not completed, as they will be once their resets land.
func ApplyReset(tasks []models.Task, ids []string) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)
	if len(ids) == 0 {
		return out
	}
	reset := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		reset[id] = struct{}{}
	}
	for i := range out {
		if _, ok := reset[out[i].ID]; ok {
			out[i].Completed = false
			out[i].CompletedAt = nil
		}
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for failed resets.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithResetTimeout bounds each corrective write.
func WithResetTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// Engine issues one independent reset per stale-completed task in each
// snapshot it is given. Resets run in the background; the caller never
// waits on them.
type Engine struct {
	toggler Toggler
	logger  *log.Logger
	timeout time.Duration

	wg sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool
}

// NewEngine creates an engine writing through toggler.
func NewEngine(toggler Toggler, opts ...Option) *Engine {
	e := &Engine{
		toggler:  toggler,
		logger:   log.Default(),
		timeout:  DefaultResetTimeout,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process starts a reset for every stale-completed task that has no reset
// in flight yet and returns the ids it considered stale.
func (e *Engine) Process(tasks []models.Task, now time.Time) []string {
	stale := StaleIDs(tasks, now)
	for _, id := range stale {
		e.mu.Lock()
		if _, busy := e.inFlight[id]; busy || e.stopped {
			e.mu.Unlock()
			continue
		}
		e.inFlight[id] = struct{}{}
		e.wg.Add(1)
		e.mu.Unlock()

		go e.reset(id)
	}
	return stale
}

// Pending returns the number of resets in flight.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inFlight)
}

// Wait blocks until every reset in flight has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Stop refuses new resets and waits for those in flight.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) reset(id string) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.inFlight, id)
		e.mu.Unlock()
	}()

	// Resets are not cancelled by sign-out or Stop; only the timeout bounds them.
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.toggler.ToggleTask(ctx, id, false); err != nil {
		e.logger.Printf("[recurrence] %v", &ResetError{TaskID: id, Err: err})
	}
}
