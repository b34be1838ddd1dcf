// Package transfer wraps a download.Session with the bookkeeping a CLI
// or other long-lived caller wants around a single transfer: a stable
// ID, a coarse-grained state machine set from the session's outcome, and
// an EMA-smoothed throughput estimate computed from progress callbacks.
package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rescale-labs/turbodownload/internal/download"
	"github.com/rescale-labs/turbodownload/internal/events"
)

// TaskState mirrors a Task's progress through a download, collapsing
// download.State's finer machine into the buckets a progress display
// cares about.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Task tracks a single download.Session: its display metadata, live
// progress, and smoothed transfer speed. All exported accessors are
// safe for concurrent use since a Task's ProgressFunc runs on whatever
// goroutine the session's scheduler calls it from.
type Task struct {
	ID       string
	Name     string
	URL      string
	DestFile string

	// Config is passed to download.New as-is, with URL and DestFile
	// filled in by NewTask. Callers that need non-default chunk size,
	// concurrency, retry count, or a Transform may mutate this field
	// before calling Run.
	Config download.Config

	mu    sync.RWMutex
	state TaskState
	err   error

	total      int64
	downloaded int64
	speed      float64

	lastBytes      int64
	lastUpdateTime time.Time

	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time

	cancel context.CancelFunc
}

// NewTask creates a Task in TaskQueued state for a download that has
// not yet started.
func NewTask(name, url, destFile string) *Task {
	return &Task{
		ID:        generateTaskID(),
		Name:      name,
		URL:       url,
		DestFile:  destFile,
		Config:    download.Config{URL: url, DestFile: destFile},
		state:     TaskQueued,
		createdAt: time.Now(),
	}
}

// Run builds a session from t.Config and runs it under ctx, tracking its lifecycle and progress on
// this Task, and blocks until the download finishes, fails, or ctx is
// cancelled. Cancel may be called concurrently to abort the session.
func (t *Task) Run(ctx context.Context, bus *events.EventBus) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.state = TaskActive
	t.startedAt = time.Now()
	t.mu.Unlock()

	sess, err := download.New(t.Config, bus, t.onProgress)
	if err != nil {
		t.fail(err)
		return err
	}

	err = sess.Download(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			t.finish(TaskCancelled, nil)
			return err
		}
		t.fail(err)
		return err
	}

	t.finish(TaskCompleted, nil)
	return nil
}

// onProgress is the download.ProgressFunc passed to the session. It
// updates the running total and recomputes speed with exponential
// smoothing so a progress bar doesn't jitter between individual chunk
// writes.
func (t *Task) onProgress(downloaded, total int64, _ *download.Plan) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.total = total
	t.downloaded = downloaded

	if t.lastBytes == 0 && downloaded > 0 {
		t.lastUpdateTime = now
		t.lastBytes = downloaded
		return
	}

	if downloaded > t.lastBytes {
		elapsed := now.Sub(t.lastUpdateTime).Seconds()
		if elapsed > 0.1 {
			instantRate := float64(downloaded-t.lastBytes) / elapsed
			const alpha = 0.25
			if t.speed > 0 {
				t.speed = alpha*instantRate + (1-alpha)*t.speed
			} else {
				t.speed = instantRate
			}
			t.lastBytes = downloaded
			t.lastUpdateTime = now
		}
	}
}

func (t *Task) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TaskFailed
	t.err = err
	t.completedAt = time.Now()
}

func (t *Task) finish(state TaskState, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.err = err
	t.completedAt = time.Now()
}

// State returns the task's current coarse state.
func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Progress returns bytes downloaded, total bytes (download.UnknownSize
// for a resource of unknown size, 0 before the first progress tick), and
// current smoothed speed in bytes/sec.
func (t *Task) Progress() (downloaded, total int64, bytesPerSec float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.downloaded, t.total, t.speed
}

// Err returns the terminal error, if the task ended in TaskFailed.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Cancel requests cancellation of the running download, if any.
func (t *Task) Cancel() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IsTerminal reports whether the task has finished, failed, or been
// cancelled.
func (t *Task) IsTerminal() bool {
	switch t.State() {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

var (
	taskCounter uint64
	taskMu      sync.Mutex
)

func generateTaskID() string {
	taskMu.Lock()
	defer taskMu.Unlock()
	taskCounter++
	return fmt.Sprintf("task-%d-%d", time.Now().UnixNano(), taskCounter)
}
