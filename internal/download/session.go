// Package download implements the core of a resilient parallel file
// downloader: a probe, a durable chunk plan, a bounded-concurrency
// scheduler with quadratic-backoff retry, and the orchestrating session
// that ties them together with resumable, single-use semantics.
package download

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale-labs/turbodownload/internal/events"
	httpretry "github.com/rescale-labs/turbodownload/internal/http"
)

// State is a Session's position in the orchestrator state machine (§4.6).
type State string

const (
	StateIdle            State = "idle"
	StateProbing         State = "probing"
	StatePlanning        State = "planning"
	StatePreallocating   State = "preallocating"
	StateRunning         State = "running"
	StateFinalizing      State = "finalizing"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateAbortedNoSave   State = "aborted_no_save"
	StateAbortedWithSave State = "aborted_with_save"
)

// ProgressFunc is invoked at least once per post-transform buffer per
// chunk, with the running aggregate downloaded byte count, the plan's
// total size (UnknownSize if unknown), and the session's live plan,
// whose Downloaded counters other chunk transfers keep updating.
type ProgressFunc func(downloaded, total int64, plan *Plan)

// Session drives a single download from Config through to completion,
// failure, or abort. A Session is single-use: Download returns
// ErrAlreadyStarted if called more than once (P9).
type Session struct {
	cfg        *resolved
	store      *Store
	bus        *events.EventBus
	onProgress ProgressFunc

	mu                 sync.Mutex
	state              State
	started            bool
	aborted            bool
	abortSavesProgress bool
	cancelHandles      map[int]context.CancelFunc
	nextHandleID       int
}

// New builds a Session from cfg, validating every option synchronously
// (§6, §7). bus and onProgress may be nil; a nil bus silently drops
// every emission point and a nil onProgress silently drops every
// progress tick.
func New(cfg Config, bus *events.EventBus, onProgress ProgressFunc) (*Session, error) {
	r, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:           r,
		store:         NewStore(r.destFile),
		bus:           bus,
		onProgress:    onProgress,
		state:         StateIdle,
		cancelHandles: make(map[int]context.CancelFunc),
	}, nil
}

// State returns the session's current position in the state machine.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Download runs the session to completion: probe, plan (load-or-create),
// preallocate-if-new, schedule, finalize. It returns nil on success and
// after an Abort's cleanup, and a non-nil error otherwise.
func (s *Session) Download(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.emit(&events.DownloadEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventDownloadStarted, Time: time.Now()},
		URL:       s.cfg.url, DestFile: s.cfg.destFile,
	})

	err := s.run(ctx)

	if err != nil {
		s.emit(&events.DownloadEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventDownloadError, Time: time.Now()},
			URL:       s.cfg.url, DestFile: s.cfg.destFile, Err: err,
		})
		return err
	}

	s.emit(&events.DownloadEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventDownloadFinished, Time: time.Now()},
		URL:       s.cfg.url, DestFile: s.cfg.destFile,
	})
	return nil
}

func (s *Session) run(ctx context.Context) error {
	s.setState(StateProbing)
	result, err := probe(ctx, s.cfg.client, s.cfg.url)
	if err != nil {
		s.setState(StateFailed)
		return err
	}

	s.setState(StatePlanning)
	plan, isNew, err := s.loadOrCreatePlan(result)
	if err != nil {
		s.setState(StateFailed)
		return err
	}
	s.emit(&events.PlanEvent{
		BaseEvent:    events.BaseEvent{EventType: events.EventPlanReady, Time: time.Now()},
		TotalSize:    plan.TotalSize,
		AcceptRanges: plan.AcceptRanges,
		ChunkCount:   len(plan.Chunks),
	})

	if isNew && plan.TotalSize >= 0 {
		s.setState(StatePreallocating)
		s.emit(&events.ReservingSpaceEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventReservingSpaceStarted, Time: time.Now()},
			TotalSize: plan.TotalSize,
		})
		if err := preallocate(s.cfg.destFile, plan.TotalSize, s.cfg.fillFileByte); err != nil {
			s.setState(StateFailed)
			return err
		}
		s.emit(&events.ReservingSpaceEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventReservingSpaceFinished, Time: time.Now()},
			TotalSize: plan.TotalSize,
		})
	}

	s.setState(StateRunning)
	scheduleErr := s.runSchedule(ctx, plan)

	s.mu.Lock()
	aborted := s.aborted
	saveProgress := s.abortSavesProgress
	s.mu.Unlock()

	if aborted {
		return s.finalizeAbort(saveProgress)
	}

	if scheduleErr != nil {
		s.setState(StateFailed)
		if !s.cfg.canBeResumed {
			_ = s.store.Delete()
		}
		return scheduleErr
	}

	s.setState(StateFinalizing)
	_ = s.store.Delete()
	s.setState(StateCompleted)
	return nil
}

// loadOrCreatePlan implements §4.2's load(probe) contract: a matching
// on-disk plan is reused; otherwise a fresh one is built from the probe
// result and (if resume is enabled) saved immediately so a crash before
// the first chunk completes still leaves a usable manifest.
func (s *Session) loadOrCreatePlan(probeResult *ProbeResult) (*Plan, bool, error) {
	if s.cfg.canBeResumed {
		if plan, err := s.store.Load(probeResult.TotalSize, probeResult.AcceptRanges); err == nil && plan != nil {
			return plan, false, nil
		}
	}

	plan := NewPlan(probeResult.TotalSize, probeResult.AcceptRanges, s.cfg.chunkSize)
	if s.cfg.canBeResumed {
		if err := s.store.Save(plan.Snapshot()); err != nil {
			s.emit(&events.LogEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventLog, Time: time.Now()},
				Level:     events.WarnLevel,
				Message:   "initial plan save failed",
				Err:       &PlanPersistError{Path: s.store.Path(), Err: err},
			})
		}
	}
	return plan, true, nil
}

// runSchedule wires the scheduler's per-chunk callbacks to event
// emission and plan persistence, then runs the bounded worker pool.
func (s *Session) runSchedule(ctx context.Context, plan *Plan) error {
	deps := schedulerDeps{
		retryCount: s.cfg.retryCount,
		aborted:    s.isAborted,
		sleep:      time.Sleep,
		transferParams: chunkTransferParams{
			client:         s.cfg.client,
			url:            s.cfg.url,
			destFile:       s.cfg.destFile,
			transform:      s.cfg.transformStream,
			registerCancel: s.registerCancel,
		},
		onChunkStarted: func(chunk *Chunk, attempt int) {
			s.emit(&events.ChunkEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventChunkStarted, Time: time.Now()},
				Offset:    chunk.Offset, Size: chunk.Size, Attempt: attempt,
			})
		},
		onChunkDone: func(chunk *Chunk, attempt int) {
			s.emit(&events.ChunkEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventChunkFinished, Time: time.Now()},
				Offset:    chunk.Offset, Size: chunk.Size, Downloaded: atomic.LoadInt64(&chunk.Downloaded), Attempt: attempt,
			})
		},
		onChunkError: func(chunk *Chunk, attempt int, err error) {
			s.emit(&events.ChunkEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventChunkError, Time: time.Now()},
				Offset:    chunk.Offset, Size: chunk.Size, Attempt: attempt, Err: err,
			})
			// Classification doesn't change the scheduler's retry
			// decision (§4.5 retries unconditionally up to
			// retryCount), it only enriches what gets logged.
			s.emit(&events.LogEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventLog, Time: time.Now()},
				Level:     events.DebugLevel,
				Message:   "chunk attempt failed: " + httpretry.ErrorTypeName(httpretry.ClassifyError(err)),
				Err:       err,
			})
		},
	}

	deps.transferParams.onProgress = func(written int64) {
		s.onChunkProgress(plan)
	}

	return runSchedule(ctx, plan, s.cfg.concurrency, deps)
}

// onChunkProgress is invoked after every post-transform buffer write.
// It recomputes the aggregate, reports it to the caller's ProgressFunc,
// emits chunkDownloadProgress, and — while resume is enabled — persists
// the plan. A save failure is logged as a PlanPersistError and never
// aborts the transfer (§4.2): at most it costs re-downloading already
// transferred bytes on a later resume.
func (s *Session) onChunkProgress(plan *Plan) {
	downloaded := plan.Downloaded()

	s.emit(&events.ChunkEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventChunkProgress, Time: time.Now()},
		Downloaded: downloaded,
	})

	if s.onProgress != nil {
		s.onProgress(downloaded, plan.TotalSize, plan)
	}

	if !s.cfg.canBeResumed {
		return
	}

	if err := s.store.Save(plan.Snapshot()); err != nil {
		s.emit(&events.LogEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventLog, Time: time.Now()},
			Level:     events.WarnLevel,
			Message:   "plan save failed",
			Err:       &PlanPersistError{Path: s.store.Path(), Err: err},
		})
	}
}

// Abort requests cooperative cancellation of every in-flight chunk
// transfer. It is idempotent; a call before Download has no effect
// (§5). saveProgress controls finalization: when true the manifest and
// partial destination file are kept for a later resume; when false both
// are deleted regardless of how the run otherwise concluded (Open
// Question 4 in DESIGN.md).
func (s *Session) Abort(saveProgress bool) {
	s.mu.Lock()
	if !s.started || s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.abortSavesProgress = saveProgress
	handles := make([]context.CancelFunc, 0, len(s.cancelHandles))
	for _, cancel := range s.cancelHandles {
		handles = append(handles, cancel)
	}
	s.mu.Unlock()

	s.emit(&events.AbortedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.EventAborted, Time: time.Now()},
		SaveProgress: saveProgress,
	})

	for _, cancel := range handles {
		cancel()
	}
}

func (s *Session) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *Session) registerCancel(cancel context.CancelFunc) (unregister func()) {
	s.mu.Lock()
	id := s.nextHandleID
	s.nextHandleID++
	s.cancelHandles[id] = cancel
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.cancelHandles, id)
		s.mu.Unlock()
	}
}

// finalizeAbort implements the AbortedNoSave / AbortedWithSave
// finalization rules of §4.6.
func (s *Session) finalizeAbort(saveProgress bool) error {
	if saveProgress {
		s.setState(StateAbortedWithSave)
		return nil
	}

	s.setState(StateAbortedNoSave)
	_ = s.store.Delete()
	_ = removeIfExists(s.cfg.destFile)
	return nil
}
