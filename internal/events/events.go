// Package events implements the fire-and-forget observer bus that the
// downloader core publishes its emission points to. Dispatch is
// best-effort: a slow or absent subscriber never blocks a transfer.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale-labs/turbodownload/internal/constants"
)

// EventType identifies the kind of Event carried over the bus.
type EventType string

const (
	EventDownloadStarted  EventType = "download_started"
	EventDownloadFinished EventType = "download_finished"
	EventDownloadError    EventType = "download_error"

	EventChunkStarted  EventType = "chunk_started"
	EventChunkProgress EventType = "chunk_progress"
	EventChunkFinished EventType = "chunk_finished"
	EventChunkError    EventType = "chunk_error"

	EventPlanReady EventType = "plan_ready"
	EventAborted   EventType = "aborted"

	EventReservingSpaceStarted  EventType = "reserving_space_started"
	EventReservingSpaceFinished EventType = "reserving_space_finished"

	EventLog EventType = "log"
)

// LogLevel defines log severity levels carried by LogEvent.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for every event on the bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent supplies the common Type/Timestamp fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// DownloadEvent brackets an entire session (started/finished/error).
type DownloadEvent struct {
	BaseEvent
	URL      string
	DestFile string
	Err      error
}

// ChunkEvent reports per-chunk scheduler activity.
type ChunkEvent struct {
	BaseEvent
	Offset     int64
	Size       int64
	Downloaded int64
	Attempt    int
	Err        error
}

// PlanEvent carries a snapshot of the plan once it is ready to run.
type PlanEvent struct {
	BaseEvent
	TotalSize    int64
	AcceptRanges bool
	ChunkCount   int
}

// AbortedEvent reports that a session was cancelled cooperatively.
type AbortedEvent struct {
	BaseEvent
	SaveProgress bool
}

// ReservingSpaceEvent brackets preallocation.
type ReservingSpaceEvent struct {
	BaseEvent
	TotalSize int64
}

// LogEvent carries free-form diagnostic messages (e.g. non-fatal
// PlanPersistError reports).
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Err     error
}

// EventBus fans a published Event out to every matching subscriber.
// Publish never blocks: a subscriber whose channel is full silently
// misses the event rather than stalling the publisher.
type EventBus struct {
	mu            sync.RWMutex
	subscribers   map[EventType][]chan Event
	all           []chan Event
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates an event bus with the given per-subscriber buffer size.
// A non-positive size uses constants.EventBusDefaultBuffer; oversized
// requests are capped at constants.EventBusMaxBuffer.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel that receives events of the given type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel that receives every event published.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish delivers event to every subscriber of its type and every
// subscribe-all subscriber. It is synchronous from the publisher's
// point of view but never blocks on a slow subscriber: a full channel
// drops the event and increments the dropped-event counter. This is
// the bus's only concession to a misbehaving subscriber — there is no
// subscriber code executing inline that could panic the publisher.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}
	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the bus and closes every subscriber channel.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience wrapper for LogEvent.
func (eb *EventBus) PublishLog(level LogLevel, message string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		Err:       err,
	})
}

// GetDroppedEventCount returns the number of events dropped due to full buffers.
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
