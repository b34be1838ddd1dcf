// Package progress provides a unified interface for progress reporting
// across CLI (progress bars) and GUI (event bus) modes.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/rescale-labs/turbodownload/internal/events"
)

// Reporter is the interface for reporting progress in both CLI and GUI modes.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// GUIProgress implements progress reporting by publishing onto an
// EventBus instead of drawing anything itself — for a caller (GUI or
// otherwise) that wants to render progress from subscribed events
// rather than drive a Reporter directly.
type GUIProgress struct {
	eventBus *events.EventBus
	label    string
	total    int64
}

// NewGUIProgress creates a progress reporter that publishes to bus.
// label is included in the log events this reporter emits (e.g. the
// destination filename), since the event bus itself carries no
// per-download identity.
func NewGUIProgress(eventBus *events.EventBus, label string) *GUIProgress {
	return &GUIProgress{eventBus: eventBus, label: label}
}

// Start records the expected total and logs the description.
func (p *GUIProgress) Start(total int64, description string) {
	p.total = total
	p.eventBus.PublishLog(events.InfoLevel, p.label+": "+description, nil)
}

// Update publishes a chunkDownloadProgress-shaped event carrying the
// running total downloaded.
func (p *GUIProgress) Update(current int64) {
	p.eventBus.Publish(&events.ChunkEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventChunkProgress, Time: time.Now()},
		Downloaded: current,
	})
}

// Finish publishes a final progress tick at the recorded total.
func (p *GUIProgress) Finish() {
	p.eventBus.Publish(&events.ChunkEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventChunkProgress, Time: time.Now()},
		Downloaded: p.total,
	})
}

// Error logs err through the event bus.
func (p *GUIProgress) Error(err error) {
	if err != nil {
		p.eventBus.PublishLog(events.ErrorLevel, p.label+": transfer error", err)
	}
}

// SetDescription logs desc as an informational event.
func (p *GUIProgress) SetDescription(desc string) {
	p.eventBus.PublishLog(events.InfoLevel, p.label+": "+desc, nil)
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	total    int64
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
		total:    total,
		current:  0,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	pr.reporter.Update(pr.current)
	return n, err
}
