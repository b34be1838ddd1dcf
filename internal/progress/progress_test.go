package progress

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rescale-labs/turbodownload/internal/events"
)

func TestGUIProgress_PublishesEvents(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	logSub := bus.Subscribe(events.EventLog)
	chunkSub := bus.Subscribe(events.EventChunkProgress)

	p := NewGUIProgress(bus, "test.bin")
	p.Start(1000, "downloading")
	p.Update(500)
	p.Finish()

	select {
	case ev := <-logSub:
		le, ok := ev.(*events.LogEvent)
		if !ok {
			t.Fatalf("expected *events.LogEvent, got %T", ev)
		}
		if !strings.Contains(le.Message, "test.bin") {
			t.Errorf("expected label in message, got %q", le.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log event from Start")
	}

	first := <-chunkSub
	ce, ok := first.(*events.ChunkEvent)
	if !ok {
		t.Fatalf("expected *events.ChunkEvent, got %T", first)
	}
	if ce.Downloaded != 500 {
		t.Errorf("expected Downloaded=500, got %d", ce.Downloaded)
	}

	second := <-chunkSub
	ce2 := second.(*events.ChunkEvent)
	if ce2.Downloaded != 1000 {
		t.Errorf("expected final Downloaded=1000, got %d", ce2.Downloaded)
	}
}

func TestGUIProgress_Error(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	logSub := bus.Subscribe(events.EventLog)

	p := NewGUIProgress(bus, "broken.bin")
	p.Error(errors.New("boom"))

	select {
	case ev := <-logSub:
		le := ev.(*events.LogEvent)
		if le.Level != events.ErrorLevel {
			t.Errorf("expected ErrorLevel, got %v", le.Level)
		}
		if le.Err == nil {
			t.Error("expected Err to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error log event")
	}
}

func TestNoOpProgress_DoesNothing(t *testing.T) {
	p := NewNoOpProgress()
	p.Start(100, "desc")
	p.Update(50)
	p.SetDescription("other")
	p.Error(errors.New("ignored"))
	p.Finish()
}

func TestProgressReader_TracksPosition(t *testing.T) {
	r := strings.NewReader("hello world")
	reporter := &fakeReporter{}
	pr := NewProgressReader(r, int64(r.Len()), reporter)

	buf := make([]byte, 5)
	n, err := pr.Read(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes read, got %d", n)
	}
	if reporter.current != 5 {
		t.Errorf("expected reporter.current=5, got %d", reporter.current)
	}
}

type fakeReporter struct {
	current int64
}

func (f *fakeReporter) Start(total int64, description string) {}
func (f *fakeReporter) Update(current int64)                  { f.current = current }
func (f *fakeReporter) Finish()                                {}
func (f *fakeReporter) Error(err error)                        {}
func (f *fakeReporter) SetDescription(desc string)             {}

var _ Reporter = (*fakeReporter)(nil)
