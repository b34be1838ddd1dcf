package download

import (
	"os"

	"github.com/rescale-labs/turbodownload/internal/events"
)

// emit publishes ev if the session was constructed with an event bus.
// Publishing is the bus's concern to make non-blocking and
// panic-tolerant (internal/events.EventBus.Publish); the session itself
// has no special-case handling for a slow or absent subscriber.
func (s *Session) emit(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// removeIfExists deletes path, treating a missing file as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
