package stripe

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// EventStore remembers the ids of processed webhook events so redeliveries
// are acknowledged without being handled twice. It holds at most size ids,
// each for ttl, evicting the least recently used first.
type EventStore struct {
	events *expirable.LRU[string, time.Time]
}

// NewEventStore creates a new in-memory event store
func NewEventStore(size int, ttl time.Duration) *EventStore {
	if size <= 0 {
		size = DefaultProcessedEvents
	}
	if ttl == 0 {
		ttl = DefaultProcessedEventsTTL
	}
	return &EventStore{events: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

// EventExists checks if an event has already been processed
func (s *EventStore) EventExists(eventID string) bool {
	_, ok := s.events.Peek(eventID)
	return ok
}

// MarkProcessed marks an event as processed
func (s *EventStore) MarkProcessed(eventID string) {
	s.events.Add(eventID, time.Now())
}

// Size returns the number of stored events
func (s *EventStore) Size() int {
	return s.events.Len()
}
