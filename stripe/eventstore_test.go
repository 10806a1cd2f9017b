package stripe

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestEventStore(t *testing.T) {
	c := qt.New(t)

	store := NewEventStore(2, time.Hour)
	c.Assert(store.EventExists("evt_1"), qt.IsFalse)
	store.MarkProcessed("evt_1")
	store.MarkProcessed("evt_2")
	c.Assert(store.EventExists("evt_1"), qt.IsTrue)
	c.Assert(store.Size(), qt.Equals, 2)

	// the least recently used id is evicted first
	store.MarkProcessed("evt_3")
	c.Assert(store.Size(), qt.Equals, 2)
	c.Assert(store.EventExists("evt_1"), qt.IsFalse)
	c.Assert(store.EventExists("evt_3"), qt.IsTrue)
}

func TestEventStoreExpiry(t *testing.T) {
	c := qt.New(t)

	store := NewEventStore(10, 20*time.Millisecond)
	store.MarkProcessed("evt_1")
	c.Assert(store.EventExists("evt_1"), qt.IsTrue)
	time.Sleep(60 * time.Millisecond)
	c.Assert(store.EventExists("evt_1"), qt.IsFalse)
}

func TestLockManager(t *testing.T) {
	c := qt.New(t)

	lm := NewLockManager()
	unlock := lm.Lock("evt_1")
	c.Assert(lm.Size(), qt.Equals, 1)
	released := make(chan struct{})
	go func() {
		defer close(released)
		lm.Lock("evt_1")()
	}()
	select {
	case <-released:
		c.Fatal("second lock acquired while the first was held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-released

	c.Assert(lm.Size(), qt.Equals, 0)
}
