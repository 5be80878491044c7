package broadcast

import (
	"sort"
	"sync"
	"time"
)

type gapRange struct {
	from uint64
	to   uint64
}

// Subscription is one subscriber's handle. Events arrive on C; the channel
// is closed when the subscription is removed. The buffer between publisher
// and C is bounded: on overflow the oldest buffered event is dropped and the
// loss is surfaced as a gap event ahead of newer deliveries.
type Subscription struct {
	ID        string
	Filter    Filter
	CreatedAt time.Time
	C         <-chan Event

	out    chan Event
	notify chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	ring     []Event
	capacity int
	gaps     map[string]*gapRange
	closed   bool
	lossy    bool
}

func newSubscription(id string, f Filter, capacity int) *Subscription {
	out := make(chan Event)
	return &Subscription{
		ID:        id,
		Filter:    f,
		CreatedAt: time.Now(),
		C:         out,
		out:       out,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		capacity:  capacity,
		gaps:      map[string]*gapRange{},
	}
}

// enqueue buffers an event, dropping the oldest on overflow. Never blocks.
// Reports whether an event was dropped.
func (s *Subscription) enqueue(ev Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	dropped := false
	if len(s.ring) >= s.capacity {
		oldest := s.ring[0]
		s.ring = s.ring[1:]
		s.recordGap(oldest)
		s.lossy = true
		dropped = true
	}
	s.ring = append(s.ring, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

// recordGap extends the pending gap range for the dropped event's vehicle.
func (s *Subscription) recordGap(ev Event) {
	if ev.Type != EventVehicleUpdate {
		return
	}
	g := s.gaps[ev.VehicleID]
	if g == nil {
		s.gaps[ev.VehicleID] = &gapRange{from: ev.Seq, to: ev.Seq}
		return
	}
	if ev.Seq < g.from {
		g.from = ev.Seq
	}
	if ev.Seq > g.to {
		g.to = ev.Seq
	}
}

// take drains the pending gap markers and buffered events, gaps first.
func (s *Subscription) take() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.gaps) == 0 && len(s.ring) == 0 {
		return nil
	}
	batch := make([]Event, 0, len(s.gaps)+len(s.ring))
	if len(s.gaps) > 0 {
		ids := make([]string, 0, len(s.gaps))
		for id := range s.gaps {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			g := s.gaps[id]
			batch = append(batch, Event{Type: EventGap, VehicleID: id, FromSeq: g.from, ToSeq: g.to})
		}
		s.gaps = map[string]*gapRange{}
	}
	batch = append(batch, s.ring...)
	s.ring = s.ring[:0]
	return batch
}

// pump moves buffered events onto the receive channel until closed.
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}
		for {
			batch := s.take()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				select {
				case s.out <- ev:
				case <-s.done:
					return
				}
			}
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}

// Lossy reports whether the subscription has ever overflowed.
func (s *Subscription) Lossy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lossy
}
