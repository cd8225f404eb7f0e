package translation

import (
	"context"
	"sync"
)

// Hub broadcasts job events. Every subscriber has its own unbounded buffer,
// so Publish never blocks on a slow reader.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	mu     sync.Mutex
	buf    []Event
	signal chan struct{}
	// replayed holds the sequence number each snapshot event was taken at.
	replayed map[*Job]uint64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.replayed[e.Job] != 0 && e.Seq <= s.replayed[e.Job] {
			continue
		}
		s.push(e)
	}
}

// Subscribe returns a channel of events published from now on, preceded by
// whatever snapshot returns. snapshot runs while publishing is held off, so
// no event falls between it and the live stream. A live event already covered
// by a snapshot event of the same job, by Seq, is not delivered again. The
// channel is closed when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, snapshot func() []Event) <-chan Event {
	s := &subscriber{signal: make(chan struct{}, 1), replayed: make(map[*Job]uint64)}

	h.mu.Lock()
	if snapshot != nil {
		for _, e := range snapshot() {
			if e.Job != nil && e.Seq > s.replayed[e.Job] {
				s.replayed[e.Job] = e.Seq
			}
			s.push(e)
		}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
		}()
		for {
			for _, e := range s.drain() {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-s.signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	s.buf = append(s.buf, e)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.buf
	s.buf = nil
	return events
}
