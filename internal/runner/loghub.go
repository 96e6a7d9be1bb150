package runner

import (
	"log"
	"sync"
)

// logHub fans one process's output out to any number of subscribers. It
// keeps a bounded history so a subscriber attached after the install phase
// still sees its output. Modeled on the broadcaster pattern: per-subscriber
// buffered channels, non-blocking sends, slow subscribers lose entries
// rather than stalling the process pumps.
type logHub struct {
	mu      sync.Mutex
	history []LogEntry
	max     int
	subs    map[int]chan LogEntry
	nextID  int
	closed  bool
}

func newLogHub(maxHistory int) *logHub {
	if maxHistory <= 0 {
		maxHistory = 500
	}
	return &logHub{
		max:  maxHistory,
		subs: make(map[int]chan LogEntry),
	}
}

func (h *logHub) publish(e LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.history = append(h.history, e)
	if len(h.history) > h.max {
		h.history = h.history[len(h.history)-h.max:]
	}

	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			log.Printf("[runner] log subscriber %d too slow, dropping entry", id)
		}
	}
}

// close delivers the terminal done entry to every subscriber and closes
// their channels. Idempotent: only the first call's entry is delivered.
func (h *logHub) close(done LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	h.history = append(h.history, done)
	if len(h.history) > h.max {
		h.history = h.history[len(h.history)-h.max:]
	}

	for _, ch := range h.subs {
		select {
		case ch <- done:
		default:
		}
		close(ch)
	}
	h.subs = nil
}

// subscribe returns a channel carrying the history so far followed by live
// entries. On an already-closed hub the channel carries the full history
// and is closed immediately.
func (h *logHub) subscribe() (<-chan LogEntry, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan LogEntry, len(h.history)+64)
	for _, e := range h.history {
		ch <- e
	}

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}
