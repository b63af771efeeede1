package server

import (
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
)

const (
	EventProgress = "progress"
	EventStatus   = "status"
)

// Event is one message on a run's progress stream.
type Event struct {
	Type     string             `json:"type"`
	RunID    string             `json:"run_id"`
	Status   string             `json:"status,omitempty"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
	Stats    *entity.RunStats   `json:"stats,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped for it.
const subscriberBuffer = 64

// Hub fans run events out to subscribers. Subscriptions end when the run
// finishes.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: map[string]map[chan Event]struct{}{}, logger: logger}
}

// Subscribe returns a channel of events for runID and a func to stop
// listening. The channel is closed by Finish or by the cancel func.
func (h *Hub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = map[chan Event]struct{}{}
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[runID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, runID)
			}
		}
	}
}

// Publish never blocks; a full subscriber misses the event.
func (h *Hub) Publish(runID string, ev Event) {
	ev.RunID = runID
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[runID] {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("hub.event.dropped", "run_id", runID, "type", ev.Type)
		}
	}
}

// Finish publishes the final event and closes every subscription of runID.
// The final event always reaches the subscriber, at the cost of its oldest
// queued event when the buffer is full.
func (h *Hub) Finish(runID string, ev Event) {
	ev.RunID = runID
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[runID] {
		if evicted := deliverLast(ch, ev); evicted > 0 {
			h.logger.Debug("hub.event.evicted", "run_id", runID, "count", evicted)
		}
		close(ch)
	}
	delete(h.subs, runID)
}

// deliverLast sends ev, discarding queued events until it fits. Callers
// hold h.mu, so no other sender can refill the freed slot.
func deliverLast(ch chan Event, ev Event) int {
	evicted := 0
	for {
		select {
		case ch <- ev:
			return evicted
		default:
		}
		select {
		case <-ch:
			evicted++
		default:
		}
	}
}

func (h *Hub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}
