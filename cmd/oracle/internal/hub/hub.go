package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// Hub owns the live subscriber set. Subscribers are addressed by a stable
// integer handle into a map of bounded queues; Publish never blocks the
// writer. The feed is live only, there is no replay of history, and a
// subscriber whose queue overflows loses its oldest queued event.
type Hub struct {
	mu        sync.Mutex
	subs      map[int]chan models.ChangeEvent
	nextID    int
	queueSize int
	logger    *zap.Logger
}

func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		subs:      make(map[int]chan models.ChangeEvent),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Subscribe registers a new live subscriber and returns its handle and
// delivery channel. The channel is closed by Unsubscribe.
func (h *Hub) Subscribe() (int, <-chan models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan models.ChangeEvent, h.queueSize)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// for an already removed handle.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish fans an event out to every live subscriber. When a queue is full
// the oldest queued event is dropped to make room; the publisher never
// waits on a slow consumer.
func (h *Hub) Publish(ev models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
			h.logger.Warn("subscriber queue full, dropped oldest event",
				zap.Int("subscriber", id), zap.String("type", ev.Type))
		}
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
