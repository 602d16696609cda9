package broadcast

import "sync"

const subscriberBuffer = 16

// Event is the self-describing envelope delivered to room subscribers.
// Payloads are full snapshots, never deltas.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Event names published by the session coordinator.
const (
	EventStudentJoined     = "student_joined"
	EventQuizStarted       = "quiz_started"
	EventScoreboardUpdated = "scoreboard_updated"
	EventQuizFinished      = "quiz_finished"
)

// Hub fans events out to every connection subscribed to a room, keyed by
// room code. Delivery is best-effort: a slow or stalled subscriber has its
// oldest buffered event dropped rather than blocking the publisher.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a new subscriber for a room and returns its event
// channel. The caller must invoke cancel to release the subscription.
func (h *Hub) Subscribe(roomCode string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.rooms[roomCode]
	if !ok {
		subs = make(map[chan Event]struct{})
		h.rooms[roomCode] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.rooms[roomCode]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.rooms, roomCode)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber of a room.
// Events published from one call keep their order per subscriber; no order
// is guaranteed across concurrent Publish calls.
func (h *Hub) Publish(roomCode string, e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[roomCode] {
		select {
		case ch <- e:
		default:
			// Full buffer: drop the oldest event so the subscriber
			// eventually sees the newest snapshot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// Subscribers reports how many connections are subscribed to a room.
func (h *Hub) Subscribers(roomCode string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomCode])
}
