// Package stream fans live tracker output out to websocket subscribers.
// Publishing never blocks: each subscriber has a buffered channel and
// frames are dropped per-subscriber when a client can't keep up.
package stream

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/tracksight/internal/monitoring"
	"github.com/banshee-data/tracksight/internal/tracker"
)

// subscriberBuffer is how many frames a slow client can fall behind before
// updates are dropped for it.
const subscriberBuffer = 16

// FrameUpdate is the JSON payload delivered to subscribers after each
// processed frame.
type FrameUpdate struct {
	CameraID string             `json:"camera_id"`
	RunID    string             `json:"run_id"`
	Frame    int64              `json:"frame"`
	Tracks   []tracker.Snapshot `json:"tracks"`
	Dropped  int                `json:"dropped,omitempty"`
}

type subscriber struct {
	cameraID string // empty subscribes to every camera
	ch       chan FrameUpdate
}

// Hub distributes frame updates to any number of subscribers.
type Hub struct {
	mu            sync.Mutex
	subscribers   map[string]*subscriber
	droppedFrames atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
	}
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber for the given camera (empty string
// for all cameras) and returns its ID and receive channel. The channel is
// closed by Unsubscribe.
func (h *Hub) Subscribe(cameraID string) (string, <-chan FrameUpdate) {
	id := randomID()
	sub := &subscriber{
		cameraID: cameraID,
		ch:       make(chan FrameUpdate, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown IDs are
// ignored so deferred cleanup is safe to run more than once.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.ch)
		delete(h.subscribers, id)
	}
}

// PublishFrame delivers one frame of tracker output to every matching
// subscriber. Full subscribers are skipped so the caller never blocks.
// Implements the session publisher interface.
func (h *Hub) PublishFrame(cameraID, runID string, res tracker.StepResult) {
	update := FrameUpdate{
		CameraID: cameraID,
		RunID:    runID,
		Frame:    res.Frame,
		Tracks:   res.Active,
		Dropped:  res.Dropped,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		if sub.cameraID != "" && sub.cameraID != cameraID {
			continue
		}
		select {
		case sub.ch <- update:
		default:
			// if the channel is full/blocking skip so as not to block the caller
			if n := h.droppedFrames.Add(1); n == 1 || n%1000 == 0 {
				monitoring.Logf("[Hub] %d frame updates dropped for slow subscribers", n)
			}
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// DroppedFrames returns how many updates were discarded because a
// subscriber's buffer was full.
func (h *Hub) DroppedFrames() int64 {
	return h.droppedFrames.Load()
}
