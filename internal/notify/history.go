package notify

import (
	"bytes"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// DefaultHistoryCap is the number of events retained per project.
const DefaultHistoryCap = 100

// ring is a fixed-capacity FIFO of events for one project.
type ring struct {
	buf  []model.Event
	pos  int // next write position (wraps around)
	n    int // number of valid entries (up to len(buf))
	last time.Time
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.Event, capacity)}
}

// push appends ev, overwriting the oldest entry once the ring is full.
func (r *ring) push(ev model.Event) {
	r.buf[r.pos] = ev
	r.pos = (r.pos + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
	r.last = ev.Timestamp
}

// tail returns the most recent min(limit, n) events oldest-first. A limit
// of zero or less returns everything retained.
func (r *ring) tail(limit int) []model.Event {
	count := r.n
	if limit > 0 && limit < count {
		count = limit
	}
	out := make([]model.Event, 0, count)

	start := r.pos - count
	if start < 0 {
		start += len(r.buf)
	}
	for i := range count {
		out = append(out, detach(r.buf[(start+i)%len(r.buf)]))
	}
	return out
}

// history holds one ring per project. It is not safe for concurrent use;
// the engine guards it.
type history struct {
	capacity int
	projects map[string]*ring
}

func newHistory(capacity int) *history {
	return &history{
		capacity: capacity,
		projects: make(map[string]*ring),
	}
}

func (h *history) ring(projectID string) *ring {
	r, ok := h.projects[projectID]
	if !ok {
		r = newRing(h.capacity)
		h.projects[projectID] = r
	}
	return r
}

func (h *history) tail(projectID string, limit int) []model.Event {
	r, ok := h.projects[projectID]
	if !ok {
		return []model.Event{}
	}
	return r.tail(limit)
}

// detach returns ev with a private copy of its payload, so that no reader
// can reach the bytes held in a ring.
func detach(ev model.Event) model.Event {
	ev.Payload = bytes.Clone(ev.Payload)
	return ev
}
