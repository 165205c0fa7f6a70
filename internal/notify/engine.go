package notify

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/feedpulse/internal/idgen"
	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// Engine distributes events to project-scoped subscribers. The zero value is
// not usable; construct one with New and hand it to whatever needs to
// publish or subscribe.
type Engine struct {
	cfg engineConfig

	// dispatchMu serializes Publish, Subscribe and Close end to end so that
	// history appends, replays and deliveries never interleave.
	dispatchMu sync.Mutex

	// mu guards the state below. It is never held while a handler runs.
	mu       sync.RWMutex
	history  *history
	registry *registry
	closed   bool
}

// New creates an engine.
func New(opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		cfg:      cfg,
		history:  newHistory(cfg.historyCap),
		registry: newRegistry(),
	}
}

// Publish stamps ev, appends it to its project's history and delivers it to
// every connected subscriber of that project whose filter accepts it.
//
// The id is generated when empty. The timestamp defaults to the engine
// clock and is raised, if needed, so that timestamps never decrease within
// a project. Handler faults are contained: they disconnect the offending
// subscriber and are never returned. ctx is passed to handlers but its
// cancellation does not stop delivery.
func (e *Engine) Publish(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ProjectID == "" {
		return model.Event{}, ErrMissingProject
	}
	if ev.Kind == "" {
		return model.Event{}, ErrMissingKind
	}
	if ev.ID == "" {
		id, err := idgen.EventID()
		if err != nil {
			return model.Event{}, fmt.Errorf("assigning event id: %w", err)
		}
		ev.ID = id
	}
	ev.Payload = bytes.Clone(ev.Payload)

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return model.Event{}, ErrEngineClosed
	}
	r := e.history.ring(ev.ProjectID)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.cfg.clock.Now()
	}
	if ev.Timestamp.Before(r.last) {
		ev.Timestamp = r.last
	}
	r.push(ev)
	size := r.n
	targets := e.registry.match(ev.ProjectID)
	e.mu.Unlock()

	e.cfg.recorder.Published(ev, size)

	dctx := context.WithoutCancel(ctx)
	for _, reg := range targets {
		e.deliver(dctx, reg, ev)
	}
	return detach(ev), nil
}

// Subscribe registers sub, marks it connected and replays the project's
// retained history to it, oldest first and through its filter, before
// returning. The returned function unsubscribes this registration; it is
// idempotent and safe to call from a handler.
//
// If sub.ID is already connected the older registration is replaced: it is
// disconnected with ErrSubscriberReplaced and its unsubscribe function
// becomes a no-op.
func (e *Engine) Subscribe(ctx context.Context, sub Subscriber) (unsubscribe func(), err error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	reg := &registration{sub: sub}

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	prev := e.registry.add(reg)
	backlog := e.history.tail(sub.ProjectID, 0)
	active := e.registry.count(sub.ProjectID)
	e.mu.Unlock()

	if prev != nil {
		e.cfg.logger.Warn("notify: subscriber replaced",
			"subscriber_id", sub.ID,
			"project_id", sub.ProjectID)
		if prev.sub.ProjectID != sub.ProjectID {
			e.cfg.recorder.SubscribersChanged(prev.sub.ProjectID, e.ActiveSubscriberCount(prev.sub.ProjectID))
		}
		notifyDisconnect(prev, ErrSubscriberReplaced)
	}
	e.cfg.recorder.SubscribersChanged(sub.ProjectID, active)

	dctx := context.WithoutCancel(ctx)
	for _, ev := range backlog {
		if !e.deliver(dctx, reg, ev) {
			break
		}
	}

	return func() { e.unsubscribe(reg) }, nil
}

func (e *Engine) unsubscribe(reg *registration) {
	e.mu.Lock()
	removed := e.registry.remove(reg)
	active := e.registry.count(reg.sub.ProjectID)
	e.mu.Unlock()

	if removed {
		e.cfg.recorder.SubscribersChanged(reg.sub.ProjectID, active)
	}
}

// History returns the retained events of a project oldest-first. With
// limit > 0 only the most recent min(limit, retained) events are returned.
func (e *Engine) History(projectID string, limit int) []model.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.tail(projectID, limit)
}

// HistoryCap returns the number of events retained per project, which is
// also the most a subscriber can be replayed.
func (e *Engine) HistoryCap() int { return e.cfg.historyCap }

// ActiveSubscriberCount returns the number of connected subscribers of a project.
func (e *Engine) ActiveSubscriberCount(projectID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.count(projectID)
}

// ConnectionStatus reports whether the subscriber with the given id is
// connected. Unknown ids are disconnected.
func (e *Engine) ConnectionStatus(id string) model.ConnectionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.registry.connected(id) {
		return model.StatusConnected
	}
	return model.StatusDisconnected
}

// Close disconnects every subscriber and rejects further Publish, Subscribe
// and Simulate calls. Retained history stays readable. Close is idempotent.
func (e *Engine) Close() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	regs := e.registry.drain()
	e.mu.Unlock()

	projects := make(map[string]struct{})
	for _, reg := range regs {
		projects[reg.sub.ProjectID] = struct{}{}
		notifyDisconnect(reg, ErrEngineClosed)
	}
	for p := range projects {
		e.cfg.recorder.SubscribersChanged(p, 0)
	}
	e.cfg.logger.Info("notify: engine closed", "disconnected", len(regs))
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}
