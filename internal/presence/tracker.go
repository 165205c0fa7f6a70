// Package presence tracks which actors are active on each project.
//
// Activity is derived from published events: every event with an actor
// refreshes that actor's entry for the event's project. A background reaper
// marks actors idle after a quiet period and forgets them some time later,
// so the roster stays bounded for projects with many short-lived actors.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// Entry is one actor's activity on a project.
type Entry struct {
	Actor       string     `json:"actor"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	LastKind    model.Kind `json:"last_kind"`
	LastEventID string     `json:"last_event_id"`
	EventCount  int64      `json:"event_count"`
	IdleSecs    float64    `json:"idle_secs"`
	Idle        bool       `json:"idle,omitempty"`
	IdleSince   time.Time  `json:"idle_since,omitzero"`
}

// ReaperConfig configures the background idle sweep.
type ReaperConfig struct {
	// IdleAfter is how long an actor may publish nothing before it is marked
	// idle. Default: 15 minutes.
	IdleAfter time.Duration

	// ForgetAfter is how long an idle actor is kept before it is removed.
	// Actors with fewer than ten events are removed after five minutes.
	// Default: 30 minutes.
	ForgetAfter time.Duration

	// SweepInterval is how often the reaper runs. Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each actor newly marked idle, outside the lock.
	OnIdle func(projectID, actor string)
}

func (c *ReaperConfig) withDefaults() *ReaperConfig {
	out := ReaperConfig{}
	if c != nil {
		out = *c
	}
	if out.IdleAfter <= 0 {
		out.IdleAfter = 15 * time.Minute
	}
	if out.ForgetAfter <= 0 {
		out.ForgetAfter = 30 * time.Minute
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = 60 * time.Second
	}
	return &out
}

// Tracker holds per-project actor activity in memory.
type Tracker struct {
	mu       sync.RWMutex
	projects map[string]map[string]*actorState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type actorState struct {
	firstSeen   time.Time
	lastSeen    time.Time
	lastKind    model.Kind
	lastEventID string
	eventCount  int64
	idle        bool
	idleSince   time.Time
}

func New() *Tracker {
	return &Tracker{projects: make(map[string]map[string]*actorState)}
}

// Record refreshes the publishing actor of ev. Events without an actor or a
// project are ignored.
func (t *Tracker) Record(ev model.Event) {
	if ev.ActorID == "" || ev.ProjectID == "" {
		return
	}
	seen := ev.Timestamp
	if seen.IsZero() {
		seen = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	actors, ok := t.projects[ev.ProjectID]
	if !ok {
		actors = make(map[string]*actorState)
		t.projects[ev.ProjectID] = actors
	}
	state, ok := actors[ev.ActorID]
	if !ok {
		state = &actorState{firstSeen: seen}
		actors[ev.ActorID] = state
	}
	if state.idle {
		slog.Debug("presence: actor active again", "project_id", ev.ProjectID, "actor", ev.ActorID)
		state.idle = false
		state.idleSince = time.Time{}
	}
	if seen.After(state.lastSeen) {
		state.lastSeen = seen
	}
	state.lastKind = ev.Kind
	state.lastEventID = ev.ID
	state.eventCount++
}

// Roster returns the actors of projectID, most recently active first.
// activeWithin excludes actors quiet for longer; zero includes everyone
// still tracked.
func (t *Tracker) Roster(projectID string, activeWithin time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	actors := t.projects[projectID]
	entries := make([]Entry, 0, len(actors))
	for actor, state := range actors {
		idle := now.Sub(state.lastSeen)
		if activeWithin > 0 && idle > activeWithin {
			continue
		}
		entries = append(entries, Entry{
			Actor:       actor,
			FirstSeen:   state.firstSeen,
			LastSeen:    state.lastSeen,
			LastKind:    state.lastKind,
			LastEventID: state.lastEventID,
			EventCount:  state.eventCount,
			IdleSecs:    max(idle.Seconds(), 0),
			Idle:        state.idle,
			IdleSince:   state.idleSince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].Actor < entries[j].Actor
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches the idle sweep. Call Stop to end it.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	cfg = cfg.withDefaults()
	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_after", cfg.IdleAfter,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine, if running.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg, time.Now())
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig, now time.Time) {
	type idleActor struct{ project, actor string }
	var newlyIdle []idleActor

	t.mu.Lock()
	for project, actors := range t.projects {
		for actor, state := range actors {
			if state.idle {
				forget := cfg.ForgetAfter
				if state.eventCount < 10 {
					forget = min(forget, 5*time.Minute)
				}
				if now.Sub(state.idleSince) > forget {
					delete(actors, actor)
				}
				continue
			}
			if now.Sub(state.lastSeen) > cfg.IdleAfter {
				state.idle = true
				state.idleSince = now
				newlyIdle = append(newlyIdle, idleActor{project, actor})
			}
		}
		if len(actors) == 0 {
			delete(t.projects, project)
		}
	}
	t.mu.Unlock()

	for _, a := range newlyIdle {
		slog.Debug("presence: actor idle", "project_id", a.project, "actor", a.actor)
		if cfg.OnIdle != nil {
			cfg.OnIdle(a.project, a.actor)
		}
	}
}
