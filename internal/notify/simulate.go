package notify

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// WeightedKind is a kind the simulator emits with relative frequency Weight.
type WeightedKind struct {
	Kind   model.Kind
	Weight int
}

// SimulationConfig controls a synthetic event generator.
type SimulationConfig struct {
	// Interval is the mean delay between events.
	Interval time.Duration
	// Jitter spreads each delay uniformly over Interval ± Jitter.
	Jitter time.Duration
	// Kinds to emit; weights below one count as one.
	Kinds []WeightedKind
	// Actors are picked at random as ActorID.
	Actors []string
	// Messages are picked at random for the payload text.
	Messages []string
	// MaxEvents stops the simulation after that many events. Zero is unlimited.
	MaxEvents int
	// Seed makes the sequence reproducible. Zero picks a random seed.
	Seed uint64
}

// DefaultSimulationConfig is the demo scenario used when none is configured.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Interval: 3 * time.Second,
		Jitter:   time.Second,
		Kinds: []WeightedKind{
			{Kind: model.KindCommentAdded, Weight: 5},
			{Kind: model.KindCommentReplied, Weight: 3},
			{Kind: model.KindRevisionRequested, Weight: 2},
			{Kind: model.KindApproval, Weight: 1},
			{Kind: model.KindResolved, Weight: 2},
		},
		Actors: []string{"demo-director", "demo-editor", "demo-client"},
		Messages: []string{
			"Can we tighten the cut at 00:42?",
			"Colour grade looks great on this pass.",
			"Please swap the logo in the end card.",
			"Audio dips around the interview section.",
			"Approved for delivery.",
		},
	}
}

func (c SimulationConfig) withDefaults() SimulationConfig {
	d := DefaultSimulationConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter >= c.Interval {
		c.Jitter = c.Interval / 2
	}
	if len(c.Kinds) == 0 {
		c.Kinds = d.Kinds
	}
	if len(c.Actors) == 0 {
		c.Actors = d.Actors
	}
	if len(c.Messages) == 0 {
		c.Messages = d.Messages
	}
	return c
}

// simulatedPayload is the JSON payload of a synthesized event.
type simulatedPayload struct {
	Message   string `json:"message"`
	Sequence  int64  `json:"sequence"`
	Simulated bool   `json:"simulated"`
}

// Simulation is a running synthetic event generator. Obtain one from
// Engine.Simulate and end it with Stop.
type Simulation struct {
	engine    *Engine
	projectID string
	cfg       SimulationConfig
	clock     Clock
	rng       *rand.Rand

	// mu is held for the whole of a tick, so Stop waits for an in-flight
	// publish and no tick can begin one afterwards.
	mu      sync.Mutex
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	published atomic.Int64
}

// Simulate starts generating events for projectID through Publish.
func (e *Engine) Simulate(projectID string, cfg SimulationConfig) (*Simulation, error) {
	if projectID == "" {
		return nil, ErrMissingProject
	}
	if e.Closed() {
		return nil, ErrEngineClosed
	}
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	s := &Simulation{
		engine:    e,
		projectID: projectID,
		cfg:       cfg,
		clock:     e.cfg.clock,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run()

	e.cfg.logger.Info("notify: simulation started",
		"project_id", projectID,
		"interval", cfg.Interval,
		"jitter", cfg.Jitter)
	return s, nil
}

// SimulateRealtimeEvents starts the engine's configured scenario for
// projectID and returns its stop function. On a closed engine the returned
// stop function is a no-op.
func (e *Engine) SimulateRealtimeEvents(projectID string) (stop func()) {
	s, err := e.Simulate(projectID, e.cfg.scenario)
	if err != nil {
		e.cfg.logger.Warn("notify: simulation not started", "project_id", projectID, "err", err)
		return func() {}
	}
	return s.Stop
}

// Stop ends the simulation. Once Stop returns no further event from this
// simulation reaches Publish. It is idempotent. Like Publish, it must not be
// called from a handler of the same engine.
func (s *Simulation) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.stopCh)
		s.mu.Unlock()
	})
	<-s.done
}

// Done is closed when the generator goroutine has exited, either after
// Stop or once MaxEvents have been published.
func (s *Simulation) Done() <-chan struct{} { return s.done }

// Published returns the number of events this simulation has published.
func (s *Simulation) Published() int64 { return s.published.Load() }

// ProjectID returns the simulated project.
func (s *Simulation) ProjectID() string { return s.projectID }

func (s *Simulation) run() {
	defer close(s.done)
	for {
		t := s.clock.NewTimer(s.nextDelay())
		select {
		case <-s.stopCh:
			t.Stop()
			return
		case <-t.C():
		}
		if !s.tick() {
			return
		}
	}
}

// tick publishes one synthesized event and reports whether to continue.
func (s *Simulation) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	seq := s.published.Load() + 1
	ev, err := s.synthesize(seq)
	if err != nil {
		s.engine.cfg.logger.Error("notify: simulation payload", "project_id", s.projectID, "err", err)
		return true
	}
	if _, err := s.engine.Publish(context.Background(), ev); err != nil {
		if errors.Is(err, ErrEngineClosed) {
			s.stopped = true
			return false
		}
		s.engine.cfg.logger.Warn("notify: simulated publish failed", "project_id", s.projectID, "err", err)
		return true
	}

	n := s.published.Add(1)
	if s.cfg.MaxEvents > 0 && n >= int64(s.cfg.MaxEvents) {
		s.stopped = true
		return false
	}
	return true
}

func (s *Simulation) synthesize(seq int64) (model.Event, error) {
	payload, err := json.Marshal(simulatedPayload{
		Message:   s.cfg.Messages[s.rng.IntN(len(s.cfg.Messages))],
		Sequence:  seq,
		Simulated: true,
	})
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Kind:      s.pickKind(),
		ProjectID: s.projectID,
		ActorID:   s.cfg.Actors[s.rng.IntN(len(s.cfg.Actors))],
		Payload:   payload,
	}, nil
}

func (s *Simulation) pickKind() model.Kind {
	total := 0
	for _, k := range s.cfg.Kinds {
		total += max(k.Weight, 1)
	}
	n := s.rng.IntN(total)
	for _, k := range s.cfg.Kinds {
		n -= max(k.Weight, 1)
		if n < 0 {
			return k.Kind
		}
	}
	return s.cfg.Kinds[len(s.cfg.Kinds)-1].Kind
}

func (s *Simulation) nextDelay() time.Duration {
	if s.cfg.Jitter <= 0 {
		return s.cfg.Interval
	}
	spread := s.rng.Int64N(int64(2*s.cfg.Jitter) + 1)
	return s.cfg.Interval - s.cfg.Jitter + time.Duration(spread)
}
