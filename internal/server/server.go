// Package server exposes a notification engine over HTTP (JSON and SSE) and
// gRPC, and bridges published events to the archive and the NATS mirror.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/feedpulse/internal/events"
	"github.com/alfredjeanlab/feedpulse/internal/metrics"
	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
	"github.com/alfredjeanlab/feedpulse/internal/presence"
	"github.com/alfredjeanlab/feedpulse/internal/store"
)

// ServiceName is the name the gRPC health service reports on.
const ServiceName = "feedpulse.v1.Notify"

var (
	// ErrSimulationRunning is returned when a project already has a simulation.
	ErrSimulationRunning = errors.New("simulation already running")

	// ErrNoSimulation is returned when stopping a project that has none.
	ErrNoSimulation = errors.New("no simulation running")
)

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// NotifyServer fronts a notify.Engine. The archive, the mirror publisher and
// metrics are optional side channels; failures there are logged and never
// fail a publish.
type NotifyServer struct {
	engine    *notify.Engine
	store     store.Store // nil when the archive is disabled
	publisher events.Publisher
	metrics   *metrics.Metrics
	presence  *presence.Tracker // nil when actor tracking is disabled
	scenario  notify.SimulationConfig
	logger    *slog.Logger
	health    *health.Server

	simMu sync.Mutex
	sims  map[string]*notify.Simulation
}

var _ events.Sink = (*NotifyServer)(nil)

// Option configures a NotifyServer.
type Option func(*NotifyServer)

// WithStore enables the event archive.
func WithStore(s store.Store) Option {
	return func(n *NotifyServer) { n.store = s }
}

// WithPublisher sets the mirror publisher. The default publishes nowhere.
func WithPublisher(p events.Publisher) Option {
	return func(n *NotifyServer) {
		if p != nil {
			n.publisher = p
		}
	}
}

// WithMetrics enables gateway and side-channel metrics and the /metrics route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *NotifyServer) { n.metrics = m }
}

// WithPresence records the actor of every published event in t.
func WithPresence(t *presence.Tracker) Option {
	return func(n *NotifyServer) { n.presence = t }
}

// WithScenario sets the simulation defaults used when a start request does
// not override them.
func WithScenario(cfg notify.SimulationConfig) Option {
	return func(n *NotifyServer) { n.scenario = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *NotifyServer) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNotifyServer returns a NotifyServer for engine.
func NewNotifyServer(engine *notify.Engine, opts ...Option) *NotifyServer {
	s := &NotifyServer{
		engine:    engine,
		publisher: &events.NoopPublisher{},
		scenario:  notify.DefaultSimulationConfig(),
		logger:    slog.Default(),
		health:    health.NewServer(),
		sims:      make(map[string]*notify.Simulation),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Engine returns the underlying engine.
func (s *NotifyServer) Engine() *notify.Engine { return s.engine }

// PublishEvent validates ev, publishes it through the engine and then
// archives, mirrors and records the presence of the stamped event.
func (s *NotifyServer) PublishEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if err := model.ValidateEvent(&ev); err != nil {
		return model.Event{}, inputError(err.Error())
	}
	published, err := s.engine.Publish(ctx, ev)
	if err != nil {
		return model.Event{}, err
	}

	if s.store != nil {
		if err := s.store.RecordEvent(ctx, published); err != nil {
			s.logger.Warn("failed to archive event", "event_id", published.ID, "project_id", published.ProjectID, "error", err)
			s.sideChannelError("archive")
		}
	}
	if err := events.Mirror(ctx, s.publisher, published); err != nil {
		s.logger.Warn("failed to mirror event", "event_id", published.ID, "subject", events.Subject(published), "error", err)
		s.sideChannelError("nats")
	}
	if s.presence != nil {
		s.presence.Record(published)
	}
	return published, nil
}

func (s *NotifyServer) sideChannelError(channel string) {
	if s.metrics != nil {
		s.metrics.SideChannelError(channel)
	}
}

// StartSimulation starts a simulation for projectID. Zero fields of
// override fall back to the configured scenario.
func (s *NotifyServer) StartSimulation(projectID string, override notify.SimulationConfig) (*notify.Simulation, error) {
	cfg := s.scenario
	if override.Interval > 0 {
		cfg.Interval = override.Interval
	}
	if override.Jitter > 0 {
		cfg.Jitter = override.Jitter
	}
	if override.MaxEvents > 0 {
		cfg.MaxEvents = override.MaxEvents
	}
	if override.Seed != 0 {
		cfg.Seed = override.Seed
	}

	s.simMu.Lock()
	defer s.simMu.Unlock()
	if _, ok := s.sims[projectID]; ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrSimulationRunning)
	}
	sim, err := s.engine.Simulate(projectID, cfg)
	if err != nil {
		return nil, err
	}
	s.sims[projectID] = sim
	if s.metrics != nil {
		s.metrics.SimulationStarted()
	}

	go func() {
		<-sim.Done()
		s.simMu.Lock()
		if s.sims[projectID] == sim {
			delete(s.sims, projectID)
		}
		s.simMu.Unlock()
		if s.metrics != nil {
			s.metrics.SimulationStopped()
		}
	}()
	return sim, nil
}

// StopSimulation stops the project's simulation and returns the number of
// events it published.
func (s *NotifyServer) StopSimulation(projectID string) (int64, error) {
	s.simMu.Lock()
	sim, ok := s.sims[projectID]
	delete(s.sims, projectID)
	s.simMu.Unlock()
	if !ok {
		return 0, fmt.Errorf("project %s: %w", projectID, ErrNoSimulation)
	}
	sim.Stop()
	return sim.Published(), nil
}

// Simulation returns the running simulation of a project, if any.
func (s *NotifyServer) Simulation(projectID string) (*notify.Simulation, bool) {
	s.simMu.Lock()
	defer s.simMu.Unlock()
	sim, ok := s.sims[projectID]
	return sim, ok
}

// Shutdown stops every simulation, closes the engine and marks the gRPC
// health service NOT_SERVING.
func (s *NotifyServer) Shutdown() {
	s.simMu.Lock()
	sims := make([]*notify.Simulation, 0, len(s.sims))
	for p, sim := range s.sims {
		sims = append(sims, sim)
		delete(s.sims, p)
	}
	s.simMu.Unlock()

	for _, sim := range sims {
		sim.Stop()
	}
	s.engine.Close()
	s.health.Shutdown()
}
