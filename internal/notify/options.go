package notify

import (
	"log/slog"
	"time"
)

type engineConfig struct {
	historyCap     int
	handlerTimeout time.Duration
	logger         *slog.Logger
	recorder       Recorder
	clock          Clock
	scenario       SimulationConfig
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		historyCap: DefaultHistoryCap,
		logger:     slog.Default(),
		recorder:   nopRecorder{},
		clock:      RealClock{},
		scenario:   DefaultSimulationConfig(),
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithHistoryCap overrides the per-project history capacity. Values below
// one are ignored.
func WithHistoryCap(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.historyCap = n
		}
	}
}

// WithHandlerTimeout bounds each handler invocation. The handler's context
// carries the deadline, and a handler still running when it expires is
// treated as faulted once it returns. Zero disables the bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		if d >= 0 {
			c.handlerTimeout = d
		}
	}
}

// WithLogger sets the logger used for faults and lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *engineConfig) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithClock replaces the wall clock used for timestamps and simulations.
func WithClock(clk Clock) Option {
	return func(c *engineConfig) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithScenario sets the configuration SimulateRealtimeEvents uses.
func WithScenario(s SimulationConfig) Option {
	return func(c *engineConfig) {
		c.scenario = s
	}
}
