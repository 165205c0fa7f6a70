package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
)

// Scenario is the YAML form of a simulation configuration:
//
//	interval: 2s
//	jitter: 500ms
//	max_events: 0
//	kinds:
//	  - kind: comment.added
//	    weight: 5
//	  - kind: approval
//	actors: [director, editor]
//	messages: ["Tighten the intro."]
type Scenario struct {
	Interval  string         `yaml:"interval"`
	Jitter    string         `yaml:"jitter"`
	MaxEvents int            `yaml:"max_events"`
	Seed      uint64         `yaml:"seed"`
	Kinds     []ScenarioKind `yaml:"kinds"`
	Actors    []string       `yaml:"actors"`
	Messages  []string       `yaml:"messages"`
}

// ScenarioKind is one weighted kind. A missing weight counts as one.
type ScenarioKind struct {
	Kind   string `yaml:"kind"`
	Weight int    `yaml:"weight"`
}

// LoadScenario reads a YAML scenario file. An empty path yields the default
// demo scenario.
func LoadScenario(path string) (notify.SimulationConfig, error) {
	if path == "" {
		return notify.DefaultSimulationConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return notify.SimulationConfig{}, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes YAML scenario bytes. Fields left out fall back to
// the default demo scenario; unknown fields are rejected.
func ParseScenario(data []byte) (notify.SimulationConfig, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return notify.SimulationConfig{}, fmt.Errorf("parsing scenario: %w", err)
	}
	return s.SimulationConfig()
}

// SimulationConfig converts the scenario, validating durations and kinds.
func (s Scenario) SimulationConfig() (notify.SimulationConfig, error) {
	cfg := notify.DefaultSimulationConfig()

	if s.Interval != "" {
		d, err := time.ParseDuration(s.Interval)
		if err != nil {
			return cfg, fmt.Errorf("scenario interval: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("scenario interval: must be positive")
		}
		cfg.Interval = d
	}
	if s.Jitter != "" {
		d, err := time.ParseDuration(s.Jitter)
		if err != nil {
			return cfg, fmt.Errorf("scenario jitter: %w", err)
		}
		if d < 0 || d >= cfg.Interval {
			return cfg, fmt.Errorf("scenario jitter: must be in [0, interval)")
		}
		cfg.Jitter = d
	}
	if s.MaxEvents < 0 {
		return cfg, fmt.Errorf("scenario max_events: must not be negative")
	}
	cfg.MaxEvents = s.MaxEvents
	cfg.Seed = s.Seed

	if len(s.Kinds) > 0 {
		cfg.Kinds = make([]notify.WeightedKind, 0, len(s.Kinds))
		for i, k := range s.Kinds {
			ev := model.Event{ProjectID: "scenario", Kind: model.Kind(k.Kind)}
			if err := model.ValidateEvent(&ev); err != nil {
				return cfg, fmt.Errorf("scenario kinds[%d]: %w", i, err)
			}
			if k.Weight < 0 {
				return cfg, fmt.Errorf("scenario kinds[%d]: weight must not be negative", i)
			}
			cfg.Kinds = append(cfg.Kinds, notify.WeightedKind{Kind: model.Kind(k.Kind), Weight: max(k.Weight, 1)})
		}
	}
	if len(s.Actors) > 0 {
		cfg.Actors = s.Actors
	}
	if len(s.Messages) > 0 {
		cfg.Messages = s.Messages
	}
	return cfg, nil
}
