package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// Sink accepts ingested events. The server's publish path implements it so
// that ingested events are archived and mirrored like any other.
type Sink interface {
	PublishEvent(ctx context.Context, ev model.Event) (model.Event, error)
}

// Ingestor feeds events published by upstream producers on
// feedpulse.ingest.> into a Sink. Malformed or invalid messages are logged
// and dropped.
type Ingestor struct {
	sub    Subscriber
	sink   Sink
	logger *slog.Logger

	accepted atomic.Int64
	rejected atomic.Int64
}

func NewIngestor(sub Subscriber, sink Sink, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{sub: sub, sink: sink, logger: logger}
}

// Run consumes until ctx is cancelled or the subscription channel closes.
func (i *Ingestor) Run(ctx context.Context) error {
	ch, cancel, err := i.sub.Subscribe(IngestWildcard)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer cancel()

	i.logger.Info("ingest: consuming", "subject", IngestWildcard)
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			i.handle(ctx, data)
		}
	}
}

func (i *Ingestor) handle(ctx context.Context, data []byte) {
	ev, err := decodeIngest(data)
	if err != nil {
		i.rejected.Add(1)
		i.logger.Warn("ingest: dropping message", "err", err)
		return
	}
	if _, err := i.sink.PublishEvent(ctx, ev); err != nil {
		i.rejected.Add(1)
		i.logger.Warn("ingest: publish failed", "project_id", ev.ProjectID, "kind", ev.Kind, "err", err)
		return
	}
	i.accepted.Add(1)
}

// Accepted and Rejected report message counts since Run started.
func (i *Ingestor) Accepted() int64 { return i.accepted.Load() }
func (i *Ingestor) Rejected() int64 { return i.rejected.Load() }

var errEmptyMessage = errors.New("empty message")

func decodeIngest(data []byte) (model.Event, error) {
	if len(data) == 0 {
		return model.Event{}, errEmptyMessage
	}
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if err := model.ValidateEvent(&ev); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}
