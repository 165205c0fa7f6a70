package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/idgen"
	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
)

const (
	// sseQueueSize is the number of live events buffered per connection on
	// top of the replayed history.
	sseQueueSize = 256

	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	sseKeepaliveInterval = 15 * time.Second
)

// streamQueueSize leaves room for a full replay plus sseQueueSize live
// events, however much history arrives before Subscribe takes its snapshot.
func streamQueueSize(e *notify.Engine) int {
	return e.HistoryCap() + sseQueueSize
}

// errSlowConsumer is the handler fault of a connection whose queue is full.
var errSlowConsumer = errors.New("sse: client is not keeping up")

// sseConn is the engine-side half of one SSE connection. The handler only
// enqueues; the request goroutine does all writing.
type sseConn struct {
	queue chan model.Event
	gone  chan error
}

func newSSEConn(size int) *sseConn {
	return &sseConn{
		queue: make(chan model.Event, size),
		gone:  make(chan error, 1),
	}
}

func (c *sseConn) Handle(_ context.Context, ev model.Event) error {
	select {
	case c.queue <- ev:
		return nil
	default:
		return errSlowConsumer
	}
}

func (c *sseConn) disconnected(err error) {
	select {
	case c.gone <- err:
	default:
	}
}

// streamFilter builds the subscriber filter from ?kinds=, ?actors= and
// repeated ?where=path=value parameters.
func streamFilter(r *http.Request) (notify.Filter, error) {
	q := r.URL.Query()
	var actors []string
	for _, a := range strings.Split(q.Get("actors"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			actors = append(actors, a)
		}
	}
	return notify.FilterSpec{
		Kinds:  model.ParseKinds(q.Get("kinds")),
		Actors: actors,
		Where:  q["where"],
	}.Build()
}

// handleEventStream handles GET /v1/projects/{project}/events/stream (SSE
// endpoint). Each connection is one subscriber: retained history is replayed
// first, then live events follow until the client goes away or the engine
// disconnects the subscriber.
func (s *NotifyServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	// Ensure response supports flushing (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter, err := streamFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project := r.PathValue("project")
	id := r.URL.Query().Get("subscriber")
	if id == "" {
		if id, err = idgen.SubscriberID(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	conn := newSSEConn(streamQueueSize(s.engine))
	unsubscribe, err := s.engine.Subscribe(r.Context(), notify.Subscriber{
		ID:           id,
		ProjectID:    project,
		Handler:      conn,
		Filter:       filter,
		OnDisconnect: conn.disconnected,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer unsubscribe()

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}
	s.logger.Info("sse stream opened", "subscriber_id", id, "project_id", project)
	defer s.logger.Info("sse stream closed", "subscriber_id", id, "project_id", project)

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.Header().Set("X-Subscriber-ID", id)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Stream events until client disconnects.
	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.queue:
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case err := <-conn.gone:
			// Flush what was accepted before the disconnect, unless the
			// disconnect was this queue overflowing.
			if !errors.Is(err, errSlowConsumer) {
				drainSSE(w, conn.queue)
			}
			writeSSEDisconnect(w, err)
			flusher.Flush()
			return
		case <-keepalive.C:
			// Send a comment line as keepalive.
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func drainSSE(w http.ResponseWriter, queue <-chan model.Event) {
	for {
		select {
		case ev := <-queue:
			if writeSSEEvent(w, ev) != nil {
				return
			}
		default:
			return
		}
	}
}

// writeSSEEvent writes a single SSE event to the writer.
func writeSSEEvent(w http.ResponseWriter, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id:%s\nevent:%s\ndata:%s\n\n", ev.ID, ev.Kind, data)
	return err
}

// writeSSEDisconnect tells the client why the engine dropped its subscription.
func writeSSEDisconnect(w http.ResponseWriter, reason error) {
	data, _ := json.Marshal(map[string]string{"reason": reason.Error()})
	fmt.Fprintf(w, "event:disconnect\ndata:%s\n\n", data)
}
