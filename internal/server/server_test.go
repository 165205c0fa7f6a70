package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/feedpulse/internal/metrics"
	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
	"github.com/alfredjeanlab/feedpulse/internal/store"
)

// memStore is an in-memory archive.
type memStore struct {
	mu        sync.Mutex
	events    []model.Event
	recordErr error
}

var _ store.Store = (*memStore)(nil)

func (m *memStore) RecordEvent(_ context.Context, ev model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, store.ErrNotFound
}

func (m *memStore) ListProjectEvents(_ context.Context, projectID string, limit int) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Event{}
	for _, ev := range m.events {
		if ev.ProjectID == projectID {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) ListAllEvents(context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Event(nil), m.events...), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// capturePublisher records mirrored subjects.
type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNotifyServer(opts ...Option) *NotifyServer {
	engine := notify.New(notify.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewNotifyServer(engine, opts...)
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %v, got nil", code)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != code {
		t.Fatalf("expected code %v, got %v: %s", code, st.Code(), st.Message())
	}
}

func TestPublishEvent_ArchivesAndMirrors(t *testing.T) {
	ms := &memStore{}
	pub := &capturePublisher{}
	s := newTestNotifyServer(WithStore(ms), WithPublisher(pub))

	ev, err := s.PublishEvent(context.Background(), model.Event{
		Kind:      model.KindCommentAdded,
		ProjectID: "p1",
		ActorID:   "alice",
		Payload:   json.RawMessage(`{"text":"hi"}`),
	})
	if err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("event not stamped: %+v", ev)
	}

	stored, err := ms.GetEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("archived event: %v", err)
	}
	if !stored.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("archived timestamp %v, want %v", stored.Timestamp, ev.Timestamp)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "feedpulse.events.comment.added" {
		t.Errorf("mirrored subjects = %v", pub.subjects)
	}
	if n := len(s.Engine().History("p1", 0)); n != 1 {
		t.Errorf("history = %d, want 1", n)
	}
}

func TestPublishEvent_InvalidInput(t *testing.T) {
	ms := &memStore{}
	s := newTestNotifyServer(WithStore(ms))

	for _, ev := range []model.Event{
		{Kind: model.KindApproval},
		{ProjectID: "p1"},
		{ProjectID: "p1", Kind: "Not A Kind"},
		{ProjectID: "p1", Kind: model.KindApproval, Payload: json.RawMessage(`{broken`)},
	} {
		_, err := s.PublishEvent(context.Background(), ev)
		var ie inputError
		if !errors.As(err, &ie) {
			t.Errorf("PublishEvent(%+v) err = %v, want inputError", ev, err)
		}
	}
	if ms.count() != 0 {
		t.Errorf("archived %d invalid events", ms.count())
	}
}

func TestPublishEvent_SideChannelFailures(t *testing.T) {
	m := metrics.New()
	ms := &memStore{recordErr: errors.New("db down")}
	pub := &capturePublisher{err: errors.New("nats down")}
	s := newTestNotifyServer(WithStore(ms), WithPublisher(pub), WithMetrics(m))

	var got []model.Event
	_, err := s.Engine().Subscribe(context.Background(), notify.Subscriber{
		ID: "w", ProjectID: "p1",
		Handler: notify.HandlerFunc(func(_ context.Context, ev model.Event) error {
			got = append(got, ev)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := s.PublishEvent(context.Background(), model.Event{Kind: model.KindResolved, ProjectID: "p1"}); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	n, err := testutil.GatherAndCount(m.Registry(), "feedpulse_side_channel_errors_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("side channel error series = %d, want 2 (archive and nats)", n)
	}
}

func TestPublishEvent_EngineClosed(t *testing.T) {
	s := newTestNotifyServer()
	s.Shutdown()
	_, err := s.PublishEvent(context.Background(), model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	if !errors.Is(err, notify.ErrEngineClosed) {
		t.Fatalf("err = %v, want ErrEngineClosed", err)
	}
}

func TestSimulationLifecycle(t *testing.T) {
	s := newTestNotifyServer(WithScenario(notify.SimulationConfig{Interval: time.Millisecond}))

	if _, err := s.StartSimulation("p1", notify.SimulationConfig{}); err != nil {
		t.Fatalf("StartSimulation: %v", err)
	}
	if _, err := s.StartSimulation("p1", notify.SimulationConfig{}); !errors.Is(err, ErrSimulationRunning) {
		t.Fatalf("second start err = %v, want ErrSimulationRunning", err)
	}
	if _, ok := s.Simulation("p1"); !ok {
		t.Fatal("expected a running simulation")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(s.Engine().History("p1", 0)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("simulation published nothing")
		}
		time.Sleep(time.Millisecond)
	}

	n, err := s.StopSimulation("p1")
	if err != nil {
		t.Fatalf("StopSimulation: %v", err)
	}
	if n == 0 {
		t.Error("expected a published count")
	}
	if _, err := s.StopSimulation("p1"); !errors.Is(err, ErrNoSimulation) {
		t.Fatalf("second stop err = %v, want ErrNoSimulation", err)
	}
}

func TestSimulation_FinishedIsForgotten(t *testing.T) {
	m := metrics.New()
	s := newTestNotifyServer(WithMetrics(m))
	sim, err := s.StartSimulation("p1", notify.SimulationConfig{Interval: time.Millisecond, MaxEvents: 2})
	if err != nil {
		t.Fatalf("StartSimulation: %v", err)
	}
	<-sim.Done()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.Simulation("p1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished simulation still registered")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := s.StartSimulation("p1", notify.SimulationConfig{Interval: time.Hour}); err != nil {
		t.Fatalf("restart after finish: %v", err)
	}
	s.Shutdown()
}

func TestShutdown(t *testing.T) {
	s := newTestNotifyServer()
	sim, err := s.StartSimulation("p1", notify.SimulationConfig{Interval: time.Hour})
	if err != nil {
		t.Fatalf("StartSimulation: %v", err)
	}
	s.Shutdown()

	select {
	case <-sim.Done():
	default:
		t.Error("simulation still running after Shutdown")
	}
	if !s.Engine().Closed() {
		t.Error("engine not closed")
	}
	if _, err := s.StartSimulation("p2", notify.SimulationConfig{}); !errors.Is(err, notify.ErrEngineClosed) {
		t.Errorf("start after shutdown err = %v", err)
	}
	rec := doJSON(t, s.NewHTTPHandler(""), http.MethodGet, "/v1/health", nil)
	requireStatus(t, rec, http.StatusServiceUnavailable)
}

func TestLoggingInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	resp, err := LoggingInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("expected resp=%q err=nil, got resp=%v err=%v", "ok", resp, err)
	}

	_, err = LoggingInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req any) (any, error) { return nil, fmt.Errorf("boom") })
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	resp, err := RecoveryInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("expected resp=%q err=nil, got resp=%v err=%v", "ok", resp, err)
	}

	_, err = RecoveryInterceptor(context.Background(), nil, info,
		func(_ context.Context, _ any) (any, error) { panic("test panic") })
	requireCode(t, err, codes.Internal)
}
