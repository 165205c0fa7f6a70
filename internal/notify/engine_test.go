package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// recorder is a Handler that keeps every delivered event.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Handle(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) got() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(opts ...Option) *Engine {
	return New(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func mustSubscribe(t *testing.T, e *Engine, sub Subscriber) func() {
	t.Helper()
	unsub, err := e.Subscribe(context.Background(), sub)
	if err != nil {
		t.Fatalf("Subscribe(%s): %v", sub.ID, err)
	}
	return unsub
}

func mustPublish(t *testing.T, e *Engine, ev model.Event) model.Event {
	t.Helper()
	out, err := e.Publish(context.Background(), ev)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return out
}

func indexed(project string, i int) model.Event {
	return model.Event{
		Kind:      model.KindCommentAdded,
		ProjectID: project,
		Payload:   json.RawMessage(fmt.Sprintf(`{"index":%d}`, i)),
	}
}

func indexOf(t *testing.T, ev model.Event) int {
	t.Helper()
	var p struct {
		Index int `json:"index"`
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("payload %s: %v", ev.Payload, err)
	}
	return p.Index
}

func TestPublish_DeliversToProjectSubscriber(t *testing.T) {
	e := newTestEngine()
	s1 := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "s1", ProjectID: "p1", Handler: s1})

	ev := mustPublish(t, e, model.Event{Kind: model.KindCommentAdded, ProjectID: "p1", ActorID: "alice"})

	got := s1.got()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].ID != ev.ID || got[0].Kind != model.KindCommentAdded {
		t.Errorf("delivered %+v, want %+v", got[0], ev)
	}
	if ev.ID == "" {
		t.Error("expected Publish to assign an id")
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected Publish to assign a timestamp")
	}
}

func TestPublish_CrossProjectIsolation(t *testing.T) {
	e := newTestEngine()
	s1, s2 := &recorder{}, &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "s1", ProjectID: "p1", Handler: s1})
	mustSubscribe(t, e, Subscriber{ID: "s2", ProjectID: "p2", Handler: s2})

	mustPublish(t, e, model.Event{Kind: model.KindCommentAdded, ProjectID: "p1"})

	if n := len(s1.got()); n != 1 {
		t.Errorf("s1 deliveries = %d, want 1", n)
	}
	if n := len(s2.got()); n != 0 {
		t.Errorf("s2 deliveries = %d, want 0", n)
	}
}

func TestPublish_ManyProjectsNeverLeak(t *testing.T) {
	e := newTestEngine()
	projects := []string{"p1", "p2", "p3", "p4"}
	recs := make(map[string]*recorder)
	for _, p := range projects {
		recs[p] = &recorder{}
		mustSubscribe(t, e, Subscriber{ID: "sub-" + p, ProjectID: p, Handler: recs[p]})
	}

	for i := range 40 {
		mustPublish(t, e, indexed(projects[i%len(projects)], i))
	}

	for p, r := range recs {
		got := r.got()
		if len(got) != 10 {
			t.Errorf("%s: got %d events, want 10", p, len(got))
		}
		for _, ev := range got {
			if ev.ProjectID != p {
				t.Fatalf("%s received event of project %s", p, ev.ProjectID)
			}
		}
	}
}

func TestPublish_FilterByKind(t *testing.T) {
	e := newTestEngine()
	f := &recorder{}
	mustSubscribe(t, e, Subscriber{
		ID:        "f",
		ProjectID: "p1",
		Handler:   f,
		Filter:    FilterFunc(func(ev model.Event) bool { return ev.Kind == model.KindResolved }),
	})

	mustPublish(t, e, model.Event{Kind: model.KindCommentAdded, ProjectID: "p1"})
	e2 := mustPublish(t, e, model.Event{Kind: model.KindResolved, ProjectID: "p1"})

	got := f.got()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].ID != e2.ID {
		t.Errorf("delivered %s, want %s", got[0].ID, e2.ID)
	}
}

func TestPublish_NoFilterReceivesEverything(t *testing.T) {
	e := newTestEngine()
	r := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "all", ProjectID: "p1", Handler: r})

	for _, k := range model.BuiltinKinds {
		mustPublish(t, e, model.Event{Kind: k, ProjectID: "p1"})
	}
	if n := len(r.got()); n != len(model.BuiltinKinds) {
		t.Errorf("got %d, want %d", n, len(model.BuiltinKinds))
	}
}

func TestPublish_PerSubscriberOrder(t *testing.T) {
	e := newTestEngine()
	r := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "ordered", ProjectID: "p1", Handler: r})

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20 {
				_, _ = e.Publish(context.Background(), indexed("p1", w*100+i))
			}
		}()
	}
	wg.Wait()

	got := r.got()
	hist := e.History("p1", 0)
	if len(got) != 80 || len(hist) != 80 {
		t.Fatalf("got %d deliveries and %d history entries, want 80", len(got), len(hist))
	}
	for i := range got {
		if got[i].ID != hist[i].ID {
			t.Fatalf("delivery %d = %s, history %d = %s", i, got[i].ID, i, hist[i].ID)
		}
		if i > 0 && got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("timestamp decreased at %d", i)
		}
	}
}

func TestPublish_TimestampNeverDecreases(t *testing.T) {
	e := newTestEngine()
	now := time.Now().UTC()
	first := mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1", Timestamp: now})
	second := mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1", Timestamp: now.Add(-time.Hour)})

	if second.Timestamp.Before(first.Timestamp) {
		t.Fatalf("second timestamp %v before first %v", second.Timestamp, first.Timestamp)
	}

	// Other projects are unaffected.
	other := mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p2", Timestamp: now.Add(-time.Hour)})
	if !other.Timestamp.Equal(now.Add(-time.Hour)) {
		t.Errorf("p2 timestamp = %v, want %v", other.Timestamp, now.Add(-time.Hour))
	}
}

func TestPublish_KeepsCallerID(t *testing.T) {
	e := newTestEngine()
	ev := mustPublish(t, e, model.Event{ID: "ev-fixed", Kind: model.KindApproval, ProjectID: "p1"})
	if ev.ID != "ev-fixed" {
		t.Errorf("id = %q, want ev-fixed", ev.ID)
	}
}

func TestPublish_PayloadIsCopied(t *testing.T) {
	e := newTestEngine()
	payload := []byte(`{"text":"original"}`)
	mustPublish(t, e, model.Event{Kind: model.KindCommentAdded, ProjectID: "p1", Payload: payload})

	copy(payload, []byte(`{"text":"mutated!"}`))

	hist := e.History("p1", 0)
	if string(hist[0].Payload) != `{"text":"original"}` {
		t.Errorf("history payload changed to %s", hist[0].Payload)
	}
}

func TestPublish_HandlersGetPrivatePayloads(t *testing.T) {
	e := newTestEngine()
	mustSubscribe(t, e, Subscriber{
		ID: "scribbler", ProjectID: "p1",
		Handler: HandlerFunc(func(_ context.Context, ev model.Event) error {
			ev.Payload[2] = 'X'
			return nil
		}),
	})
	var seen string
	mustSubscribe(t, e, Subscriber{
		ID: "reader", ProjectID: "p1",
		Handler: HandlerFunc(func(_ context.Context, ev model.Event) error {
			seen = string(ev.Payload)
			return nil
		}),
	})

	published := mustPublish(t, e, model.Event{Kind: model.KindCommentAdded, ProjectID: "p1", Payload: []byte(`{"a":1}`)})
	published.Payload[3] = 'Z'

	if seen != `{"a":1}` {
		t.Errorf("second subscriber saw %s", seen)
	}
	if got := string(e.History("p1", 0)[0].Payload); got != `{"a":1}` {
		t.Errorf("history payload = %s", got)
	}

	var replayed string
	mustSubscribe(t, e, Subscriber{
		ID: "late", ProjectID: "p1",
		Handler: HandlerFunc(func(_ context.Context, ev model.Event) error {
			replayed = string(ev.Payload)
			return nil
		}),
	})
	if replayed != `{"a":1}` {
		t.Errorf("replay payload = %s", replayed)
	}
}

func TestPublish_Validation(t *testing.T) {
	e := newTestEngine()
	for _, tc := range []struct {
		name string
		ev   model.Event
		want error
	}{
		{"MissingProject", model.Event{Kind: model.KindApproval}, ErrMissingProject},
		{"MissingKind", model.Event{ProjectID: "p1"}, ErrMissingKind},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Publish(context.Background(), tc.ev)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if n := len(e.History("p1", 0)); n != 0 {
		t.Errorf("rejected events must not enter history, got %d", n)
	}
}

func TestSubscribe_CountAndStatus(t *testing.T) {
	e := newTestEngine()

	if got := e.ConnectionStatus("s1"); got != model.StatusDisconnected {
		t.Fatalf("unknown id status = %s, want disconnected", got)
	}

	for i := range 3 {
		before := e.ActiveSubscriberCount("p1")
		id := fmt.Sprintf("s%d", i)
		mustSubscribe(t, e, Subscriber{ID: id, ProjectID: "p1", Handler: &recorder{}})
		if after := e.ActiveSubscriberCount("p1"); after != before+1 {
			t.Fatalf("count went %d -> %d, want +1", before, after)
		}
		if got := e.ConnectionStatus(id); got != model.StatusConnected {
			t.Fatalf("status(%s) = %s, want connected", id, got)
		}
	}
	if n := e.ActiveSubscriberCount("p2"); n != 0 {
		t.Errorf("p2 count = %d, want 0", n)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	e := newTestEngine()
	for _, tc := range []struct {
		name string
		sub  Subscriber
		want error
	}{
		{"MissingID", Subscriber{ProjectID: "p1", Handler: &recorder{}}, ErrMissingSubscriberID},
		{"MissingProject", Subscriber{ID: "s1", Handler: &recorder{}}, ErrMissingProject},
		{"MissingHandler", Subscriber{ID: "s1", ProjectID: "p1"}, ErrMissingHandler},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Subscribe(context.Background(), tc.sub)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	e := newTestEngine()
	r := &recorder{}
	unsub := mustSubscribe(t, e, Subscriber{ID: "s1", ProjectID: "p1", Handler: r})
	mustSubscribe(t, e, Subscriber{ID: "s2", ProjectID: "p1", Handler: &recorder{}})

	unsub()
	if got := e.ConnectionStatus("s1"); got != model.StatusDisconnected {
		t.Fatalf("status after unsubscribe = %s", got)
	}
	if n := e.ActiveSubscriberCount("p1"); n != 1 {
		t.Fatalf("count after unsubscribe = %d, want 1", n)
	}

	unsub()
	if n := e.ActiveSubscriberCount("p1"); n != 1 {
		t.Fatalf("count after second unsubscribe = %d, want 1", n)
	}

	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	if n := len(r.got()); n != 0 {
		t.Errorf("unsubscribed handler received %d events", n)
	}
}

func TestSubscribe_ReplaysHistoryOnce(t *testing.T) {
	e := newTestEngine()
	first := mustPublish(t, e, model.Event{Kind: model.KindCommentAdded, ProjectID: "p1"})

	r := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "late", ProjectID: "p1", Handler: r})

	got := r.got()
	if len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("replay delivered %v, want [%s]", got, first.ID)
	}

	second := mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	got = r.got()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries total, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("deliveries = [%s %s], want [%s %s]", got[0].ID, got[1].ID, first.ID, second.ID)
	}
}

func TestSubscribe_ReplayHonorsFilterAndOrder(t *testing.T) {
	e := newTestEngine()
	for i := range 6 {
		ev := indexed("p1", i)
		if i%2 == 1 {
			ev.Kind = model.KindResolved
		}
		mustPublish(t, e, ev)
	}

	r := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "f", ProjectID: "p1", Handler: r, Filter: Kinds(model.KindResolved)})

	got := r.got()
	if len(got) != 3 {
		t.Fatalf("replayed %d, want 3", len(got))
	}
	for i, want := range []int{1, 3, 5} {
		if idx := indexOf(t, got[i]); idx != want {
			t.Errorf("replay[%d] index = %d, want %d", i, idx, want)
		}
	}
}

func TestSubscribe_DuplicateIDReplaces(t *testing.T) {
	e := newTestEngine()
	old := &recorder{}
	var oldErr error
	oldUnsub := mustSubscribe(t, e, Subscriber{
		ID: "dup", ProjectID: "p1", Handler: old,
		OnDisconnect: func(err error) { oldErr = err },
	})

	fresh := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "dup", ProjectID: "p1", Handler: fresh})

	if !errors.Is(oldErr, ErrSubscriberReplaced) {
		t.Fatalf("old OnDisconnect err = %v, want ErrSubscriberReplaced", oldErr)
	}
	if n := e.ActiveSubscriberCount("p1"); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	// The stale unsubscribe must not remove the newer registration.
	oldUnsub()
	if got := e.ConnectionStatus("dup"); got != model.StatusConnected {
		t.Fatalf("status = %s, want connected", got)
	}

	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	if n := len(old.got()); n != 0 {
		t.Errorf("replaced handler received %d events", n)
	}
	if n := len(fresh.got()); n != 1 {
		t.Errorf("new handler received %d events, want 1", n)
	}
}

func TestSubscribe_DuplicateIDAcrossProjects(t *testing.T) {
	e := newTestEngine()
	mustSubscribe(t, e, Subscriber{ID: "mover", ProjectID: "p1", Handler: &recorder{}})
	mustSubscribe(t, e, Subscriber{ID: "mover", ProjectID: "p2", Handler: &recorder{}})

	if n := e.ActiveSubscriberCount("p1"); n != 0 {
		t.Errorf("p1 count = %d, want 0", n)
	}
	if n := e.ActiveSubscriberCount("p2"); n != 1 {
		t.Errorf("p2 count = %d, want 1", n)
	}
}

func TestFaultIsolation_ErrorDisconnects(t *testing.T) {
	e := newTestEngine()
	var calls int
	var disconnectErr error
	mustSubscribe(t, e, Subscriber{
		ID: "bad", ProjectID: "p1",
		Handler: HandlerFunc(func(context.Context, model.Event) error {
			calls++
			return errors.New("boom")
		}),
		OnDisconnect: func(err error) { disconnectErr = err },
	})
	good := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "good", ProjectID: "p1", Handler: good})

	if _, err := e.Publish(context.Background(), model.Event{Kind: model.KindApproval, ProjectID: "p1"}); err != nil {
		t.Fatalf("first Publish returned %v", err)
	}
	if got := e.ConnectionStatus("bad"); got != model.StatusDisconnected {
		t.Fatalf("status = %s, want disconnected", got)
	}
	var derr *DeliveryError
	if !errors.As(disconnectErr, &derr) || derr.SubscriberID != "bad" || derr.Panicked() {
		t.Fatalf("OnDisconnect err = %v, want handler DeliveryError", disconnectErr)
	}

	if _, err := e.Publish(context.Background(), model.Event{Kind: model.KindApproval, ProjectID: "p1"}); err != nil {
		t.Fatalf("second Publish returned %v", err)
	}
	if calls != 1 {
		t.Errorf("faulty handler called %d times, want 1", calls)
	}
	if n := len(good.got()); n != 2 {
		t.Errorf("good handler received %d, want 2", n)
	}
	if got := e.ConnectionStatus("good"); got != model.StatusConnected {
		t.Errorf("good status = %s", got)
	}
}

func TestFaultIsolation_PanicDisconnects(t *testing.T) {
	e := newTestEngine()
	mustSubscribe(t, e, Subscriber{
		ID: "panicky", ProjectID: "p1",
		Handler: HandlerFunc(func(context.Context, model.Event) error { panic("handler exploded") }),
	})
	good := &recorder{}
	mustSubscribe(t, e, Subscriber{ID: "good", ProjectID: "p1", Handler: good})

	for range 2 {
		if _, err := e.Publish(context.Background(), model.Event{Kind: model.KindResolved, ProjectID: "p1"}); err != nil {
			t.Fatalf("Publish returned %v", err)
		}
	}
	if got := e.ConnectionStatus("panicky"); got != model.StatusDisconnected {
		t.Fatalf("status = %s, want disconnected", got)
	}
	if n := e.ActiveSubscriberCount("p1"); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if n := len(good.got()); n != 2 {
		t.Errorf("good handler received %d, want 2", n)
	}
}

func TestFaultIsolation_PanickingFilter(t *testing.T) {
	e := newTestEngine()
	mustSubscribe(t, e, Subscriber{
		ID: "f", ProjectID: "p1", Handler: &recorder{},
		Filter: FilterFunc(func(model.Event) bool { panic("bad filter") }),
	})
	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	if got := e.ConnectionStatus("f"); got != model.StatusDisconnected {
		t.Fatalf("status = %s, want disconnected", got)
	}
}

func TestFaultIsolation_DuringReplay(t *testing.T) {
	e := newTestEngine()
	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})

	var calls int
	unsub, err := e.Subscribe(context.Background(), Subscriber{
		ID: "bad", ProjectID: "p1",
		Handler: HandlerFunc(func(context.Context, model.Event) error {
			calls++
			return errors.New("nope")
		}),
	})
	if err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}
	if calls != 1 {
		t.Errorf("replay continued after fault: %d calls", calls)
	}
	if got := e.ConnectionStatus("bad"); got != model.StatusDisconnected {
		t.Errorf("status = %s, want disconnected", got)
	}
	unsub() // no-op, must not panic
}

func TestHandler_UnsubscribeFromInsideHandler(t *testing.T) {
	e := newTestEngine()
	var unsub func()
	var calls int
	unsub = mustSubscribe(t, e, Subscriber{
		ID: "once", ProjectID: "p1",
		Handler: HandlerFunc(func(context.Context, model.Event) error {
			calls++
			unsub()
			return nil
		}),
	})

	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})
	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if got := e.ConnectionStatus("once"); got != model.StatusDisconnected {
		t.Errorf("status = %s", got)
	}
}

func TestHandler_Timeout(t *testing.T) {
	e := newTestEngine(WithHandlerTimeout(10 * time.Millisecond))
	var disconnectErr error
	mustSubscribe(t, e, Subscriber{
		ID: "slow", ProjectID: "p1",
		Handler: HandlerFunc(func(ctx context.Context, _ model.Event) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("expected a deadline")
			}
			time.Sleep(30 * time.Millisecond)
			return nil
		}),
		OnDisconnect: func(err error) { disconnectErr = err },
	})

	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})

	if got := e.ConnectionStatus("slow"); got != model.StatusDisconnected {
		t.Fatalf("status = %s, want disconnected", got)
	}
	if !errors.Is(disconnectErr, ErrHandlerTimeout) {
		t.Errorf("disconnect err = %v, want ErrHandlerTimeout", disconnectErr)
	}
}

func TestPublish_CancelledContextStillDelivers(t *testing.T) {
	e := newTestEngine()
	mustSubscribe(t, e, Subscriber{
		ID: "ctx", ProjectID: "p1",
		Handler: HandlerFunc(func(ctx context.Context, _ model.Event) error { return ctx.Err() }),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Publish(ctx, model.Event{Kind: model.KindApproval, ProjectID: "p1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := e.ConnectionStatus("ctx"); got != model.StatusConnected {
		t.Errorf("status = %s, want connected", got)
	}
}

func TestClose(t *testing.T) {
	e := newTestEngine()
	var closedErr error
	mustSubscribe(t, e, Subscriber{
		ID: "s1", ProjectID: "p1", Handler: &recorder{},
		OnDisconnect: func(err error) { closedErr = err },
	})
	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})

	e.Close()
	e.Close()

	if !e.Closed() {
		t.Fatal("Closed() = false after Close")
	}
	if !errors.Is(closedErr, ErrEngineClosed) {
		t.Errorf("OnDisconnect err = %v, want ErrEngineClosed", closedErr)
	}
	if got := e.ConnectionStatus("s1"); got != model.StatusDisconnected {
		t.Errorf("status = %s", got)
	}
	if _, err := e.Publish(context.Background(), model.Event{Kind: model.KindApproval, ProjectID: "p1"}); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Publish after Close err = %v", err)
	}
	if _, err := e.Subscribe(context.Background(), Subscriber{ID: "s2", ProjectID: "p1", Handler: &recorder{}}); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Subscribe after Close err = %v", err)
	}
	if n := len(e.History("p1", 0)); n != 1 {
		t.Errorf("history after Close = %d, want 1", n)
	}
}

// countingRecorder is a Recorder that tallies calls.
type countingRecorder struct {
	mu         sync.Mutex
	published  int
	delivered  int
	faulted    int
	lastActive map[string]int
}

func (c *countingRecorder) Published(model.Event, int) { c.mu.Lock(); c.published++; c.mu.Unlock() }
func (c *countingRecorder) Delivered(model.Event)      { c.mu.Lock(); c.delivered++; c.mu.Unlock() }
func (c *countingRecorder) Faulted(model.Event, *DeliveryError) {
	c.mu.Lock()
	c.faulted++
	c.mu.Unlock()
}
func (c *countingRecorder) SubscribersChanged(p string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastActive == nil {
		c.lastActive = make(map[string]int)
	}
	c.lastActive[p] = n
}

func TestRecorder(t *testing.T) {
	rec := &countingRecorder{}
	e := newTestEngine(WithRecorder(rec))
	mustSubscribe(t, e, Subscriber{ID: "good", ProjectID: "p1", Handler: &recorder{}})
	mustSubscribe(t, e, Subscriber{
		ID: "bad", ProjectID: "p1",
		Handler: HandlerFunc(func(context.Context, model.Event) error { return errors.New("x") }),
	})

	mustPublish(t, e, model.Event{Kind: model.KindApproval, ProjectID: "p1"})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.published != 1 || rec.delivered != 1 || rec.faulted != 1 {
		t.Errorf("published=%d delivered=%d faulted=%d, want 1/1/1", rec.published, rec.delivered, rec.faulted)
	}
	if rec.lastActive["p1"] != 1 {
		t.Errorf("last active = %d, want 1", rec.lastActive["p1"])
	}
}
