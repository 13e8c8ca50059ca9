package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	"drinktea/internal/infra/queue"
	"drinktea/internal/infra/storage"
	"drinktea/internal/usecase/identity"
	"drinktea/internal/usecase/ledger"
)

type stubAPI struct {
	mu        sync.Mutex
	fail      bool
	feedbacks []domain.Feedback
	events    []domain.Event
	messages  []domain.MessageFeedback
}

func (s *stubAPI) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *stubAPI) PostFeedback(_ context.Context, fb domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("server unavailable")
	}
	s.feedbacks = append(s.feedbacks, fb)
	return nil
}

func (s *stubAPI) PostEvent(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("server unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *stubAPI) PostMessage(_ context.Context, msg domain.MessageFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("server unavailable")
	}
	s.messages = append(s.messages, msg)
	return nil
}

type failingRecorder struct{}

func (failingRecorder) RecordDecision(context.Context, int64, domain.Decision) error {
	return errors.New("disk full")
}

type fixture struct {
	kv     *storage.Memory
	ledger *ledger.Ledger
	ids    *identity.Store
	api    *stubAPI
}

func newFixture() fixture {
	kv := storage.NewMemory()
	now := func() time.Time { return time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC) }
	return fixture{
		kv:     kv,
		ledger: ledger.New(kv, "drinktea:", ledger.WithLocation(time.UTC), ledger.WithClock(now)),
		ids:    identity.NewStore(kv, "drinktea:"),
		api:    &stubAPI{},
	}
}

func TestSubmitWritesLocallyThenRemotely(t *testing.T) {
	f := newFixture()
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Submit(ctx, 42, domain.DecisionLike); err != nil {
		t.Fatalf("submit: %v", err)
	}
	svc.Wait()

	day, err := f.ledger.ReadToday(ctx)
	if err != nil {
		t.Fatalf("read today: %v", err)
	}
	if day["42"] != domain.DecisionLike {
		t.Fatalf("unexpected ledger %v", day)
	}
	anonID, _ := f.ids.GetOrCreateID(ctx)
	if len(f.api.feedbacks) != 1 {
		t.Fatalf("expected one remote feedback, got %d", len(f.api.feedbacks))
	}
	got := f.api.feedbacks[0]
	if got.AnonUserID != anonID || got.TeaID != 42 || got.Action != domain.DecisionLike {
		t.Fatalf("unexpected remote feedback %+v", got)
	}
}

func TestSubmitRemoteFailureKeepsLocal(t *testing.T) {
	f := newFixture()
	f.api.setFail(true)
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Submit(ctx, 7, domain.DecisionDislike); err != nil {
		t.Fatalf("remote failure must not surface: %v", err)
	}
	svc.Wait()

	agg, err := f.ledger.Aggregate(ctx, ledger.DefaultWindowDays)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg[7] != domain.DecisionDislike {
		t.Fatalf("local decision lost: %v", agg)
	}
}

func TestSubmitLocalFailureSurfaces(t *testing.T) {
	f := newFixture()
	svc := NewService(failingRecorder{}, f.ids, f.api, zerolog.Nop())
	if err := svc.Submit(context.Background(), 1, domain.DecisionLike); err == nil {
		t.Fatal("expected local error")
	}
	svc.Wait()
	if len(f.api.feedbacks) != 0 {
		t.Fatalf("remote write must not start after local failure")
	}
}

func TestSubmitRejectsInvalidDecision(t *testing.T) {
	f := newFixture()
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	if err := svc.Submit(context.Background(), 1, domain.Decision("meh")); !errors.Is(err, domain.ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestSubmitSurvivesCancelledCaller(t *testing.T) {
	f := newFixture()
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.Submit(ctx, 3, domain.DecisionLike); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancel()
	svc.Wait()
	if len(f.api.feedbacks) != 1 {
		t.Fatalf("background write should outlive caller context")
	}
}

func TestEventsAreSentInBackground(t *testing.T) {
	f := newFixture()
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	ctx := context.Background()
	if err := svc.Impression(ctx, 5); err != nil {
		t.Fatalf("impression: %v", err)
	}
	if err := svc.DetailOpen(ctx, 5); err != nil {
		t.Fatalf("detail open: %v", err)
	}
	svc.Wait()

	if len(f.api.events) != 2 {
		t.Fatalf("expected two events, got %d", len(f.api.events))
	}
	types := map[domain.EventType]bool{}
	for _, ev := range f.api.events {
		types[ev.Type] = true
	}
	if !types[domain.EventImpression] || !types[domain.EventDetailOpen] {
		t.Fatalf("unexpected events %+v", f.api.events)
	}
	day, _ := f.ledger.ReadToday(ctx)
	if len(day) != 0 {
		t.Fatalf("events must not touch the ledger: %v", day)
	}
}

func TestMessage(t *testing.T) {
	f := newFixture()
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Message(ctx, MessageInput{Message: "   "}); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	teaID := int64(9)
	if err := svc.Message(ctx, MessageInput{Message: " 好喝 ", Contact: " ", TeaID: &teaID}); err != nil {
		t.Fatalf("message: %v", err)
	}
	if len(f.api.messages) != 1 {
		t.Fatalf("expected one message")
	}
	msg := f.api.messages[0]
	if msg.Message != "好喝" || msg.Contact != nil || msg.TeaID == nil || *msg.TeaID != 9 {
		t.Fatalf("unexpected message %+v", msg)
	}

	f.api.setFail(true)
	if err := svc.Message(ctx, MessageInput{Message: "hello"}); err == nil {
		t.Fatal("message errors must surface")
	}
}

func TestOutboxReplay(t *testing.T) {
	f := newFixture()
	outbox := queue.NewStoreOutbox(f.kv, "drinktea:outbox")
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop(), WithOutbox(outbox, 3))
	ctx := context.Background()

	f.api.setFail(true)
	if err := svc.Submit(ctx, 11, domain.DecisionLike); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Impression(ctx, 11); err != nil {
		t.Fatalf("impression: %v", err)
	}
	svc.Wait()
	if n, _ := outbox.Len(ctx); n != 2 {
		t.Fatalf("expected two queued entries, got %d", n)
	}

	res, err := svc.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if res.Requeued != 2 || res.Replayed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	f.api.setFail(false)
	res, err = svc.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if res.Replayed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n, _ := outbox.Len(ctx); n != 0 {
		t.Fatalf("outbox should be empty, got %d", n)
	}
	if len(f.api.feedbacks) != 1 || f.api.feedbacks[0].TeaID != 11 {
		t.Fatalf("unexpected replayed feedback %+v", f.api.feedbacks)
	}
}

func TestOutboxDropsAfterMaxAttempts(t *testing.T) {
	f := newFixture()
	outbox := queue.NewStoreOutbox(f.kv, "drinktea:outbox")
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop(), WithOutbox(outbox, 2))
	ctx := context.Background()

	f.api.setFail(true)
	if err := svc.Submit(ctx, 1, domain.DecisionDislike); err != nil {
		t.Fatalf("submit: %v", err)
	}
	svc.Wait()

	res, err := svc.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if res.Dropped != 1 {
		t.Fatalf("expected entry to be dropped, got %+v", res)
	}
	if n, _ := outbox.Len(ctx); n != 0 {
		t.Fatalf("outbox should be empty, got %d", n)
	}
}

func TestDrainWithoutOutbox(t *testing.T) {
	f := newFixture()
	svc := NewService(f.ledger, f.ids, f.api, zerolog.Nop())
	res, err := svc.Drain(context.Background())
	if err != nil || res != (DrainResult{}) {
		t.Fatalf("unexpected drain result %+v, %v", res, err)
	}
}
