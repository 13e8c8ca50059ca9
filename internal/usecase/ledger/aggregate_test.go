package ledger

import (
	"context"
	"testing"
	"time"

	"drinktea/internal/domain"
)

func TestAggregateMostRecentDayWins(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	l, _, clock := newTestLedger(t, today.AddDate(0, 0, -2))
	if err := l.RecordDecision(ctx, 7, domain.DecisionLike); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Set(today.AddDate(0, 0, -1))
	if err := l.RecordDecision(ctx, 7, domain.DecisionDislike); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Set(today)
	agg, err := l.Aggregate(ctx, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg[7] != domain.DecisionDislike {
		t.Fatalf("expected dislike, got %v", agg[7])
	}
}

func TestAggregateWindowBoundary(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	l, _, clock := newTestLedger(t, today.AddDate(0, 0, -31))
	_ = l.RecordDecision(ctx, 1, domain.DecisionLike)
	clock.Set(today.AddDate(0, 0, -29))
	_ = l.RecordDecision(ctx, 2, domain.DecisionLike)
	clock.Set(today.AddDate(0, 0, -30))
	_ = l.RecordDecision(ctx, 3, domain.DecisionDislike)
	clock.Set(today)

	agg, err := l.Aggregate(ctx, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := agg[1]; ok {
		t.Fatal("decision from 31 days ago must be excluded")
	}
	if _, ok := agg[3]; ok {
		t.Fatal("decision from 30 days ago is outside a 30 day window")
	}
	if agg[2] != domain.DecisionLike {
		t.Fatalf("decision from 29 days ago must be included, got %v", agg)
	}
}

func TestAggregateDefaultWindow(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	l, _, clock := newTestLedger(t, today.AddDate(0, 0, -29))
	_ = l.RecordDecision(ctx, 5, domain.DecisionLike)
	clock.Set(today)
	agg, err := l.Aggregate(ctx, 0)
	if err != nil || agg[5] != domain.DecisionLike {
		t.Fatalf("expected default 30 day window to include item 5, got %v %v", agg, err)
	}
}

func TestAggregateToleratesMalformedDay(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	l, kv, _ := newTestLedger(t, today)
	_ = kv.Set(ctx, "drinktea:dailyFeedback:2024-01-09", "]]not-json")
	_ = kv.Set(ctx, "drinktea:dailyFeedback:2024-01-08", `{"4":"like","x":"dislike"}`)
	_ = l.RecordDecision(ctx, 9, domain.DecisionDislike)

	agg, err := l.Aggregate(ctx, 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(agg) != 2 || agg[4] != domain.DecisionLike || agg[9] != domain.DecisionDislike {
		t.Fatalf("unexpected aggregate %v", agg)
	}
}

func TestAggregateAbsentItemsAreAbsent(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Now())
	agg, err := l.Aggregate(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg) != 0 {
		t.Fatalf("expected empty aggregate, got %v", agg)
	}
}

func TestPruneRemovesOnlyDaysOutsideWindow(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	l, kv, _ := newTestLedger(t, today)
	_ = kv.Set(ctx, "drinktea:dailyFeedback:2024-03-01", `{"1":"like"}`) // 30 дней назад
	_ = kv.Set(ctx, "drinktea:dailyFeedback:2024-03-02", `{"2":"like"}`) // 29 дней назад
	_ = kv.Set(ctx, "drinktea:dailyFeedback:2023-12-31", `{"3":"like"}`)
	_ = kv.Set(ctx, "drinktea:dailyFeedback:garbage", `{}`)
	_ = kv.Set(ctx, "drinktea:anonUserId", "id")

	removed, err := l.Prune(ctx, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	keys, _ := kv.Keys(ctx, "drinktea:")
	want := []string{"drinktea:anonUserId", "drinktea:dailyFeedback:2024-03-02", "drinktea:dailyFeedback:garbage"}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("unexpected keys %v", keys)
		}
	}
}

func TestIDsWith(t *testing.T) {
	agg := domain.AggregatedFeedback{9: domain.DecisionLike, 2: domain.DecisionDislike, 4: domain.DecisionLike}
	liked := IDsWith(agg, domain.DecisionLike)
	if len(liked) != 2 || liked[0] != 4 || liked[1] != 9 {
		t.Fatalf("unexpected liked %v", liked)
	}
	all := JudgedIDs(agg)
	if len(all) != 3 || all[0] != 2 || all[2] != 9 {
		t.Fatalf("unexpected judged %v", all)
	}
}
