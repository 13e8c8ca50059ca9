package queue

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	"drinktea/internal/infra/storage"
)

func TestStoreOutboxFIFO(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	q := NewStoreOutbox(kv, "drinktea:outbox")

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, domain.OutboxEntry{ID: id, Kind: domain.OutboxEvent}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if n, _ := q.Len(ctx); n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
	for _, want := range []string{"a", "b", "c"} {
		entry, ok, err := q.Dequeue(ctx)
		if err != nil || !ok {
			t.Fatalf("dequeue: %v %v", ok, err)
		}
		if entry.ID != want {
			t.Fatalf("expected %s, got %s", want, entry.ID)
		}
	}
	if _, ok, _ := q.Dequeue(ctx); ok {
		t.Fatal("expected empty queue")
	}
	if _, ok, _ := kv.Get(ctx, "drinktea:outbox"); ok {
		t.Fatal("expected key removed when queue is drained")
	}
}

func TestStoreOutboxRecoversFromCorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, "outbox", "nope")
	var logBuf bytes.Buffer
	q := NewStoreOutbox(kv, "outbox", WithLogger(zerolog.New(&logBuf)))

	if n, err := q.Len(ctx); err != nil || n != 0 {
		t.Fatalf("corrupt outbox must read as empty: n=%d err=%v", n, err)
	}
	if _, ok, err := q.Dequeue(ctx); err != nil || ok {
		t.Fatalf("corrupt outbox must dequeue nothing: ok=%v err=%v", ok, err)
	}
	if err := q.Enqueue(ctx, domain.OutboxEntry{ID: "after", Kind: domain.OutboxFeedback}); err != nil {
		t.Fatalf("enqueue after corruption: %v", err)
	}
	entry, ok, err := q.Dequeue(ctx)
	if err != nil || !ok || entry.ID != "after" {
		t.Fatalf("expected the new entry, got %+v ok=%v err=%v", entry, ok, err)
	}
	if !strings.Contains(logBuf.String(), `"key":"outbox"`) {
		t.Fatalf("expected a warning about the corrupt value, got %q", logBuf.String())
	}
}

func TestDecodeEntrySkipsGarbage(t *testing.T) {
	if _, ok := decodeEntry(zerolog.Nop(), "outbox", "{"); ok {
		t.Fatal("garbage must not decode")
	}
	entry, ok := decodeEntry(zerolog.Nop(), "outbox", `{"id":"x","kind":"event","attempts":2}`)
	if !ok || entry.ID != "x" || entry.Attempts != 2 {
		t.Fatalf("unexpected entry %+v ok=%v", entry, ok)
	}
}
