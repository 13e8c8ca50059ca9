package domain

import (
	"context"
	"time"
)

// OutboxKind описывает вид отложенной удалённой записи.
type OutboxKind string

const (
	// OutboxFeedback — оценка, не дошедшая до /api/feedback.
	OutboxFeedback OutboxKind = "feedback"
	// OutboxEvent — событие, не дошедшее до /api/events.
	OutboxEvent OutboxKind = "event"
)

// OutboxEntry хранит удалённую запись, которую нужно повторить.
type OutboxEntry struct {
	ID         string     `json:"id"`
	Kind       OutboxKind `json:"kind"`
	Feedback   *Feedback  `json:"feedback,omitempty"`
	Event      *Event     `json:"event,omitempty"`
	Attempts   int        `json:"attempts"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// Outbox описывает очередь отложенных удалённых записей.
type Outbox interface {
	Enqueue(ctx context.Context, entry OutboxEntry) error
	// Dequeue возвращает самую старую запись; ok=false, если очередь пуста.
	Dequeue(ctx context.Context) (entry OutboxEntry, ok bool, err error)
	Len(ctx context.Context) (int, error)
}
