package domain

import (
	"context"
	"time"
)

// KVStore — локальное хранилище устройства: строковые ключи и значения.
type KVStore interface {
	// Get возвращает значение; ok=false, если ключа нет.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys возвращает все ключи с указанным префиксом.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// FeedClient запрашивает страницы ленты у контент-сервиса.
type FeedClient interface {
	FetchPage(ctx context.Context, req FeedRequest) (FeedResponse, error)
}

// FeedbackAPI отправляет оценки и события на сервер.
type FeedbackAPI interface {
	PostFeedback(ctx context.Context, fb Feedback) error
	PostEvent(ctx context.Context, ev Event) error
	PostMessage(ctx context.Context, msg MessageFeedback) error
}

// IdentityProvider выдаёт стабильный анонимный идентификатор устройства.
type IdentityProvider interface {
	GetOrCreateID(ctx context.Context) (string, error)
}

// TeaFilter описывает выборку каталога на стороне сервера.
type TeaFilter struct {
	Category   Category
	IncludeIDs []int64
	ExcludeIDs []int64
	// JudgedBy исключает позиции, оценённые этим пользователем в [JudgedFrom, JudgedUntil).
	JudgedBy    string
	JudgedFrom  time.Time
	JudgedUntil time.Time
	Offset      int
	Limit       int
}

// TeaRepo хранит каталог и входящие события.
type TeaRepo interface {
	ListOnline(ctx context.Context, filter TeaFilter) ([]Tea, int, error)
	GetTea(ctx context.Context, id int64) (Tea, error)
	InsertEvent(ctx context.Context, ev Event) error
	// InsertFeedbackOnce сохраняет оценку, если в [from, until) её ещё не было.
	InsertFeedbackOnce(ctx context.Context, fb Feedback, from, until time.Time) (bool, error)
	InsertMessage(ctx context.Context, msg MessageFeedback) error
}

// EventPublisher рассылает принятые события дальше (аналитика).
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev Event) error
	PublishFeedback(ctx context.Context, fb Feedback) error
}
