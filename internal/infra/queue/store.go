package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"drinktea/internal/domain"
)

// StoreOutbox хранит очередь JSON-массивом под одним ключом локального хранилища.
// Подходит для файлового профиля, где Redis нет.
// Повреждённое значение читается как пустая очередь и перезаписывается следующим Enqueue,
// так же как повреждённый дневной журнал.
type StoreOutbox struct {
	kv  domain.KVStore
	key string
	log zerolog.Logger
	mu  sync.Mutex
}

var _ domain.Outbox = (*StoreOutbox)(nil)

// Option настраивает очереди пакета.
type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger задаёт логгер для предупреждений о повреждённых записях.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.log = logger }
}

func applyOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewStoreOutbox создаёт очередь под ключом key.
func NewStoreOutbox(kv domain.KVStore, key string, opts ...Option) *StoreOutbox {
	o := applyOptions(opts)
	return &StoreOutbox{kv: kv, key: key, log: o.log}
}

func (q *StoreOutbox) load(ctx context.Context) ([]domain.OutboxEntry, error) {
	raw, ok, err := q.kv.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var entries []domain.OutboxEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		q.log.Warn().Err(err).Str("key", q.key).Int("bytes", len(raw)).Msg("outbox: повреждённое значение сброшено")
		return nil, nil
	}
	return entries, nil
}

func (q *StoreOutbox) save(ctx context.Context, entries []domain.OutboxEntry) error {
	if len(entries) == 0 {
		return q.kv.Delete(ctx, q.key)
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode outbox: %w", err)
	}
	return q.kv.Set(ctx, q.key, string(raw))
}

// Enqueue добавляет запись в конец очереди.
func (q *StoreOutbox) Enqueue(ctx context.Context, entry domain.OutboxEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.load(ctx)
	if err != nil {
		return err
	}
	return q.save(ctx, append(entries, entry))
}

// Dequeue забирает первую запись.
func (q *StoreOutbox) Dequeue(ctx context.Context) (domain.OutboxEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.load(ctx)
	if err != nil {
		return domain.OutboxEntry{}, false, err
	}
	if len(entries) == 0 {
		return domain.OutboxEntry{}, false, nil
	}
	if err := q.save(ctx, entries[1:]); err != nil {
		return domain.OutboxEntry{}, false, err
	}
	return entries[0], true, nil
}

// Len возвращает длину очереди.
func (q *StoreOutbox) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.load(ctx)
	return len(entries), err
}
