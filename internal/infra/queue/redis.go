package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"drinktea/internal/domain"
)

// RedisOutbox реализует domain.Outbox на базе Redis list: LPUSH на запись, RPOP на чтение.
// Запись, которую не удалось разобрать, уже снята с очереди: она логируется и пропускается.
type RedisOutbox struct {
	client *redis.Client
	key    string
	log    zerolog.Logger
}

var _ domain.Outbox = (*RedisOutbox)(nil)

// NewRedisOutbox создаёт очередь по указанному ключу.
func NewRedisOutbox(client *redis.Client, key string, opts ...Option) *RedisOutbox {
	o := applyOptions(opts)
	return &RedisOutbox{client: client, key: key, log: o.log}
}

// Enqueue добавляет запись в очередь.
func (q *RedisOutbox) Enqueue(ctx context.Context, entry domain.OutboxEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal outbox entry: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push outbox entry: %w", err)
	}
	return nil
}

// Dequeue забирает самую старую запись без блокировки.
func (q *RedisOutbox) Dequeue(ctx context.Context) (domain.OutboxEntry, bool, error) {
	for {
		res, err := q.client.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return domain.OutboxEntry{}, false, nil
		}
		if err != nil {
			return domain.OutboxEntry{}, false, fmt.Errorf("pop outbox entry: %w", err)
		}
		entry, ok := decodeEntry(q.log, q.key, res)
		if ok {
			return entry, true, nil
		}
	}
}

func decodeEntry(logger zerolog.Logger, key, raw string) (domain.OutboxEntry, bool) {
	var entry domain.OutboxEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn().Err(err).Str("key", key).Int("bytes", len(raw)).Msg("outbox: повреждённая запись пропущена")
		return domain.OutboxEntry{}, false
	}
	return entry, true
}

// Len возвращает длину очереди.
func (q *RedisOutbox) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("outbox length: %w", err)
	}
	return int(n), nil
}
