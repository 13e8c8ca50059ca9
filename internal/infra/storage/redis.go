package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"drinktea/internal/domain"
)

// Redis реализует domain.KVStore через Redis; ключи профиля живут без TTL.
type Redis struct {
	client *redis.Client
}

var _ domain.KVStore = (*Redis)(nil)

// NewRedis создаёт хранилище.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get возвращает значение.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set задаёт значение.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Keys обходит ключи через SCAN, не блокируя Redis.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, scanPattern(prefix), 100).Iterator()
	for iter.Next(ctx) {
		// SCAN MATCH остаётся glob-шаблоном, поэтому префикс сверяется ещё раз.
		if key := iter.Val(); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// scanPattern превращает префикс в шаблон MATCH, экранируя спецсимволы glob.
func scanPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

// Dial подключается к Redis и проверяет соединение.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
