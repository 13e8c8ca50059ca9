package identity

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"drinktea/internal/domain"
)

// StorageKey — ключ анонимного идентификатора без префикса пространства имён.
const StorageKey = "anonUserId"

// Store выдаёт анонимный идентификатор устройства.
//
// Идентификатор имеет форму UUID v4, но генерируется НЕ криптографическим
// источником: это псевдоанонимная метка профиля, а не секрет.
type Store struct {
	kv  domain.KVStore
	key string

	mu  sync.Mutex
	rnd io.Reader
}

var _ domain.IdentityProvider = (*Store)(nil)

// Option настраивает Store.
type Option func(*Store)

// WithRandom подменяет источник случайности (для тестов).
func WithRandom(r io.Reader) Option {
	return func(s *Store) {
		if r != nil {
			s.rnd = r
		}
	}
}

// NewStore создаёт хранилище идентификатора в указанном пространстве имён.
func NewStore(kv domain.KVStore, namespace string, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		key: namespace + StorageKey,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateID возвращает сохранённый идентификатор или создаёт новый.
func (s *Store) GetOrCreateID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("read anon id: %w", err)
	}
	if ok && strings.TrimSpace(existing) != "" {
		return existing, nil
	}
	id, err := uuid.NewRandomFromReader(s.rnd)
	if err != nil {
		return "", fmt.Errorf("generate anon id: %w", err)
	}
	token := id.String()
	if err := s.kv.Set(ctx, s.key, token); err != nil {
		return "", fmt.Errorf("persist anon id: %w", err)
	}
	return token, nil
}
