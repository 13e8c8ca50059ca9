package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"drinktea/internal/domain"
)

// Memory хранит значения в памяти процесса. Используется в тестах и для STORAGE_BACKEND=memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ domain.KVStore = (*Memory)(nil)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get возвращает значение ключа.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set задаёт значение.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete удаляет ключ.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys возвращает отсортированные ключи с префиксом.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return matchKeys(m.data, prefix), nil
}

func matchKeys(data map[string]string, prefix string) []string {
	keys := make([]string, 0)
	for k := range data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
