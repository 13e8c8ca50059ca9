package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"drinktea/internal/domain"
)

// File хранит все ключи одним JSON-объектом на диске, как localStorage профиля браузера.
// Каждая запись переписывает файл целиком через временный файл и rename.
type File struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

var _ domain.KVStore = (*File)(nil)

// NewFile открывает хранилище, создавая каталог при необходимости.
func NewFile(path string) (*File, error) {
	f := &File{path: path, data: make(map[string]string)}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if err := f.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return fmt.Errorf("decode storage file %s: %w", f.path, err)
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	return nil
}

func (f *File) flush() error {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace storage: %w", err)
	}
	return nil
}

// Get возвращает значение ключа.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok, nil
}

// Set задаёт значение и сохраняет файл.
func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// Delete удаляет ключ и сохраняет файл.
func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	if !had {
		return nil
	}
	delete(f.data, key)
	if err := f.flush(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

// Keys возвращает отсортированные ключи с префиксом.
func (f *File) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return matchKeys(f.data, prefix), nil
}
