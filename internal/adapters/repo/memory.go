package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"drinktea/internal/domain"
)

// Memory — каталог в памяти процесса для запуска без Postgres и для тестов.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	teas     map[int64]domain.Tea
	events   []domain.Event
	feedback []domain.Feedback
	messages []domain.MessageFeedback
}

var _ domain.TeaRepo = (*Memory)(nil)

// NewMemory создаёт каталог с заданными позициями; id без значения назначаются по порядку.
func NewMemory(teas ...domain.Tea) *Memory {
	m := &Memory{teas: make(map[int64]domain.Tea)}
	for _, t := range teas {
		m.AddTea(t)
	}
	return m
}

// AddTea добавляет позицию и возвращает её id.
func (m *Memory) AddTea(t domain.Tea) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	} else if t.ID > m.nextID {
		m.nextID = t.ID
	}
	if t.Status == "" {
		t.Status = domain.TeaStatusOnline
	}
	m.teas[t.ID] = t
	return t.ID
}

// ListOnline реализует domain.TeaRepo.
func (m *Memory) ListOnline(_ context.Context, f domain.TeaFilter) ([]domain.Tea, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	include := idSet(f.IncludeIDs)
	exclude := idSet(f.ExcludeIDs)
	if f.JudgedBy != "" {
		for _, fb := range m.feedback {
			if fb.AnonUserID == f.JudgedBy && inRange(fb.CreatedAt, f.JudgedFrom, f.JudgedUntil) {
				exclude[fb.TeaID] = struct{}{}
			}
		}
	}

	var matched []domain.Tea
	for _, t := range m.teas {
		if t.Status != domain.TeaStatusOnline {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if len(include) > 0 {
			if _, ok := include[t.ID]; !ok {
				continue
			}
		}
		if _, ok := exclude[t.ID]; ok {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Weight != matched[j].Weight {
			return matched[i].Weight > matched[j].Weight
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if f.Offset >= total {
		return []domain.Tea{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	page := make([]domain.Tea, end-f.Offset)
	copy(page, matched[f.Offset:end])
	return page, total, nil
}

// GetTea реализует domain.TeaRepo.
func (m *Memory) GetTea(_ context.Context, id int64) (domain.Tea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teas[id]
	if !ok {
		return domain.Tea{}, domain.ErrTeaNotFound
	}
	return t, nil
}

// InsertEvent реализует domain.TeaRepo.
func (m *Memory) InsertEvent(_ context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// InsertFeedbackOnce реализует domain.TeaRepo.
func (m *Memory) InsertFeedbackOnce(_ context.Context, fb domain.Feedback, from, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.feedback {
		if existing.AnonUserID == fb.AnonUserID && existing.TeaID == fb.TeaID && inRange(existing.CreatedAt, from, until) {
			return false, nil
		}
	}
	fb.ID = int64(len(m.feedback) + 1)
	m.feedback = append(m.feedback, fb)
	return true, nil
}

// InsertMessage реализует domain.TeaRepo.
func (m *Memory) InsertMessage(_ context.Context, msg domain.MessageFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return nil
}

// Events возвращает копию сохранённых событий.
func (m *Memory) Events() []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Event(nil), m.events...)
}

// Feedback возвращает копию сохранённых оценок.
func (m *Memory) Feedback() []domain.Feedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Feedback(nil), m.feedback...)
}

// Messages возвращает копию сохранённых отзывов.
func (m *Memory) Messages() []domain.MessageFeedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MessageFeedback(nil), m.messages...)
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func inRange(t, from, until time.Time) bool {
	return !t.Before(from) && t.Before(until)
}
