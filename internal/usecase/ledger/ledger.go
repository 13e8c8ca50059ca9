package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

const (
	// KeyPrefix — префикс ключей дневных журналов без пространства имён.
	KeyPrefix = "dailyFeedback:"
	// DayLayout — формат ключа дня.
	DayLayout = "2006-01-02"
	// DefaultWindowDays — окно агрегации по умолчанию.
	DefaultWindowDays = 30
)

// Ledger хранит оценки посетителя по календарным дням устройства.
//
// Все записи в рамках процесса проходят через один мьютекс, поэтому
// параллельные RecordDecision не теряют друг друга.
type Ledger struct {
	kv     domain.KVStore
	prefix string
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger

	mu sync.Mutex
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithLocation задаёт календарь устройства.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithClock подменяет текущее время (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.log = logger
	}
}

// New создаёт журнал в указанном пространстве имён.
func New(kv domain.KVStore, namespace string, opts ...Option) *Ledger {
	l := &Ledger{
		kv:     kv,
		prefix: namespace + KeyPrefix,
		loc:    time.Local,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// KeyForDay возвращает YYYY-MM-DD для даты t в календаре loc.
func KeyForDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

// Today возвращает текущий день устройства.
func (l *Ledger) Today() time.Time {
	return l.now().In(l.loc)
}

func (l *Ledger) storageKey(day time.Time) string {
	return l.prefix + KeyForDay(day, l.loc)
}

// RecordDecision записывает оценку в журнал текущего дня; повтор за день перезаписывает её.
func (l *Ledger) RecordDecision(ctx context.Context, teaID int64, decision domain.Decision) error {
	if !decision.Valid() {
		return domain.ErrInvalidDecision
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.Today()
	day, err := l.ReadDay(ctx, today)
	if err != nil {
		return err
	}
	day[domain.ItemKey(teaID)] = decision
	raw, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := l.kv.Set(ctx, l.storageKey(today), string(raw)); err != nil {
		return fmt.Errorf("write ledger %s: %w", KeyForDay(today, l.loc), err)
	}
	metrics.IncDecision(string(decision))
	return nil
}

// ReadDay возвращает журнал дня. Отсутствующий или повреждённый журнал — пустой, без ошибки.
func (l *Ledger) ReadDay(ctx context.Context, day time.Time) (domain.DailyLedger, error) {
	key := l.storageKey(day)
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", KeyForDay(day, l.loc), err)
	}
	if !ok || raw == "" {
		return domain.DailyLedger{}, nil
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		l.log.Debug().Err(err).Str("key", key).Msg("ledger: повреждённый журнал, считаем пустым")
		return domain.DailyLedger{}, nil
	}
	out := make(domain.DailyLedger, len(decoded))
	for id, v := range decoded {
		d := domain.Decision(v)
		if !d.Valid() {
			continue
		}
		out[id] = d
	}
	return out, nil
}

// ReadToday возвращает журнал текущего дня.
func (l *Ledger) ReadToday(ctx context.Context) (domain.DailyLedger, error) {
	return l.ReadDay(ctx, l.Today())
}
