package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

// Aggregate сворачивает журналы за windowDays последних дней, от старых к новым.
// Для каждой позиции остаётся оценка самого свежего дня.
func (l *Ledger) Aggregate(ctx context.Context, windowDays int) (domain.AggregatedFeedback, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	today := l.Today()
	out := domain.AggregatedFeedback{}
	for offset := windowDays - 1; offset >= 0; offset-- {
		day, err := l.ReadDay(ctx, dayOffset(today, -offset))
		if err != nil {
			return nil, err
		}
		for rawID, decision := range day {
			id, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil {
				continue
			}
			out[id] = decision
		}
	}
	return out, nil
}

// Prune удаляет журналы старше окна. Ключи с нераспознанной датой не трогает.
func (l *Ledger) Prune(ctx context.Context, windowDays int) (int, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	oldest := KeyForDay(dayOffset(l.Today(), -(windowDays-1)), l.loc)
	keys, err := l.kv.Keys(ctx, l.prefix)
	if err != nil {
		return 0, fmt.Errorf("list ledgers: %w", err)
	}
	removed := 0
	for _, key := range keys {
		suffix := strings.TrimPrefix(key, l.prefix)
		if _, err := time.Parse(DayLayout, suffix); err != nil {
			continue
		}
		// Формат YYYY-MM-DD сравним как строка.
		if suffix >= oldest {
			continue
		}
		if err := l.kv.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("delete ledger %s: %w", suffix, err)
		}
		removed++
	}
	if removed > 0 {
		metrics.LedgerPrunedTotal.Add(float64(removed))
		l.log.Info().Int("removed", removed).Str("oldest_kept", oldest).Msg("ledger: старые журналы удалены")
	}
	return removed, nil
}

// IDsWith возвращает отсортированные id позиций с указанной оценкой.
func IDsWith(agg domain.AggregatedFeedback, decision domain.Decision) []int64 {
	ids := make([]int64, 0)
	for id, d := range agg {
		if d == decision {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// JudgedIDs возвращает отсортированные id всех оценённых позиций.
func JudgedIDs(agg domain.AggregatedFeedback) []int64 {
	ids := make([]int64, 0, len(agg))
	for id := range agg {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// dayOffset сдвигает дату на delta календарных дней; полдень защищает от переходов DST.
func dayOffset(t time.Time, delta int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+delta, 12, 0, 0, 0, t.Location())
}
