package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
	"drinktea/internal/usecase/ledger"
)

// View определяет, какие позиции показывает лента.
type View string

const (
	ViewAll      View = "all"
	ViewLiked    View = "liked"
	ViewDisliked View = "disliked"
)

var viewDecision = map[View]domain.Decision{
	ViewLiked:    domain.DecisionLike,
	ViewDisliked: domain.DecisionDislike,
}

// ErrStaleResponse возвращается, если пока шёл запрос, был начат более новый.
var ErrStaleResponse = errors.New("stale feed response")

// ParseView разбирает вид ленты; пустая строка означает all.
func ParseView(raw string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(raw))); v {
	case "", ViewAll:
		return ViewAll, nil
	case ViewLiked, ViewDisliked:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q", raw)
	}
}

// Filter — параметры ленты, выбранные посетителем.
type Filter struct {
	Category domain.Category
	View     View
}

// Page — очередная порция ленты.
type Page struct {
	Items    []domain.Tea
	Page     int
	PageSize int
	Total    int
	HasMore  bool
}

// Aggregator сводит журналы оценок за окно.
type Aggregator interface {
	Aggregate(ctx context.Context, windowDays int) (domain.AggregatedFeedback, error)
}

// Impressions получает уведомления о показанных карточках.
type Impressions interface {
	Impression(ctx context.Context, teaID int64) error
}

// Session ведёт ленту одного посетителя: исключает оценённое и уже показанное.
type Session struct {
	client      domain.FeedClient
	agg         Aggregator
	identity    domain.IdentityProvider
	impressions Impressions
	log         zerolog.Logger

	pageSize   int
	windowDays int

	mu     sync.Mutex
	seq    uint64
	filter Filter
	shown  map[int64]struct{}
	pages  map[View]int
}

// Option настраивает Session.
type Option func(*Session)

// WithPageSize задаёт размер страницы.
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithWindowDays задаёт окно агрегации оценок.
func WithWindowDays(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.windowDays = n
		}
	}
}

// WithImpressions включает отправку показов для полученных карточек.
func WithImpressions(imp Impressions) Option {
	return func(s *Session) {
		s.impressions = imp
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

// NewSession создаёт сессию ленты.
func NewSession(client domain.FeedClient, agg Aggregator, identity domain.IdentityProvider, opts ...Option) *Session {
	s := &Session{
		client:     client,
		agg:        agg,
		identity:   identity,
		log:        zerolog.Nop(),
		pageSize:   10,
		windowDays: ledger.DefaultWindowDays,
		filter:     Filter{View: ViewAll},
		shown:      make(map[int64]struct{}),
		pages:      make(map[View]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset забывает показанные позиции и счётчики страниц.
// Ответы на запросы, начатые до Reset, будут отброшены.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.seq++
	s.shown = make(map[int64]struct{})
	s.pages = make(map[View]int)
}

// Next загружает следующую страницу для фильтра. Смена фильтра сбрасывает сессию.
func (s *Session) Next(ctx context.Context, filter Filter) (Page, error) {
	if filter.View == "" {
		filter.View = ViewAll
	}
	anonID, err := s.identity.GetOrCreateID(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("resolve anon id: %w", err)
	}
	agg, err := s.agg.Aggregate(ctx, s.windowDays)
	if err != nil {
		return Page{}, fmt.Errorf("aggregate feedback: %w", err)
	}

	s.mu.Lock()
	if filter != s.filter {
		s.resetLocked()
		s.filter = filter
	}
	s.seq++
	seq := s.seq
	req := domain.FeedRequest{
		Category:   filter.Category,
		Page:       1,
		PageSize:   s.pageSize,
		AnonUserID: anonID,
	}
	switch filter.View {
	case ViewAll:
		req.ExcludeIDs = s.exclusionLocked(agg)
	case ViewLiked, ViewDisliked:
		req.TeaIDs = ledger.IDsWith(agg, viewDecision[filter.View])
		req.Page = s.pages[filter.View] + 1
	default:
		s.mu.Unlock()
		return Page{}, fmt.Errorf("unknown view %q", filter.View)
	}
	s.mu.Unlock()

	metrics.IncFeedPage(string(filter.View))
	if filter.View != ViewAll && len(req.TeaIDs) == 0 {
		return Page{Items: []domain.Tea{}, Page: req.Page, PageSize: req.PageSize}, nil
	}

	resp, err := s.client.FetchPage(ctx, req)
	if err != nil {
		return Page{}, err
	}

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		metrics.FeedStaleResponses.Inc()
		s.log.Debug().Uint64("seq", seq).Msg("feed: устаревший ответ отброшен")
		return Page{}, ErrStaleResponse
	}
	page := Page{Items: resp.Items, Page: resp.Page, PageSize: resp.PageSize, Total: resp.Total}
	if filter.View == ViewAll {
		for _, item := range resp.Items {
			s.shown[item.ID] = struct{}{}
		}
		page.HasMore = resp.Total > len(resp.Items)
	} else {
		s.pages[filter.View] = req.Page
		page.HasMore = req.Page*req.PageSize < resp.Total
	}
	s.mu.Unlock()

	if s.impressions != nil {
		for _, item := range page.Items {
			if err := s.impressions.Impression(ctx, item.ID); err != nil {
				s.log.Warn().Err(err).Int64("tea_id", item.ID).Msg("feed: не удалось отправить показ")
			}
		}
	}
	return page, nil
}

func (s *Session) exclusionLocked(agg domain.AggregatedFeedback) []int64 {
	set := make(map[int64]struct{}, len(agg)+len(s.shown))
	for id := range agg {
		set[id] = struct{}{}
	}
	for id := range s.shown {
		set[id] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
