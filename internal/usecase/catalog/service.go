package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// ListQuery — параметры выдачи каталога в сыром виде, как пришли в запросе.
type ListQuery struct {
	Category   string
	Page       int
	PageSize   int
	AnonUserID string
	ExcludeIDs string
	TeaIDs     string
}

// NewListQuery возвращает запрос с пагинацией по умолчанию.
func NewListQuery() ListQuery {
	return ListQuery{Page: DefaultPage, PageSize: DefaultPageSize}
}

// Service отдаёт каталог и принимает события посетителей.
type Service struct {
	repo domain.TeaRepo
	pub  domain.EventPublisher
	log  zerolog.Logger
	now  func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(repo domain.TeaRepo, pub domain.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, pub: pub, log: logger, now: time.Now}
}

// ParseIDList разбирает список id через запятую, пропуская пустые и нечисловые части.
func ParseIDList(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[int64]struct{})
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// DayRange возвращает границы текущих суток UTC.
func DayRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// ListTeas возвращает страницу опубликованных позиций.
func (s *Service) ListTeas(ctx context.Context, q ListQuery) (domain.FeedResponse, error) {
	if q.Page < 1 || q.PageSize < 1 || q.PageSize > MaxPageSize {
		return domain.FeedResponse{}, domain.ErrBadPagination
	}
	category, err := domain.ParseCategory(q.Category)
	if err != nil {
		return domain.FeedResponse{}, err
	}
	filter := domain.TeaFilter{
		Category:   category,
		IncludeIDs: ParseIDList(q.TeaIDs),
		ExcludeIDs: ParseIDList(q.ExcludeIDs),
		Offset:     (q.Page - 1) * q.PageSize,
		Limit:      q.PageSize,
	}
	// Оценённое сегодня скрывается только в обычной ленте, явный список id его не исключает.
	if len(filter.IncludeIDs) == 0 {
		if anon := strings.TrimSpace(q.AnonUserID); anon != "" {
			filter.JudgedBy = anon
			filter.JudgedFrom, filter.JudgedUntil = DayRange(s.now())
		}
	}
	items, total, err := s.repo.ListOnline(ctx, filter)
	if err != nil {
		return domain.FeedResponse{}, fmt.Errorf("выборка каталога: %w", err)
	}
	if items == nil {
		items = []domain.Tea{}
	}
	return domain.FeedResponse{Items: items, Page: q.Page, PageSize: q.PageSize, Total: total}, nil
}

// GetTea возвращает опубликованную позицию по id.
func (s *Service) GetTea(ctx context.Context, id int64) (domain.Tea, error) {
	tea, err := s.repo.GetTea(ctx, id)
	if err != nil {
		return domain.Tea{}, err
	}
	if tea.Status != domain.TeaStatusOnline {
		return domain.Tea{}, domain.ErrTeaNotFound
	}
	return tea, nil
}

// EventInput — входящее событие показа или открытия карточки.
type EventInput struct {
	AnonUserID string
	TeaID      int64
	Type       string
}

// RecordEvent сохраняет событие и публикует его для аналитики.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) error {
	anon := strings.TrimSpace(in.AnonUserID)
	if anon == "" {
		return domain.ErrEmptyAnonUserID
	}
	typ, err := domain.ParseEventType(in.Type)
	if err != nil {
		return err
	}
	ev := domain.Event{AnonUserID: anon, TeaID: in.TeaID, Type: typ, CreatedAt: s.now().UTC()}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("сохранение события: %w", err)
	}
	if err := s.pub.PublishEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Int64("tea_id", ev.TeaID).Str("type", string(ev.Type)).Msg("catalog: не удалось опубликовать событие")
	}
	return nil
}

// FeedbackInput — входящая оценка.
type FeedbackInput struct {
	AnonUserID string
	TeaID      int64
	Action     string
}

// RecordFeedback сохраняет оценку не чаще раза в сутки UTC на пару посетитель-позиция.
// dedup=true означает, что оценка за эти сутки уже была.
func (s *Service) RecordFeedback(ctx context.Context, in FeedbackInput) (bool, error) {
	action, err := domain.ParseDecision(in.Action)
	if err != nil {
		return false, err
	}
	anon := strings.TrimSpace(in.AnonUserID)
	if anon == "" {
		return false, domain.ErrEmptyAnonUserID
	}
	now := s.now().UTC()
	fb := domain.Feedback{AnonUserID: anon, TeaID: in.TeaID, Action: action, CreatedAt: now}
	from, until := DayRange(now)
	inserted, err := s.repo.InsertFeedbackOnce(ctx, fb, from, until)
	if err != nil {
		return false, fmt.Errorf("сохранение оценки: %w", err)
	}
	metrics.IncFeedbackAccepted(string(action), !inserted)
	if !inserted {
		return true, nil
	}
	if err := s.pub.PublishFeedback(ctx, fb); err != nil {
		s.log.Warn().Err(err).Int64("tea_id", fb.TeaID).Str("action", string(fb.Action)).Msg("catalog: не удалось опубликовать оценку")
	}
	return false, nil
}

// RecordMessage сохраняет текстовый отзыв.
func (s *Service) RecordMessage(ctx context.Context, msg domain.MessageFeedback) error {
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Message == "" {
		return domain.ErrEmptyMessage
	}
	msg.AnonUserID = strings.TrimSpace(msg.AnonUserID)
	if msg.AnonUserID == "" {
		return domain.ErrEmptyAnonUserID
	}
	if msg.Contact != nil {
		contact := strings.TrimSpace(*msg.Contact)
		if contact == "" {
			msg.Contact = nil
		} else {
			msg.Contact = &contact
		}
	}
	msg.CreatedAt = s.now().UTC()
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("сохранение отзыва: %w", err)
	}
	return nil
}
