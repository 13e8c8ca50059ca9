package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

// DefaultMaxAttempts — сколько раз запись из outbox повторяется до удаления.
const DefaultMaxAttempts = 5

// Recorder записывает оценку в локальный дневной журнал.
type Recorder interface {
	RecordDecision(ctx context.Context, teaID int64, decision domain.Decision) error
}

// Service отправляет оценки и события: локально синхронно, на сервер в фоне.
//
// Локальная и удалённая запись независимы и не транзакционны: ошибка сервера
// не откатывает журнал. Без outbox расхождение не восстанавливается.
type Service struct {
	ledger   Recorder
	identity domain.IdentityProvider
	api      domain.FeedbackAPI
	outbox   domain.Outbox
	log      zerolog.Logger
	now      func() time.Time

	maxAttempts int
	wg          sync.WaitGroup
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает очередь повторов для неудачных фоновых записей.
func WithOutbox(outbox domain.Outbox, maxAttempts int) Option {
	return func(s *Service) {
		s.outbox = outbox
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
	}
}

// WithClock подменяет текущее время.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис отправки оценок.
func NewService(ledger Recorder, identity domain.IdentityProvider, api domain.FeedbackAPI, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		identity:    identity,
		api:         api,
		log:         logger,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit записывает оценку в журнал и запускает фоновую отправку на сервер.
// Возвращает только ошибки локальной части.
func (s *Service) Submit(ctx context.Context, teaID int64, decision domain.Decision) error {
	if !decision.Valid() {
		return domain.ErrInvalidDecision
	}
	if err := s.ledger.RecordDecision(ctx, teaID, decision); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	anonID, err := s.identity.GetOrCreateID(ctx)
	if err != nil {
		return fmt.Errorf("resolve anon id: %w", err)
	}
	fb := domain.Feedback{AnonUserID: anonID, TeaID: teaID, Action: decision, CreatedAt: s.now().UTC()}
	s.goRemote(ctx, domain.OutboxEntry{Kind: domain.OutboxFeedback, Feedback: &fb})
	return nil
}

// Impression сообщает о показе карточки. Локально ничего не сохраняется.
func (s *Service) Impression(ctx context.Context, teaID int64) error {
	return s.track(ctx, teaID, domain.EventImpression)
}

// DetailOpen сообщает об открытии подробностей карточки.
func (s *Service) DetailOpen(ctx context.Context, teaID int64) error {
	return s.track(ctx, teaID, domain.EventDetailOpen)
}

func (s *Service) track(ctx context.Context, teaID int64, typ domain.EventType) error {
	anonID, err := s.identity.GetOrCreateID(ctx)
	if err != nil {
		return fmt.Errorf("resolve anon id: %w", err)
	}
	ev := domain.Event{AnonUserID: anonID, TeaID: teaID, Type: typ, CreatedAt: s.now().UTC()}
	s.goRemote(ctx, domain.OutboxEntry{Kind: domain.OutboxEvent, Event: &ev})
	return nil
}

// MessageInput описывает текстовый отзыв.
type MessageInput struct {
	Message string
	Contact string
	TeaID   *int64
}

// Message синхронно отправляет текстовый отзыв.
func (s *Service) Message(ctx context.Context, in MessageInput) error {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return domain.ErrEmptyMessage
	}
	anonID, err := s.identity.GetOrCreateID(ctx)
	if err != nil {
		return fmt.Errorf("resolve anon id: %w", err)
	}
	msg := domain.MessageFeedback{AnonUserID: anonID, Message: text, TeaID: in.TeaID}
	if contact := strings.TrimSpace(in.Contact); contact != "" {
		msg.Contact = &contact
	}
	if err := s.api.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// Wait ждёт завершения всех фоновых отправок.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) goRemote(ctx context.Context, entry domain.OutboxEntry) {
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.send(bg, entry)
		if err == nil {
			return
		}
		op := operationName(entry.Kind)
		metrics.IncRemoteFailure(op)
		s.log.Warn().Err(err).Str("operation", op).Msg("feedback: фоновая отправка не удалась")
		if s.outbox == nil {
			return
		}
		entry.ID = ulid.Make().String()
		entry.EnqueuedAt = s.now().UTC()
		entry.Attempts = 1
		if err := s.outbox.Enqueue(bg, entry); err != nil {
			s.log.Error().Err(err).Str("operation", op).Msg("feedback: не удалось положить запись в outbox")
		}
	}()
}

func (s *Service) send(ctx context.Context, entry domain.OutboxEntry) error {
	switch entry.Kind {
	case domain.OutboxFeedback:
		if entry.Feedback == nil {
			return fmt.Errorf("outbox entry %s: feedback payload is missing", entry.ID)
		}
		return s.api.PostFeedback(ctx, *entry.Feedback)
	case domain.OutboxEvent:
		if entry.Event == nil {
			return fmt.Errorf("outbox entry %s: event payload is missing", entry.ID)
		}
		return s.api.PostEvent(ctx, *entry.Event)
	}
	return fmt.Errorf("outbox entry %s: unknown kind %q", entry.ID, entry.Kind)
}

func operationName(kind domain.OutboxKind) string {
	if kind == domain.OutboxFeedback {
		return "post_feedback"
	}
	return "post_event"
}

// DrainResult описывает итог одного прохода по outbox.
type DrainResult struct {
	Replayed int
	Requeued int
	Dropped  int
}

// Drain один раз проходит по текущему содержимому outbox и повторяет записи.
// Неудачные записи возвращаются в очередь, после maxAttempts удаляются.
func (s *Service) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	if s.outbox == nil {
		return res, nil
	}
	pending, err := s.outbox.Len(ctx)
	if err != nil {
		return res, err
	}
	for i := 0; i < pending; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		entry, ok, err := s.outbox.Dequeue(ctx)
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		sendErr := s.send(ctx, entry)
		if sendErr == nil {
			res.Replayed++
			metrics.OutboxReplayTotal.WithLabelValues("replayed").Inc()
			continue
		}
		s.log.Debug().Err(sendErr).Str("id", entry.ID).Int("attempts", entry.Attempts).Msg("feedback: повтор не удался")
		entry.Attempts++
		if entry.Attempts >= s.maxAttempts {
			res.Dropped++
			metrics.OutboxReplayTotal.WithLabelValues("dropped").Inc()
			s.log.Warn().Str("id", entry.ID).Str("kind", string(entry.Kind)).Msg("feedback: запись удалена из outbox после всех попыток")
			continue
		}
		if err := s.outbox.Enqueue(ctx, entry); err != nil {
			return res, err
		}
		res.Requeued++
		metrics.OutboxReplayTotal.WithLabelValues("requeued").Inc()
	}
	return res, nil
}
