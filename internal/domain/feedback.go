package domain

import (
	"strconv"
	"strings"
	"time"
)

// Decision описывает бинарную оценку позиции посетителем.
type Decision string

const (
	DecisionLike    Decision = "like"
	DecisionDislike Decision = "dislike"
)

// ParseDecision проверяет значение оценки.
func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.TrimSpace(raw)) {
	case DecisionLike:
		return DecisionLike, nil
	case DecisionDislike:
		return DecisionDislike, nil
	}
	return "", ErrInvalidDecision
}

// Valid сообщает, является ли значение допустимой оценкой.
func (d Decision) Valid() bool {
	return d == DecisionLike || d == DecisionDislike
}

// EventType описывает тип лёгкого события просмотра.
type EventType string

const (
	EventImpression EventType = "impression"
	EventDetailOpen EventType = "detail_open"
)

// ParseEventType проверяет тип события.
func ParseEventType(raw string) (EventType, error) {
	switch EventType(strings.TrimSpace(raw)) {
	case EventImpression:
		return EventImpression, nil
	case EventDetailOpen:
		return EventDetailOpen, nil
	}
	return "", ErrInvalidEventType
}

// DailyLedger хранит оценки за один календарный день: id позиции -> оценка.
type DailyLedger map[string]Decision

// AggregatedFeedback — свёртка дневных журналов за окно, новые дни перекрывают старые.
type AggregatedFeedback map[int64]Decision

// ItemKey переводит числовой id в ключ дневного журнала.
func ItemKey(teaID int64) string {
	return strconv.FormatInt(teaID, 10)
}

// Feedback представляет оценку, отправленную на сервер.
type Feedback struct {
	ID         int64     `json:"id,omitempty"`
	AnonUserID string    `json:"anon_user_id"`
	TeaID      int64     `json:"tea_id"`
	Action     Decision  `json:"action"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Event представляет показ карточки или открытие подробностей.
type Event struct {
	ID         int64     `json:"id,omitempty"`
	AnonUserID string    `json:"anon_user_id"`
	TeaID      int64     `json:"tea_id"`
	Type       EventType `json:"type"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// MessageFeedback представляет текстовый отзыв посетителя.
type MessageFeedback struct {
	ID         int64     `json:"id,omitempty"`
	AnonUserID string    `json:"anon_user_id"`
	Message    string    `json:"message"`
	Contact    *string   `json:"contact,omitempty"`
	TeaID      *int64    `json:"tea_id,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}
