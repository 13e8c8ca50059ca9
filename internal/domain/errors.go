package domain

import "errors"

var (
	// ErrInvalidDecision возвращается для оценки вне {like, dislike}.
	ErrInvalidDecision = errors.New("invalid action")
	// ErrInvalidCategory возвращается для неизвестной категории.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidEventType возвращается для неизвестного типа события.
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrBadPagination возвращается для некорректных page/page_size.
	ErrBadPagination = errors.New("invalid pagination")
	// ErrTeaNotFound возвращается, если позиция отсутствует или снята с показа.
	ErrTeaNotFound = errors.New("tea not found")
	// ErrEmptyMessage возвращается для пустого текстового отзыва.
	ErrEmptyMessage = errors.New("message is required")
	// ErrEmptyAnonUserID возвращается, если запрос без анонимного идентификатора.
	ErrEmptyAnonUserID = errors.New("anon_user_id is required")
)
