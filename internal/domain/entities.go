package domain

import (
	"strings"
	"time"
)

// Category описывает вид чая в каталоге.
type Category string

const (
	CategoryPuEr   Category = "pu_er"
	CategoryWhite  Category = "white"
	CategoryYancha Category = "yancha"
	CategoryBlack  Category = "black"
)

// Categories возвращает все известные категории в порядке показа.
func Categories() []Category {
	return []Category{CategoryPuEr, CategoryWhite, CategoryYancha, CategoryBlack}
}

// ParseCategory приводит строку к категории. Пустая строка означает «все категории».
func ParseCategory(raw string) (Category, error) {
	candidate := Category(strings.TrimSpace(strings.ToLower(raw)))
	if candidate == "" {
		return "", nil
	}
	for _, c := range Categories() {
		if c == candidate {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// TeaStatus описывает видимость позиции.
type TeaStatus string

const (
	TeaStatusOnline  TeaStatus = "online"
	TeaStatusOffline TeaStatus = "offline"
)

// Tea представляет карточку чая, которую видит посетитель.
type Tea struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Year      int       `json:"year"`
	Origin    string    `json:"origin"`
	Spec      string    `json:"spec"`
	PriceMin  *int      `json:"price_min"`
	PriceMax  *int      `json:"price_max"`
	Intro     *string   `json:"intro"`
	CoverURL  string    `json:"cover_url"`
	Status    TeaStatus `json:"status"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedRequest описывает запрос страницы ленты.
// Нулевые значения полей считаются отсутствующими и не попадают в запрос.
type FeedRequest struct {
	Category   Category
	Page       int
	PageSize   int
	AnonUserID string
	ExcludeIDs []int64
	TeaIDs     []int64
}

// FeedResponse содержит страницу ленты. Total может меняться между вызовами.
type FeedResponse struct {
	Items    []Tea `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int   `json:"total"`
}
