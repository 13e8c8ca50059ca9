package teaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

// Client обращается к публичному API каталога.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var (
	_ domain.FeedClient  = (*Client)(nil)
	_ domain.FeedbackAPI = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout ограничивает время запроса. По умолчанию клиент таймаут не задаёт.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		clone := *c.httpClient
		clone.Timeout = timeout
		c.httpClient = &clone
	}
}

// APIError возвращается для ответов со статусом вне 2xx. Тело ответа не интерпретируется,
// Message извлекается по возможности.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tea api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tea api error: status=%d message=%s", e.StatusCode, e.Message)
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	// Без "://" url.Parse принимает "localhost:8000" за схему "localhost".
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FeedQuery строит query string запроса страницы; пустые поля опускаются целиком.
func FeedQuery(req domain.FeedRequest) url.Values {
	q := url.Values{}
	if req.Category != "" {
		q.Set("category", string(req.Category))
	}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("page_size", strconv.Itoa(req.PageSize))
	if req.AnonUserID != "" {
		q.Set("anon_user_id", req.AnonUserID)
	}
	if len(req.ExcludeIDs) > 0 {
		q.Set("exclude_ids", JoinIDs(req.ExcludeIDs))
	}
	if len(req.TeaIDs) > 0 {
		q.Set("tea_ids", JoinIDs(req.TeaIDs))
	}
	return q
}

// JoinIDs соединяет id через запятую в десятичной записи.
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// FetchPage запрашивает одну страницу ленты.
func (c *Client) FetchPage(ctx context.Context, feedReq domain.FeedRequest) (domain.FeedResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/teas", FeedQuery(feedReq), nil)
	if err != nil {
		return domain.FeedResponse{}, err
	}
	var page domain.FeedResponse
	if err := c.do(req, "fetch_page", &page); err != nil {
		return domain.FeedResponse{}, err
	}
	if page.Items == nil {
		page.Items = []domain.Tea{}
	}
	return page, nil
}

// GetTea возвращает карточку по id.
func (c *Client) GetTea(ctx context.Context, id int64) (domain.Tea, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/teas/%d", id), nil, nil)
	if err != nil {
		return domain.Tea{}, err
	}
	var tea domain.Tea
	if err := c.do(req, "get_tea", &tea); err != nil {
		return domain.Tea{}, err
	}
	return tea, nil
}

type feedbackBody struct {
	AnonUserID string          `json:"anon_user_id"`
	TeaID      int64           `json:"tea_id"`
	Action     domain.Decision `json:"action"`
}

type eventBody struct {
	AnonUserID string           `json:"anon_user_id"`
	TeaID      int64            `json:"tea_id"`
	Type       domain.EventType `json:"type"`
}

type messageBody struct {
	AnonUserID string  `json:"anon_user_id"`
	Message    string  `json:"message"`
	Contact    *string `json:"contact,omitempty"`
	TeaID      *int64  `json:"tea_id,omitempty"`
}

// PostFeedback отправляет оценку.
func (c *Client) PostFeedback(ctx context.Context, fb domain.Feedback) error {
	body := feedbackBody{AnonUserID: fb.AnonUserID, TeaID: fb.TeaID, Action: fb.Action}
	return c.post(ctx, "/api/feedback", "post_feedback", body)
}

// PostEvent отправляет событие показа или открытия карточки.
func (c *Client) PostEvent(ctx context.Context, ev domain.Event) error {
	body := eventBody{AnonUserID: ev.AnonUserID, TeaID: ev.TeaID, Type: ev.Type}
	return c.post(ctx, "/api/events", "post_event", body)
}

// PostMessage отправляет текстовый отзыв.
func (c *Client) PostMessage(ctx context.Context, msg domain.MessageFeedback) error {
	body := messageBody{AnonUserID: msg.AnonUserID, Message: msg.Message, Contact: msg.Contact, TeaID: msg.TeaID}
	return c.post(ctx, "/api/feedback/message", "post_message", body)
}

func (c *Client) post(ctx context.Context, endpoint, operation string, body any) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, operation, nil)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	resolved.RawQuery = ""
	if len(query) > 0 {
		resolved.RawQuery = query.Encode()
	}
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, operation string, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("teaclient", operation, c.baseURL.Host, start, err)
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tea api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// newAPIError извлекает сообщение из {"detail": "..."} или {"detail": {"code","message"}}.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil {
		var text string
		var structured struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		switch {
		case len(envelope.Detail) > 0 && json.Unmarshal(envelope.Detail, &text) == nil:
			apiErr.Message = text
		case len(envelope.Detail) > 0 && json.Unmarshal(envelope.Detail, &structured) == nil:
			apiErr.Code = structured.Code
			apiErr.Message = structured.Message
		case envelope.Error != "":
			apiErr.Message = envelope.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("HTTP %d", status)
	}
	return apiErr
}
