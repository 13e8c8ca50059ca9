package teaclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"drinktea/internal/domain"
)

func captureQuery(t *testing.T) (*Client, *url.Values) {
	t.Helper()
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/teas", r.URL.Path)
		captured = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":1,"name":"白毫银针","category":"white"}],"page":1,"page_size":20,"total":1}`))
	}))
	t.Cleanup(srv.Close)
	client, err := New(srv.URL)
	require.NoError(t, err)
	return client, &captured
}

func TestFetchPageOmitsUndefinedFields(t *testing.T) {
	client, captured := captureQuery(t)
	page, err := client.FetchPage(context.Background(), domain.FeedRequest{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, domain.CategoryWhite, page.Items[0].Category)

	q := *captured
	require.Equal(t, "1", q.Get("page"))
	require.Equal(t, "20", q.Get("page_size"))
	for _, key := range []string{"category", "anon_user_id", "exclude_ids", "tea_ids"} {
		_, present := q[key]
		require.Falsef(t, present, "expected %s to be omitted", key)
	}
}

func TestFetchPageSerializesIDLists(t *testing.T) {
	client, captured := captureQuery(t)
	_, err := client.FetchPage(context.Background(), domain.FeedRequest{
		Category:   domain.CategoryPuEr,
		Page:       2,
		PageSize:   10,
		AnonUserID: "anon-1",
		ExcludeIDs: []int64{3, 5},
		TeaIDs:     []int64{8},
	})
	require.NoError(t, err)
	q := *captured
	require.Equal(t, "3,5", q.Get("exclude_ids"))
	require.Equal(t, "8", q.Get("tea_ids"))
	require.Equal(t, "pu_er", q.Get("category"))
	require.Equal(t, "anon-1", q.Get("anon_user_id"))
}

func TestFetchPageOmitsEmptyExcludeIDs(t *testing.T) {
	client, captured := captureQuery(t)
	_, err := client.FetchPage(context.Background(), domain.FeedRequest{Page: 1, PageSize: 10, ExcludeIDs: []int64{}, TeaIDs: []int64{}})
	require.NoError(t, err)
	_, hasExclude := (*captured)["exclude_ids"]
	_, hasTeaIDs := (*captured)["tea_ids"]
	require.False(t, hasExclude)
	require.False(t, hasTeaIDs)
}

func TestFetchPageReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":{"code":"bad_request","message":"invalid pagination"}}`))
	}))
	defer srv.Close()
	client, err := New(srv.URL)
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), domain.FeedRequest{Page: 0, PageSize: 10})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "bad_request", apiErr.Code)
	require.Equal(t, "invalid pagination", apiErr.Message)
	require.NotEmpty(t, apiErr.Body)
}

func TestAPIErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{body: `{"detail":"tea not found"}`, want: "tea not found"},
		{body: `{"error":"boom"}`, want: "boom"},
		{body: `<html>bad gateway</html>`, want: "HTTP 502"},
		{body: ``, want: "HTTP 502"},
	}
	for _, tc := range cases {
		got := newAPIError(http.StatusBadGateway, []byte(tc.body))
		require.Equal(t, tc.want, got.Message, tc.body)
	}
}

func TestFetchPageTransportError(t *testing.T) {
	client, err := New("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = client.FetchPage(context.Background(), domain.FeedRequest{Page: 1, PageSize: 10})
	require.Error(t, err)
	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}

func TestPostBodies(t *testing.T) {
	bodies := map[string]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies[r.URL.Path] = body
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	client, err := New(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.PostFeedback(ctx, domain.Feedback{AnonUserID: "a", TeaID: 42, Action: domain.DecisionLike}))
	require.NoError(t, client.PostEvent(ctx, domain.Event{AnonUserID: "a", TeaID: 42, Type: domain.EventDetailOpen}))
	require.NoError(t, client.PostMessage(ctx, domain.MessageFeedback{AnonUserID: "a", Message: "好喝"}))

	require.Equal(t, map[string]any{"anon_user_id": "a", "tea_id": float64(42), "action": "like"}, bodies["/api/feedback"])
	require.Equal(t, map[string]any{"anon_user_id": "a", "tea_id": float64(42), "type": "detail_open"}, bodies["/api/events"])
	// contact и tea_id не заданы и не отправляются.
	require.Equal(t, map[string]any{"anon_user_id": "a", "message": "好喝"}, bodies["/api/feedback/message"])
}

func TestGetTea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/teas/7" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":{"code":"not_found","message":"tea not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"name":"大红袍","category":"yancha","status":"online"}`))
	}))
	defer srv.Close()
	client, err := New(srv.URL)
	require.NoError(t, err)

	tea, err := client.GetTea(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "大红袍", tea.Name)

	_, err = client.GetTea(context.Background(), 8)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	for _, bad := range []string{"http://", "http:///api", "://"} {
		_, err = New(bad)
		require.Errorf(t, err, "expected %q to be rejected", bad)
	}
}

func TestNewDefaultsSchemeForHostPort(t *testing.T) {
	for raw, want := range map[string]string{
		"localhost:8000":         "http://localhost:8000/api/teas?page=1&page_size=10",
		"tea.test/base":          "http://tea.test/base/api/teas?page=1&page_size=10",
		"https://tea.test:8443/": "https://tea.test:8443/api/teas?page=1&page_size=10",
	} {
		client, err := New(raw)
		require.NoError(t, err, raw)
		req, err := client.newRequest(context.Background(), http.MethodGet, "/api/teas",
			FeedQuery(domain.FeedRequest{Page: 1, PageSize: 10}), nil)
		require.NoError(t, err, raw)
		require.Equal(t, want, req.URL.String())
	}
}
