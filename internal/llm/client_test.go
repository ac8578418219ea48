package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ecotracker/backend/internal/apperr"
)

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

func fakeCompletions(t *testing.T, reply string, seen *[]chatRequest) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			mu.Lock()
			*seen = append(*seen, req)
			mu.Unlock()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func testClient(url string, cache Cache) *Client {
	return NewClient(Config{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.3,
		MaxTokens:   4096,
		Timeout:     5 * time.Second,
		MaxAttempts: 1,
		RetryDelay:  time.Millisecond,
	}, cache)
}

func TestRecommendSendsSingleTurn(t *testing.T) {
	var seen []chatRequest
	srv := fakeCompletions(t, "Choose recycled plastic.", &seen)
	defer srv.Close()

	got, err := testClient(srv.URL, nil).Recommend(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got != "Choose recycled plastic." {
		t.Fatalf("unexpected recommendation %q", got)
	}

	if len(seen) != 1 {
		t.Fatalf("expected 1 request, got %d", len(seen))
	}
	req := seen[0]
	if req.Model != "test-model" || req.MaxTokens != 4096 || req.Temperature != 0.3 {
		t.Errorf("unexpected request parameters %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser || req.Messages[0].Content != "prompt text" {
		t.Errorf("unexpected messages %+v", req.Messages)
	}
}

func TestConverseSendsHistory(t *testing.T) {
	var seen []chatRequest
	srv := fakeCompletions(t, "sure", &seen)
	defer srv.Close()

	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "tips?"},
	}
	if _, err := testClient(srv.URL, nil).Converse(context.Background(), history); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if len(seen[0].Messages) != 3 {
		t.Fatalf("expected full history, got %d messages", len(seen[0].Messages))
	}
}

func TestRemoteFailureIsRemoteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, nil).Recommend(context.Background(), "p")
	if !errors.Is(err, apperr.ErrRemoteService) {
		t.Fatalf("expected ErrRemoteService, got %v", err)
	}
}

func TestEmptyChoicesIsRemoteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, nil).Recommend(context.Background(), "p")
	if !errors.Is(err, apperr.ErrRemoteService) {
		t.Fatalf("expected ErrRemoteService, got %v", err)
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapCache) GetRecommendation(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) SetRecommendation(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestRecommendUsesCache(t *testing.T) {
	var seen []chatRequest
	srv := fakeCompletions(t, "cached answer", &seen)
	defer srv.Close()

	c := testClient(srv.URL, &mapCache{data: map[string]string{}})
	for i := 0; i < 3; i++ {
		got, err := c.Recommend(context.Background(), "same prompt")
		if err != nil {
			t.Fatalf("Recommend: %v", err)
		}
		if got != "cached answer" {
			t.Fatalf("unexpected answer %q", got)
		}
	}
	if len(seen) != 1 {
		t.Fatalf("expected 1 upstream call, got %d", len(seen))
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := map[int]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusBadRequest
		mu.Lock()
		calls[status]++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Model:       "test-model",
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}, nil)

	if _, err := c.Recommend(context.Background(), "p"); !errors.Is(err, apperr.ErrRemoteService) {
		t.Fatalf("expected ErrRemoteService, got %v", err)
	}
	if calls[http.StatusBadRequest] != 1 {
		t.Fatalf("expected a single attempt for a 400, got %d", calls[http.StatusBadRequest])
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Model:       "test-model",
		Timeout:     5 * time.Second,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	}, nil)

	got, err := c.Recommend(context.Background(), "p")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Fatalf("expected success on second attempt, got %q after %d calls", got, calls)
	}
}

func TestCancelledCallsKeepBreakerClosed(t *testing.T) {
	srv := fakeCompletions(t, "still here", nil)
	defer srv.Close()

	c := testClient(srv.URL, nil)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		if _, err := c.Recommend(cancelled, "p"); !errors.Is(err, apperr.ErrRemoteService) {
			t.Fatalf("expected ErrRemoteService, got %v", err)
		}
	}

	got, err := c.Recommend(context.Background(), "p")
	if err != nil {
		t.Fatalf("healthy call after cancellations: %v", err)
	}
	if got != "still here" {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestRejectedRequestsKeepBreakerClosed(t *testing.T) {
	var mu sync.Mutex
	reject := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		bad := reject
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if bad {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
			return
		}
		w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	for i := 0; i < 10; i++ {
		c.Recommend(context.Background(), "p")
	}
	if got := c.CircuitStatus(); got != "closed" {
		t.Fatalf("CircuitStatus() = %q, want closed", got)
	}

	mu.Lock()
	reject = false
	mu.Unlock()

	if _, err := c.Recommend(context.Background(), "p"); err != nil {
		t.Fatalf("healthy call after rejected requests: %v", err)
	}
}

func TestServerFailuresOpenBreaker(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	for i := 0; i < 7; i++ {
		c.Recommend(context.Background(), "p")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 5 {
		t.Fatalf("expected the breaker to stop upstream calls after 5 failures, got %d", calls)
	}
	if got := c.CircuitStatus(); got != "open" {
		t.Fatalf("CircuitStatus() = %q, want open", got)
	}
}
