package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"uniparking/pkg/logger"
	"uniparking/pkg/model"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, nil, logger.Discard())
	defer rl.Stop()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("user:1") || !rl.Allow("user:1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("user:1") {
		t.Error("third request inside the window should be limited")
	}
	if !rl.Allow("user:2") {
		t.Error("other user should have an independent bucket")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("user:1") {
		t.Error("request after the window should pass")
	}
}

func TestRateLimitMiddleware_KeysByActor(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, nil, logger.Discard())
	defer rl.Stop()
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(userID int64) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if userID != 0 {
			req = req.WithContext(model.WithActor(req.Context(), model.Actor{UserID: userID}))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(1); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := send(1); code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", code)
	}
	if code := send(2); code != http.StatusOK {
		t.Errorf("other user = %d, want 200", code)
	}
	if code := send(0); code != http.StatusOK {
		t.Errorf("anonymous from same host = %d, want 200", code)
	}
}

func TestIdempotency_ReplaysPerActor(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	}))

	send := func(userID int64, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/id/1/payment", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, key)
		req = req.WithContext(model.WithActor(req.Context(), model.Actor{UserID: userID}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	first := send(1, "abc")
	replay := send(1, "abc")
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", calls.Load())
	}
	if replay.Code != http.StatusCreated || replay.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %q, want %d %q", replay.Code, replay.Body.String(), first.Code, first.Body.String())
	}
	if replay.Header().Get(IdempotentReplayHeader) != "true" {
		t.Error("replay header missing")
	}

	send(2, "abc")
	if calls.Load() != 2 {
		t.Errorf("same key from another user should run the handler, calls = %d", calls.Load())
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls.Load() != 2 {
		t.Errorf("handler ran %d times, want 2", calls.Load())
	}
}

func TestIdempotency_ConcurrentDuplicateConflicts(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	entered := make(chan struct{})
	release := make(chan struct{})
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/id/7/payment", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, "pay-7")
		return req
	}

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(first, newReq())
		close(done)
	}()
	<-entered

	dup := httptest.NewRecorder()
	h.ServeHTTP(dup, newReq())
	if dup.Code != http.StatusConflict {
		t.Errorf("duplicate in flight = %d, want 409", dup.Code)
	}

	close(release)
	<-done
	if first.Code != http.StatusOK {
		t.Errorf("first = %d, want 200", first.Code)
	}

	replayed := httptest.NewRecorder()
	h.ServeHTTP(replayed, newReq())
	if replayed.Header().Get(IdempotentReplayHeader) != "true" {
		t.Error("request after completion should be a replay")
	}
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() (code int, panicked bool) {
		defer func() {
			if recover() != nil {
				panicked = true
			}
		}()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, "start")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code, false
	}

	if _, panicked := send(); !panicked {
		t.Fatal("first call should panic")
	}
	if code, _ := send(); code != http.StatusCreated {
		t.Errorf("retry after panic = %d, want 201", code)
	}
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, busy := store.Begin("k"); busy {
		t.Fatal("fresh key should be claimable")
	}
	if _, busy := store.Begin("k"); !busy {
		t.Fatal("claimed key should be busy")
	}

	now = now.Add(2 * time.Minute)
	if _, busy := store.Begin("k"); busy {
		t.Fatal("abandoned claim should expire")
	}
	store.Complete("k", &CachedResponse{StatusCode: http.StatusOK})
	if cached, _ := store.Begin("k"); cached == nil {
		t.Fatal("completed response should be returned")
	}

	now = now.Add(2 * time.Minute)
	if cached, busy := store.Begin("k"); cached != nil || busy {
		t.Error("stored response should expire after the TTL")
	}
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestRequestTimeout_SkipsWebSocket(t *testing.T) {
	var hasDeadline bool
	h := RequestTimeout(time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if hasDeadline {
		t.Error("websocket handshake should not get a deadline")
	}
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json", http.MethodPost, "{}", "application/json; charset=utf-8", http.StatusOK},
		{"form", http.MethodPost, "a=b", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"bodiless action", http.MethodPost, "", "", http.StatusOK},
		{"get", http.MethodGet, "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/sessions/ref/SES-1/end", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var got string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got != "req-123" || w.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("request id = %q, header %q", got, w.Header().Get(RequestIDHeader))
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
