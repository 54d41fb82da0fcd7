package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/model"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replay"
	maxIdempotencyKeyLength = 128
)

// IdempotencyStore remembers the outcome of a keyed request. Begin either
// returns a finished response to replay, or claims the key for the caller.
// A key claimed by a request that is still running reports busy.
type IdempotencyStore interface {
	Begin(key string) (cached *CachedResponse, busy bool)
	// Complete stores response for key. A nil response releases the claim so
	// the client can retry.
	Complete(key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	CreatedAt  time.Time
}

type idempotencyEntry struct {
	response  *CachedResponse
	claimedAt time.Time
}

type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Begin(key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && !s.expired(e, now) {
		if e.response == nil {
			return nil, true
		}
		return e.response, false
	}

	s.entries[key] = &idempotencyEntry{claimedAt: now}
	return nil, false
}

func (s *InMemoryIdempotencyStore) Complete(key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if response == nil {
		delete(s.entries, key)
		return
	}
	response.CreatedAt = s.now()
	s.entries[key] = &idempotencyEntry{response: response, claimedAt: response.CreatedAt}
}

// expired must be called with s.mu held. An abandoned claim expires with the
// same TTL as a stored response.
func (s *InMemoryIdempotencyStore) expired(e *idempotencyEntry, now time.Time) bool {
	return now.Sub(e.claimedAt) > s.ttl
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, e := range s.entries {
				if s.expired(e, now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first 2xx response for a repeated key. Keys are
// scoped to the caller and route, so a retried payment returns the original
// receipt instead of charging twice. A duplicate that arrives while the first
// request is still running gets 409.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = IdempotencyKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := idempotencyKey(r, headerName)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			cached, busy := store.Begin(key)
			if busy {
				apperrors.WriteError(w, apperrors.Conflict("A request with this Idempotency-Key is still being processed"))
				return
			}
			if cached != nil {
				replay(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					store.Complete(key, nil)
				}
			}()

			next.ServeHTTP(capture, r)

			store.Complete(key, cacheable(capture, w.Header()))
			completed = true
		})
	}
}

func idempotencyKey(r *http.Request, headerName string) string {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}
	key := r.Header.Get(headerName)
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return ""
	}
	owner := "anonymous"
	if actor, ok := model.ActorFrom(r.Context()); ok {
		owner = strconv.FormatInt(actor.UserID, 10)
	}
	return owner + "|" + r.Method + " " + r.URL.Path + "|" + key
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// cacheable returns nil for responses that must not be replayed. Failures
// are retried for real so a declined card can be corrected.
func cacheable(capture *responseCapture, header http.Header) *CachedResponse {
	if capture.statusCode < 200 || capture.statusCode >= 300 {
		return nil
	}
	headers := header.Clone()
	headers.Del(RequestIDHeader)
	return &CachedResponse{
		StatusCode: capture.statusCode,
		Headers:    headers,
		Body:       bytes.Clone(capture.body.Bytes()),
	}
}
