package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultIdempotencyHeader = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

type memoryEntry struct {
	response  *CachedResponse
	expiresAt time.Time
}

// InMemoryIdempotencyStore is the single-replica fallback used when Redis is
// not configured.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	stop    context.CancelFunc
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemoryIdempotencyStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    cancel,
	}
	go s.sweep(ctx, min(ttl, time.Hour))
	return s
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.response, true
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	response.CreatedAt = now
	s.entries[key] = memoryEntry{response: response, expiresAt: now.Add(s.ttl)}
}

func (s *InMemoryIdempotencyStore) sweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, entry := range s.entries {
				if !now.Before(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Stop is safe to call more than once.
func (s *InMemoryIdempotencyStore) Stop() {
	s.stop()
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

// inflight serializes requests that share a scoped key, so a client retrying
// before its first attempt has answered waits for that answer instead of
// racing it into the booking service.
type inflight struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	waiters int
}

func (f *inflight) acquire(ctx context.Context, key string) (release func(), err error) {
	f.mu.Lock()
	l, ok := f.locks[key]
	if !ok {
		l = &keyLock{}
		f.locks[key] = l
	}
	l.waiters++
	f.mu.Unlock()

	release = func() {
		l.Unlock()
		f.mu.Lock()
		if l.waiters--; l.waiters == 0 {
			delete(f.locks, key)
		}
		f.mu.Unlock()
	}

	locked := make(chan struct{})
	go func() {
		l.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		return release, nil
	case <-ctx.Done():
		// Hand the lock straight back once the waiter goroutine gets it.
		go func() {
			<-locked
			release()
		}()
		return nil, ctx.Err()
	}
}

// Idempotency replays the first successful response for a repeated key. Keys
// are scoped to the caller and route, so two users sending the same key never
// see each other's responses.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = DefaultIdempotencyHeader
	}
	pending := &inflight{locks: make(map[string]*keyLock)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headerKey := r.Header.Get(headerName)
			if headerKey == "" || !isUnsafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := scopedIdempotencyKey(r, headerKey)
			release, err := pending.acquire(r.Context(), key)
			if err != nil {
				// The request deadline passed while an earlier attempt held the key.
				next.ServeHTTP(w, r)
				return
			}
			defer release()

			if cached, found := store.Get(r.Context(), key); found {
				replayCachedResponse(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				store.Set(r.Context(), key, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
			}
		})
	}
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		return true
	}
	return false
}

func scopedIdempotencyKey(r *http.Request, headerKey string) string {
	actorID := "anonymous"
	if actor, ok := ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	return actorID + ":" + r.Method + ":" + r.URL.Path + ":" + headerKey
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		if key == RequestIDHeader {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
