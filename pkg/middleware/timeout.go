package middleware

import (
	"context"
	"net/http"
	"slices"
	apperrors "stayhub/pkg/errors"
	httputil "stayhub/pkg/http"
	"stayhub/pkg/logger"
	"sync"
	"time"
)

// deadlineWriter lets exactly one party own the response: the handler by
// writing first, or the timeout branch by claiming it after the deadline.
// The handler goroutine only touches its own header map, which is copied to
// the real writer when the handler's first write claims the response.
type deadlineWriter struct {
	w      http.ResponseWriter
	header http.Header

	mu        sync.Mutex
	owner     string
	committed bool
	expired   bool
}

const (
	ownerHandler = "handler"
	ownerTimeout = "timeout"
)

func newDeadlineWriter(w http.ResponseWriter) *deadlineWriter {
	return &deadlineWriter{w: w, header: make(http.Header)}
}

// claim must be called with dw.mu held.
func (dw *deadlineWriter) claim(owner string) bool {
	if dw.owner == "" {
		dw.owner = owner
	}
	return dw.owner == owner
}

func (dw *deadlineWriter) Header() http.Header {
	return dw.header
}

// commit must be called with dw.mu held.
func (dw *deadlineWriter) commit(code int) bool {
	if dw.committed {
		return true
	}
	if dw.expired || !dw.claim(ownerHandler) {
		return false
	}
	dst := dw.w.Header()
	for k, vv := range dw.header {
		dst[k] = slices.Clone(vv)
	}
	dw.w.WriteHeader(code)
	dw.committed = true
	return true
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.commit(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || !dw.commit(http.StatusOK) {
		return 0, http.ErrHandlerTimeout
	}
	return dw.w.Write(b)
}

// expire marks the deadline as passed and reports whether the timeout branch
// may still write the 504.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return dw.claim(ownerTimeout)
}

// RequestTimeout bounds handler time. Repository calls observe the same
// context, so a Mongo transaction in flight is aborted once it fires.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := newDeadlineWriter(w)
			finished := make(chan any, 1)

			go func() {
				defer func() { finished <- recover() }()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case p := <-finished:
				if p != nil {
					panic(p)
				}
				if ctx.Err() == nil {
					// Flush headers of a handler that returned without writing.
					dw.mu.Lock()
					dw.commit(http.StatusOK)
					dw.mu.Unlock()
					return
				}
			case <-ctx.Done():
			}

			if !dw.expire() {
				return
			}
			log.Warn("Request exceeded deadline",
				"method", r.Method,
				"path", r.URL.Path,
				"timeout", timeout.String(),
				"request_id", RequestIDFromContext(r.Context()),
			)
			_ = httputil.WriteError(w, apperrors.Timeout("Request timeout"))
		})
	}
}
