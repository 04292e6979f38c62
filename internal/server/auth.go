package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"testtracker/internal/domain"
	"testtracker/internal/engine"
	"testtracker/internal/engine/auth"
)

type userKey struct{}

func withUser(ctx context.Context, u domain.User) context.Context {
	if h, ok := ctx.Value(actorHolderKey{}).(*actorHolder); ok {
		h.id.Store(u.ID)
	}
	return context.WithValue(ctx, userKey{}, u)
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}

// actorID is the authenticated user's id, or 0 outside an authenticated request.
func actorID(ctx context.Context) int64 {
	u, _ := userFromContext(ctx)
	return u.ID
}

func newAuthMiddleware(basePath string, svc auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			email, secret, ok := req.BasicAuth()
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()))
				return
			}
			u, err := svc.Authenticate(req.Context(), email, secret)
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			next.ServeHTTP(w, req.WithContext(withUser(req.Context(), u)))
		})
	}
}

// Throttle rejects the next N API calls with 429 Too Many Requests.
type Throttle struct {
	remaining  atomic.Int64
	RetryAfter time.Duration
}

// Reject arms the throttle for n more calls.
func (t *Throttle) Reject(n int) { t.remaining.Store(int64(n)) }

// Remaining is how many calls will still be rejected.
func (t *Throttle) Remaining() int { return int(t.remaining.Load()) }

func (t *Throttle) take() bool {
	for {
		n := t.remaining.Load()
		if n <= 0 {
			return false
		}
		if t.remaining.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func newThrottleMiddleware(basePath string, t *Throttle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if t == nil || !strings.HasPrefix(req.URL.Path, basePath) || !t.take() {
				next.ServeHTTP(w, req)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(t.RetryAfter.Seconds())))
			respondStatusError(w, newAPIError(http.StatusTooManyRequests, "API rate limit exceeded"))
		})
	}
}

// statusRecorder calls onStatus once, before the first byte of the response
// leaves, so whatever it records is visible to the caller.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	onStatus func(status int)
}

func (r *statusRecorder) WriteHeader(code int) {
	r.record(code)
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.record(http.StatusOK)
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) record(code int) {
	if r.status != 0 {
		return
	}
	r.status = code
	r.onStatus(code)
}

// newAuditMiddleware records every API call in the events table.
// withUser reports the actor through the holder.
func newAuditMiddleware(basePath string, e engine.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			start := time.Now()
			name := endpointName(basePath, req.URL.Path)
			holder := &actorHolder{}
			rec := &statusRecorder{ResponseWriter: w, onStatus: func(status int) {
				if err := e.Events.Call(context.WithoutCancel(req.Context()), holder.id.Load(), req.Method, name, status); err != nil {
					logger.Error("audit api call", "endpoint", name, "error", err)
				}
			}}
			next.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), actorHolderKey{}, holder)))
			rec.record(http.StatusOK)
			logger.Debug("api call", "method", req.Method, "endpoint", name, "status", rec.status, "duration", time.Since(start))
		})
	}
}

type actorHolderKey struct{}

type actorHolder struct{ id atomic.Int64 }

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
