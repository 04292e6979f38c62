package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"testtracker/internal/engine"
	"testtracker/internal/engine/auth"
	"testtracker/internal/repo"
)

const (
	DefaultBasePath = "/api/v2"
	DefaultPageSize = 250
)

// Config for the fake service handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	// PageSize bounds paginated listings; DefaultPageSize when zero.
	PageSize int
	// Throttle, when set, answers 429 for as many calls as it holds.
	Throttle *Throttle
	Logger   *slog.Logger
}

type requestKey struct{}

// apiError is the service's error envelope: {"error": "..."}.
type apiError struct {
	status  int
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

// New returns an HTTP handler exposing the tracker API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, detailed(msg, errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		// the service reports every request problem as 400
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, detailed(msg, errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(queryPathRewrite(basePath))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuditMiddleware(basePath, cfg.Engine, logger))
	router.Use(newThrottleMiddleware(basePath, cfg.Throttle))
	router.Use(newAuthMiddleware(basePath, cfg.Engine.Auth))

	hcfg := huma.DefaultConfig("Test Tracker API", "2.0.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = ""
	hcfg.SchemasPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, basePath: basePath, pageSize: cfg.PageSize}
	h.registerProjects(group)
	h.registerMilestones(group)
	h.registerSuites(group)
	h.registerSections(group)
	h.registerCases(group)
	h.registerRuns(group)
	h.registerPlans(group)
	h.registerUsers(group)
	h.registerResults(group)

	return router, nil
}

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Message: message}
}

func detailed(msg string, errs []error) string {
	if len(errs) == 0 {
		return msg
	}
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe engine.FieldError
	switch {
	case errors.As(err, &fe):
		return newAPIError(http.StatusBadRequest, fe.Error())
	case errors.Is(err, engine.ErrRunCompleted):
		return newAPIError(http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return newAPIError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusBadRequest, err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "internal error: "+err.Error())
	}
}

func requestFrom(ctx context.Context) *http.Request {
	r, _ := ctx.Value(requestKey{}).(*http.Request)
	return r
}

// queryPathRewrite serves the index.php?/api/v2/... form by moving the
// route out of the query string: the first '&' starts the real query.
func queryPathRewrite(basePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.RawQuery
			if r.URL.Path == "/index.php" && strings.HasPrefix(raw, basePath+"/") {
				route, query, _ := strings.Cut(raw, "&")
				r.URL.Path = route
				r.URL.RawPath = ""
				r.URL.RawQuery = query
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					rctx.RoutePath = route
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// endpointName is the method segment of a request path under basePath.
func endpointName(basePath, p string) string {
	p = strings.TrimPrefix(p, basePath)
	p = strings.TrimLeft(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// page wraps one slice of a listing in the service's paginated envelope.
func page[T any](ctx context.Context, basePath, key string, items []T, offset, limit int) map[string]any {
	if offset < 0 {
		offset = 0
	}
	total := len(items)
	end := min(offset+limit, total)
	start := min(offset, total)
	slice := items[start:end]
	if slice == nil {
		slice = []T{}
	}
	var next any
	if end < total {
		next = nextLink(ctx, basePath, end, limit)
	}
	return map[string]any{
		"offset": offset,
		"limit":  limit,
		"size":   len(slice),
		"_links": map[string]any{"next": next, "prev": nil},
		key:      slice,
	}
}

// nextLink renders a pagination link the way the service does:
// /api/v2/get_cases/1&suite_id=2&limit=250&offset=250
func nextLink(ctx context.Context, basePath string, offset, limit int) string {
	r := requestFrom(ctx)
	if r == nil {
		return ""
	}
	q := url.Values{}
	for k, v := range r.URL.Query() {
		if k != "limit" && k != "offset" {
			q[k] = v
		}
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return fmt.Sprintf("%s&%s", r.URL.Path, q.Encode())
}
