package trackersdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackersdk "testtracker/sdk/go"
)

func newClient(t *testing.T, handler http.HandlerFunc, retries int, sleeps *int) *trackersdk.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return trackersdk.New(trackersdk.Options{
		BaseURL:       srv.URL + "/api/v2",
		Username:      "admin@example.com",
		Password:      "secret",
		RetryCount:    retries,
		RetryInterval: time.Millisecond,
		OnRetry: func(int, time.Duration) {
			if sleeps != nil {
				*sleeps++
			}
		},
	})
}

func TestRetriesAfterRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	sleeps := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"id": 7, "name": "P"}`)
	}, 3, &sleeps)

	p, err := c.Project(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, sleeps)
}

func TestSustainedRateLimitExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	sleeps := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, 3, &sleeps)

	_, err := c.Projects(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, trackersdk.ErrRateLimited)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, sleeps)
}

func TestSingleAttemptWhenRetryCountUnset(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, 0, nil)

	_, err := c.Users(context.Background())
	assert.ErrorIs(t, err, trackersdk.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadRequest} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls atomic.Int32
			sleeps := 0
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(code)
				_, _ = io.WriteString(w, `{"error": "Field :project_id is not a valid project."}`)
			}, 5, &sleeps)

			_, err := c.Project(context.Background(), 1)
			var apiErr *trackersdk.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, code, apiErr.StatusCode)
			assert.Equal(t, "get_project", apiErr.Endpoint)
			assert.Equal(t, "Field :project_id is not a valid project.", apiErr.Message())
			assert.Contains(t, err.Error(), http.StatusText(code))
			assert.True(t, trackersdk.IsStatus(err, code))
			assert.Equal(t, int32(1), calls.Load())
			assert.Zero(t, sleeps)
		})
	}
}

func TestAPIErrorKeepsServerReasonPhrase(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		body := `{"error": "down"}`
		fmt.Fprintf(buf, "HTTP/1.1 503 Down For Maintenance\r\nContent-Type: application/json\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)
		_ = buf.Flush()
	}, 1, nil)

	_, err := c.Projects(context.Background())
	var apiErr *trackersdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "503 Down For Maintenance", apiErr.Status)
	assert.Contains(t, err.Error(), "Down For Maintenance")
	assert.Equal(t, "down", apiErr.Message())
}

func TestNullResponseIsNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "null")
	}, 1, nil)

	_, err := c.UserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, trackersdk.ErrNullResponse)
	assert.ErrorIs(t, err, trackersdk.ErrNotFound)
}

func TestMalformedResponse(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}, 1, nil)

	_, err := c.Projects(context.Background())
	assert.ErrorIs(t, err, trackersdk.ErrSerialization)
}

func TestRequestShape(t *testing.T) {
	var got *http.Request
	var body []byte
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `[{"id": 1, "case_id": 4, "status_id": 1}]`)
	}, 1, nil)

	res, err := c.AddResults(context.Background(), 12, []trackersdk.ResultEntry{{CaseID: 4, StatusID: trackersdk.StatusPassed}})
	require.NoError(t, err)
	require.Len(t, res, 1)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/v2/add_results/12", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.NotEmpty(t, got.Header.Get("X-Request-Id"))
	user, pass, ok := got.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", user)
	assert.Equal(t, "secret", pass)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(body, &entries))
	assert.Equal(t, []map[string]any{{"case_id": float64(4), "status_id": float64(1)}}, entries)
}

func TestQueryJoinsForPlainBase(t *testing.T) {
	var rawQuery string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[]`)
	}, 1, nil)

	_, err := c.Cases(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "suite_id=2&section_id=3", rawQuery)
}

func TestQueryJoinsForIndexPHPBase(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)
	c := trackersdk.New(trackersdk.Options{BaseURL: srv.URL + "/index.php?/api/v2"})

	_, err := c.Sections(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/get_sections/5&suite_id=9", rawQuery)
}

func TestPaginatedListing(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			_, _ = io.WriteString(w, `{"offset": 0, "projects": [{"id": 1, "name": "A"}], "_links": {"next": "/api/v2/get_projects&offset=1"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"offset": 1, "projects": [{"id": 2, "name": "B"}], "_links": {"next": null}}`)
	}, 1, nil)

	projects, err := c.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "B", projects[1].Name)
}

func TestRateLimitMetrics(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)
	reg := prometheus.NewRegistry()
	m := trackersdk.NewMetrics(reg)
	c := trackersdk.New(trackersdk.Options{BaseURL: srv.URL, RetryCount: 2, RetryInterval: time.Millisecond, Metrics: m})

	_, err := c.Runs(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, m, c.Metrics())

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			counts[mf.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), counts["testtracker_rate_limited_total"])
	assert.Equal(t, float64(2), counts["testtracker_requests_total"])
}

func TestStatusNames(t *testing.T) {
	s, err := trackersdk.ParseStatus("failed")
	require.NoError(t, err)
	assert.Equal(t, trackersdk.StatusFailed, s)
	assert.Equal(t, "passed", trackersdk.StatusPassed.String())
	_, err = trackersdk.ParseStatus("flaky")
	assert.Error(t, err)
}
