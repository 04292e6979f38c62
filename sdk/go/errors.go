package trackersdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports a lookup that matched nothing where one match was required.
	ErrNotFound = errors.New("not found")
	// ErrNotUnique reports a name that matched more than one entity in its scope.
	ErrNotUnique = errors.New("not unique")
	// ErrRateLimited is returned once the retry budget is spent on HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrConfigInconsistent reports a test configuration that failed validation.
	ErrConfigInconsistent = errors.New("annotation not defined")
	// ErrSerialization reports a response body that is not valid JSON.
	ErrSerialization = errors.New("malformed response")
	// ErrNullResponse is returned when the service answers with a JSON null.
	// It matches ErrNotFound; callers decide whether that is fatal.
	ErrNullResponse = fmt.Errorf("null response: %w", ErrNotFound)
)

// APIError wraps non-2xx responses other than rate limiting.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s %s: status=%d %s: %s", e.Method, e.Endpoint, e.StatusCode, e.reason(), e.Message())
}

// Message returns the service's error text, falling back to the raw body.
func (e *APIError) Message() string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(e.Body)
}

func (e *APIError) reason() string {
	// http.Response.Status carries "404 Not Found"; keep only the phrase.
	if _, phrase, ok := strings.Cut(e.Status, " "); ok {
		return phrase
	}
	return e.Status
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
