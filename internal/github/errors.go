package github

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
)

var (
	// ErrRateLimitExceeded is returned when the GitHub API rate limit is exceeded
	ErrRateLimitExceeded = errors.New("github rate limit exceeded")

	// ErrSecondaryRateLimit is returned when GitHub reports abuse detection / secondary limits
	ErrSecondaryRateLimit = errors.New("github secondary rate limit exceeded")

	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("github authentication failed")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("github resource not found")

	// ErrForbidden is returned when access is forbidden
	ErrForbidden = errors.New("github access forbidden")

	// ErrServerError is returned when GitHub returns a server error
	ErrServerError = errors.New("github server error")

	// ErrBadRequest is returned when the request is malformed
	ErrBadRequest = errors.New("github bad request")

	// ErrCursorStalled is returned when a page claims a successor but hands back no usable cursor
	ErrCursorStalled = errors.New("github pagination cursor did not advance")
)

// APIError wraps GitHub API errors with the operation that produced them
type APIError struct {
	StatusCode int
	Message    string
	Operation  string
	URL        string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github api error: %s (status: %d, operation: %s, url: %s): %v",
			e.Message, e.StatusCode, e.Operation, e.URL, e.Err)
	}
	return fmt.Sprintf("github api error: %s (status: %d, operation: %s, url: %s)",
		e.Message, e.StatusCode, e.Operation, e.URL)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// WrapError converts a REST or GraphQL error into a structured APIError
func WrapError(err error, operation, url string) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
			Operation:  operation,
			URL:        url,
			Err:        mapErrorType(ghErr.Response.StatusCode, ghErr.Response.Header, err),
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{
			StatusCode: http.StatusForbidden,
			Message:    abuseErr.Message,
			Operation:  operation,
			URL:        url,
			Err:        ErrSecondaryRateLimit,
		}
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{
			StatusCode: http.StatusForbidden,
			Message:    rateErr.Message,
			Operation:  operation,
			URL:        url,
			Err:        ErrRateLimitExceeded,
		}
	}

	// GraphQL transport errors only carry text; classify on the message.
	statusCode := extractStatusCodeFromError(err)
	wrapped := &APIError{
		StatusCode: statusCode,
		Message:    err.Error(),
		Operation:  operation,
		URL:        url,
		Err:        err,
	}
	if mapped := classifyGraphQLMessage(err.Error()); mapped != nil {
		wrapped.Err = mapped
	} else if statusCode > 0 {
		wrapped.Err = mapErrorType(statusCode, nil, err)
	}

	return wrapped
}

// mapErrorType maps HTTP status codes to specific error types, falling back to the original error
func mapErrorType(statusCode int, header http.Header, original error) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		if header != nil && header.Get("X-RateLimit-Remaining") == "0" {
			return ErrRateLimitExceeded
		}
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusTooManyRequests:
		return ErrRateLimitExceeded
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return ErrServerError
	default:
		return original
	}
}

func classifyGraphQLMessage(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "secondary rate limit"),
		strings.Contains(lower, "submitted too quickly"):
		return ErrSecondaryRateLimit
	case strings.Contains(lower, "api rate limit exceeded"),
		strings.Contains(lower, "rate limit already exceeded"):
		return ErrRateLimitExceeded
	case strings.Contains(lower, "could not resolve to"):
		return ErrNotFound
	case strings.Contains(lower, "bad credentials"):
		return ErrUnauthorized
	case strings.Contains(lower, "resource not accessible by integration"),
		strings.Contains(lower, "saml enforcement"):
		return ErrForbidden
	}
	return nil
}

// extractStatusCodeFromError pulls an HTTP status out of error text, which is all
// the GraphQL transport reports for non-200 responses.
func extractStatusCodeFromError(err error) int {
	if err == nil {
		return 0
	}

	errMsg := err.Error()

	statusPatterns := []struct {
		pattern string
		code    int
	}{
		{"500 Internal Server Error", http.StatusInternalServerError},
		{"502 Bad Gateway", http.StatusBadGateway},
		{"503 Service Unavailable", http.StatusServiceUnavailable},
		{"504 Gateway Timeout", http.StatusGatewayTimeout},
		{"429 Too Many Requests", http.StatusTooManyRequests},
		{"403 Forbidden", http.StatusForbidden},
		{"401 Unauthorized", http.StatusUnauthorized},
		{"404 Not Found", http.StatusNotFound},
		{"400 Bad Request", http.StatusBadRequest},
	}

	for _, p := range statusPatterns {
		if strings.Contains(errMsg, p.pattern) {
			return p.code
		}
	}

	return 0
}

// go-github refuses to send requests while it knows the limit is spent:
// "API rate limit of 5000 still exceeded until 2024-01-02 15:04:05 +0000 UTC, not making remote request."
var blockedUntilPattern = regexp.MustCompile(`still exceeded until (.+?), not making remote request`)

// ParseRateLimitResetTime extracts the reset time from a client-side blocked rate limit error
func ParseRateLimitResetTime(err error) (time.Time, bool) {
	if err == nil {
		return time.Time{}, false
	}
	m := blockedUntilPattern.FindStringSubmatch(err.Error())
	if len(m) != 2 {
		return time.Time{}, false
	}
	t, perr := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", m[1])
	if perr != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsRateLimitBlockedError reports whether the client refused to send a request until the limit resets
func IsRateLimitBlockedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not making remote request")
}

// IsSecondaryRateLimitError checks if an error is a secondary (abuse) rate limit error
func IsSecondaryRateLimitError(err error) bool {
	return errors.Is(err, ErrSecondaryRateLimit)
}

// IsRateLimitError checks if an error is a primary rate limit error
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrSecondaryRateLimit) ||
		errors.Is(err, ErrServerError) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return IsRateLimitBlockedError(err)
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
