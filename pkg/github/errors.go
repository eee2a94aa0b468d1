package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// ErrorType represents different categories of GitHub API errors
type ErrorType string

const (
	ErrorTypeAuth      ErrorType = "unauthorized"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeRateLimit ErrorType = "rate_limited"
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeAPI       ErrorType = "api"
)

// Error represents a structured error from GitHub operations
type Error struct {
	Type       ErrorType     `json:"type"`
	Message    string        `json:"message"`
	Cause      error         `json:"-"`
	Resource   string        `json:"resource,omitempty"`
	Status     int           `json:"status,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Retryable  bool          `json:"retryable"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Type == ErrorTypeAPI && e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Resource != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Resource, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether retrying the same call may succeed
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new Error with the specified type and message
func NewError(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableErrorType(errorType),
	}
}

// WrapError maps an error returned by go-github or the transport into an *Error
func WrapError(err error, resource string) *Error {
	if err == nil {
		return nil
	}

	var ghErr *Error
	if errors.As(err, &ghErr) {
		if ghErr.Resource == "" {
			ghErr.Resource = resource
		}
		return ghErr
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &Error{
			Type:       ErrorTypeRateLimit,
			Message:    fmt.Sprintf("rate limit exceeded, resets at %s", rateErr.Rate.Reset.Time.Format(time.Kitchen)),
			Cause:      err,
			Resource:   resource,
			Status:     statusOf(rateErr.Response),
			RetryAfter: positive(time.Until(rateErr.Rate.Reset.Time)),
			Retryable:  true,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &Error{
			Type:       ErrorTypeRateLimit,
			Message:    "secondary rate limit triggered, slow down",
			Cause:      err,
			Resource:   resource,
			Status:     statusOf(abuseErr.Response),
			RetryAfter: abuseErr.GetRetryAfter(),
			Retryable:  true,
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return parseErrorResponse(respErr, resource)
	}

	if isNetworkError(err) {
		return &Error{
			Type:      ErrorTypeNetwork,
			Message:   "network error occurred, check your connection and try again",
			Cause:     err,
			Resource:  resource,
			Retryable: true,
		}
	}

	return &Error{
		Type:     ErrorTypeAPI,
		Message:  err.Error(),
		Cause:    err,
		Resource: resource,
	}
}

// parseErrorResponse classifies a non-2xx GitHub response by status code
func parseErrorResponse(respErr *github.ErrorResponse, resource string) *Error {
	status := statusOf(respErr.Response)
	e := &Error{
		Resource: resource,
		Cause:    respErr,
		Status:   status,
	}

	switch status {
	case http.StatusUnauthorized:
		e.Type = ErrorTypeAuth
		e.Message = "authentication failed, the token is invalid or expired"

	case http.StatusNotFound:
		e.Type = ErrorTypeNotFound
		e.Message = "repository not found"

	case http.StatusForbidden, http.StatusTooManyRequests:
		if isRateLimitResponse(respErr) {
			e.Type = ErrorTypeRateLimit
			e.Message = "rate limit exceeded, wait before retrying"
			e.RetryAfter = retryAfter(respErr.Response)
			e.Retryable = true
			break
		}
		e.Type = ErrorTypeAPI
		e.Message = "forbidden, the token may lack the required scopes"
		if respErr.Message != "" {
			e.Message = respErr.Message
		}

	default:
		e.Type = ErrorTypeAPI
		e.Message = respErr.Message
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		e.Retryable = status >= 500
	}

	return e
}

func isRateLimitResponse(respErr *github.ErrorResponse) bool {
	if respErr.Response != nil {
		if respErr.Response.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if respErr.Response.Header.Get("X-RateLimit-Remaining") == "0" ||
			respErr.Response.Header.Get("Retry-After") != "" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(respErr.Message), "rate limit")
}

// retryAfter reads the wait hint from Retry-After or X-RateLimit-Reset
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return positive(time.Until(time.Unix(ts, 0)))
		}
	}
	return 0
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// isNetworkError checks if an error is a transport-level failure
func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"i/o timeout",
	}
	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// isRetryableErrorType determines if an error type is generally retryable
func isRetryableErrorType(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType of err, or "" when err is not an *Error
func TypeOf(err error) ErrorType {
	var ghErr *Error
	if errors.As(err, &ghErr) {
		return ghErr.Type
	}
	return ""
}

// IsUnauthorized reports whether err means the token was rejected
func IsUnauthorized(err error) bool { return TypeOf(err) == ErrorTypeAuth }

// IsNotFound reports whether err is a 404
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsRateLimited reports whether err is a primary or secondary rate limit
func IsRateLimited(err error) bool { return TypeOf(err) == ErrorTypeRateLimit }

// IsNetwork reports whether err is a transport failure
func IsNetwork(err error) bool { return TypeOf(err) == ErrorTypeNetwork }

// PartialFailureError represents a batch where some unstar calls failed
type PartialFailureError struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []UnstarResult `json:"failed"`
	Message   string         `json:"message"`
}

// Error implements the error interface
func (e *PartialFailureError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("partial failure: %d succeeded, %d failed", len(e.Succeeded), len(e.Failed))
}

// NewPartialFailureError builds a PartialFailureError from batch results, or
// returns nil when every item succeeded
func NewPartialFailureError(results []UnstarResult) *PartialFailureError {
	e := &PartialFailureError{}
	for _, r := range results {
		if r.OK() {
			e.Succeeded = append(e.Succeeded, r.FullName)
		} else {
			e.Failed = append(e.Failed, r)
		}
	}
	if len(e.Failed) == 0 {
		return nil
	}
	e.Message = fmt.Sprintf("unstar completed with partial success: %d succeeded, %d failed",
		len(e.Succeeded), len(e.Failed))
	return e
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, r := range e.Failed {
		errs = append(errs, r.Err)
	}
	return errs
}

// GetFailedOperations returns the names of repositories that failed
func (e *PartialFailureError) GetFailedOperations() []string {
	var names []string
	for _, r := range e.Failed {
		names = append(names, r.FullName)
	}
	return names
}
