package llmrt

import (
	"errors"
	"fmt"
)

// ErrorKind is the ten-member taxonomy of §7.
type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "InvalidRequest"
	KindConfigurationError ErrorKind = "ConfigurationError"
	KindAuthenticationError ErrorKind = "AuthenticationError"
	KindRateLimited        ErrorKind = "RateLimited"
	KindTransientUpstream  ErrorKind = "TransientUpstream"
	KindBadUpstream        ErrorKind = "BadUpstream"
	KindStreamInterrupted  ErrorKind = "StreamInterrupted"
	KindToolHistoryError   ErrorKind = "ToolHistoryError"
	KindCancelled          ErrorKind = "Cancelled"
	KindFatal              ErrorKind = "Fatal"
)

// APIError is the system's primary error wrapper. Every user-visible error
// string includes provider, status code (when known), a one-sentence
// cause, and the sanitized request identifier — never secrets.
type APIError struct {
	Kind       ErrorKind
	Provider   string
	Message    string
	StatusCode int
	RetryAfter int // seconds, 0 if not supplied by the provider
	RequestID  string
	Err        error
}

func (e *APIError) Error() string {
	parts := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Provider != "" {
		parts = fmt.Sprintf("[%s] %s", e.Provider, parts)
	}
	if e.StatusCode > 0 {
		parts = fmt.Sprintf("%s (status %d)", parts, e.StatusCode)
	}
	if e.RequestID != "" {
		parts = fmt.Sprintf("%s [request_id=%s]", parts, e.RequestID)
	}
	return parts
}

func (e *APIError) Unwrap() error { return e.Err }

func NewAPIError(kind ErrorKind, provider, message string, statusCode int, err error) *APIError {
	return &APIError{Kind: kind, Provider: provider, Message: message, StatusCode: statusCode, Err: err}
}

// IsKind reports whether err is (or wraps) an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsRetryableKind reports whether the propagation policy (§7) permits
// retrying an error of this kind. BadUpstream, InvalidRequest,
// ConfigurationError, ToolHistoryError, Cancelled, and Fatal are never
// retried; RateLimited, TransientUpstream, and StreamInterrupted are.
func IsRetryableKind(kind ErrorKind) bool {
	switch kind {
	case KindRateLimited, KindTransientUpstream, KindStreamInterrupted:
		return true
	default:
		return false
	}
}

var (
	// ErrEmptyContents is raised when ProviderCallOptions.contents is empty.
	ErrEmptyContents = errors.New("call options contain no contents")

	// ErrUnknownProvider is raised when providerName does not resolve to a
	// registered adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrCancelled is raised when a call's cancellation token is tripped.
	ErrCancelled = errors.New("call cancelled")

	// ErrNoCredential is raised when no auth-key/auth-keyfile/OAuth token
	// can be resolved for a call.
	ErrNoCredential = errors.New("no credential resolvable for provider")

	// ErrBothProfileFlags describes an inline profile and a profile-load
	// reference supplied together (§8.g). No function in this module
	// returns it or checks for that case.
	ErrBothProfileFlags = errors.New("--profile and --profile-load are mutually exclusive")
)

func NewInvalidRequest(provider, message string) *APIError {
	return NewAPIError(KindInvalidRequest, provider, message, 0, nil)
}

func NewConfigurationError(provider, message string, err error) *APIError {
	return NewAPIError(KindConfigurationError, provider, message, 0, err)
}

func NewAuthenticationError(provider, message string, statusCode int, err error) *APIError {
	return NewAPIError(KindAuthenticationError, provider, message, statusCode, err)
}

func NewRateLimited(provider string, retryAfter int, err error) *APIError {
	return &APIError{
		Kind:       KindRateLimited,
		Provider:   provider,
		Message:    "rate limit exceeded",
		StatusCode: 429,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

func NewTransientUpstream(provider string, statusCode int, err error) *APIError {
	return NewAPIError(KindTransientUpstream, provider, "transient upstream failure", statusCode, err)
}

func NewBadUpstream(provider string, statusCode int, err error) *APIError {
	return NewAPIError(KindBadUpstream, provider, "bad request rejected by upstream", statusCode, err)
}

func NewStreamInterrupted(provider string, err error) *APIError {
	return NewAPIError(KindStreamInterrupted, provider, "stream interrupted mid-response", 0, err)
}

func NewToolHistoryError(provider, message string) *APIError {
	return NewAPIError(KindToolHistoryError, provider, message, 0, nil)
}

func NewCancelled(provider string) *APIError {
	return NewAPIError(KindCancelled, provider, "call cancelled", 0, ErrCancelled)
}

func NewFatal(provider string, err error) *APIError {
	return NewAPIError(KindFatal, provider, "unclassified failure", 0, err)
}
