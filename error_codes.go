package llmrt

import "fmt"

// Error codes for programmatic handling, grouped by the §7 taxonomy they
// belong to. Pruned of the teacher's RAG/Memory/Embedding codes, which have
// no home in this core's scope.
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeAuthentication      = "AUTHENTICATION_ERROR"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeTransientUpstream   = "TRANSIENT_UPSTREAM"
	ErrCodeBadUpstream         = "BAD_UPSTREAM"
	ErrCodeStreamInterrupted   = "STREAM_INTERRUPTED"
	ErrCodeToolHistory         = "TOOL_HISTORY_ERROR"
	ErrCodeCancelled           = "CANCELLED"
	ErrCodeFatal               = "FATAL"
	ErrCodeCacheOperationFailed = "CACHE_OPERATION_FAILED"
)

// CodedError pairs a short machine-readable code with a human message,
// mirroring the teacher's CodedError shape.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error { return e.Err }

func NewCodedError(code, message string, err error) *CodedError {
	return &CodedError{Code: code, Message: message, Err: err}
}

// CodeForKind maps an ErrorKind to its error code.
func CodeForKind(kind ErrorKind) string {
	switch kind {
	case KindInvalidRequest:
		return ErrCodeInvalidRequest
	case KindConfigurationError:
		return ErrCodeConfiguration
	case KindAuthenticationError:
		return ErrCodeAuthentication
	case KindRateLimited:
		return ErrCodeRateLimited
	case KindTransientUpstream:
		return ErrCodeTransientUpstream
	case KindBadUpstream:
		return ErrCodeBadUpstream
	case KindStreamInterrupted:
		return ErrCodeStreamInterrupted
	case KindToolHistoryError:
		return ErrCodeToolHistory
	case KindCancelled:
		return ErrCodeCancelled
	default:
		return ErrCodeFatal
	}
}

// IsCodedError reports whether err is a *CodedError.
func IsCodedError(err error) bool {
	_, ok := err.(*CodedError)
	return ok
}

// LogFields converts an APIError into structured log fields, omitting any
// field that could carry a secret (no header values, no token contents).
func (e *APIError) LogFields() []Field {
	fields := []Field{
		F("kind", string(e.Kind)),
		F("code", CodeForKind(e.Kind)),
		F("provider", e.Provider),
		F("retryable", IsRetryableKind(e.Kind)),
	}
	if e.StatusCode > 0 {
		fields = append(fields, F("status_code", e.StatusCode))
	}
	if e.RequestID != "" {
		fields = append(fields, F("request_id", e.RequestID))
	}
	return fields
}
