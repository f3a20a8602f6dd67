package precise

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. An *APIError unwraps to exactly one of them, so callers
// can branch with errors.Is(err, precise.ErrRateLimit).
var (
	ErrAPI                = errors.New("vectorstack api error")
	ErrAuthentication     = errors.New("authentication error")
	ErrInternalServer     = errors.New("internal server error")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrMethodNotAllowed   = errors.New("method not allowed")
	ErrTimeout            = errors.New("request timed out")
	ErrBadRequest         = errors.New("bad request")
	ErrNotFound           = errors.New("not found")
	ErrResourceBusy       = errors.New("resource busy")

	// ErrInvalidArgument is returned before any request is sent.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDeletionCancelled is returned when a Confirmer declines a deletion.
	ErrDeletionCancelled = errors.New("deletion cancelled")
)

// errorTypes maps the service's error "type" names to kinds.
var errorTypes = map[string]error{
	"VectorStackAIError":      ErrAPI,
	"AuthenticationError":     ErrAuthentication,
	"InternalServerError":     ErrInternalServer,
	"RateLimitError":          ErrRateLimit,
	"ServiceUnavailableError": ErrServiceUnavailable,
	"MethodNotAllowedError":   ErrMethodNotAllowed,
	"Timeout":                 ErrTimeout,
	"BadRequestError":         ErrBadRequest,
	"NotFoundError":           ErrNotFound,
	"ResourceBusyError":       ErrResourceBusy,
}

// APIError carries everything the service told us about a failed call.
type APIError struct {
	Kind       error
	Message    string
	HTTPStatus int
	Code       string
	RequestID  string
	HTTPBody   string
	JSONBody   map[string]any
	Headers    http.Header
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "<empty message>"
	}
	if e.RequestID != "" {
		return fmt.Sprintf("Request %s: %s", e.RequestID, msg)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	if e.Kind == nil {
		return ErrAPI
	}
	return e.Kind
}

// Retryable reports whether the call may succeed if repeated.
func (e *APIError) Retryable() bool {
	return isRetryable(e)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

type errorEnvelope struct {
	Error *struct {
		Type       string         `json:"type"`
		Message    string         `json:"message"`
		HTTPStatus int            `json:"http_status"`
		Code       string         `json:"code"`
		HTTPBody   string         `json:"http_body"`
		JSONBody   map[string]any `json:"json_body"`
	} `json:"error"`
}

// errorFromResponse builds an *APIError from a non-200 response body.
// Errors raised by the service use the {"error": {...}} envelope; anything
// else (proxies, gateways) is classified by status code.
func errorFromResponse(status int, headers http.Header, body []byte) *APIError {
	requestID := headers.Get("request-id")

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		kind, ok := errorTypes[env.Error.Type]
		if !ok {
			kind = ErrAPI
		}
		httpStatus := env.Error.HTTPStatus
		if httpStatus == 0 {
			httpStatus = status
		}
		return &APIError{
			Kind:       kind,
			Message:    env.Error.Message,
			HTTPStatus: httpStatus,
			Code:       env.Error.Code,
			RequestID:  requestID,
			HTTPBody:   env.Error.HTTPBody,
			JSONBody:   env.Error.JSONBody,
			Headers:    headers,
		}
	}

	apiErr := &APIError{
		Message:    string(body),
		HTTPStatus: status,
		RequestID:  requestID,
		JSONBody:   map[string]any{},
		Headers:    headers,
	}
	switch status {
	case http.StatusMethodNotAllowed:
		apiErr.Kind = ErrMethodNotAllowed
	case http.StatusPaymentRequired:
		apiErr.Kind = ErrBadRequest
	case http.StatusNotFound, http.StatusBadGateway, http.StatusServiceUnavailable:
		apiErr.Kind = ErrServiceUnavailable
	case http.StatusTooManyRequests:
		apiErr.Kind = ErrRateLimit
	default:
		apiErr.Kind = ErrAPI
		apiErr.Message = "Unexpected error: " + string(body)
	}
	return apiErr
}
