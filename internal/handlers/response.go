package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
)

// ErrorBody is the error half of an action response
type ErrorBody struct {
	Type       errors.ErrorType `json:"type"`
	Message    string           `json:"message"`
	StatusCode int              `json:"status_code,omitempty"`
	Body       string           `json:"body,omitempty"`
}

// Response is the envelope returned by the CLI and the HTTP surface
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// NewErrorBody describes err for callers. StatusCode is the remote status, if any.
func NewErrorBody(err error) *ErrorBody {
	body := &ErrorBody{
		Type:    errors.GetType(err),
		Message: err.Error(),
	}
	if appErr, ok := errors.As(err); ok {
		// Keep the batch/page prefix added by the dispatcher
		if appErr == err {
			body.Message = appErr.Message
		}
		body.StatusCode = appErr.StatusCode
		body.Body = appErr.Body
	}
	return body
}

// StatusFor maps an error to the HTTP status returned by the serve mode
func StatusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrTypeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrTypeAuth, errors.ErrTypeRemote:
		return http.StatusBadGateway
	case errors.ErrTypeTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error response
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, StatusFor(err), Response{Error: NewErrorBody(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response", logging.Err(err))
	}
}
