package workspace

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the workspace API.
const (
	CodeNotFound        = "RESOURCE_DOES_NOT_EXIST"
	CodeAlreadyExists   = "RESOURCE_ALREADY_EXISTS"
	CodeInvalidArgument = "INVALID_PARAMETER_VALUE"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL_ERROR"
)

// NotFoundError reports a dashboard or workspace path that does not exist.
// Message, when set, is the text reported by the workspace.
type NotFoundError struct {
	// Resource is the path or dashboard id that was looked up
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " does not exist"
}

// APIError is any other failure reported by the workspace.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	code := e.ErrorCode
	if code == "" {
		code = http.StatusText(e.StatusCode)
	}
	if e.Message == "" {
		return fmt.Sprintf("workspace error %d (%s)", e.StatusCode, code)
	}
	return fmt.Sprintf("workspace error %d (%s): %s", e.StatusCode, code, e.Message)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// errorBody is the JSON error payload of the API.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func invalidArgument(format string, args ...any) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeInvalidArgument,
		Message:    fmt.Sprintf(format, args...),
	}
}
