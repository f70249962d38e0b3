package api

import "fmt"

// Error represents an API error with its JSON-RPC code
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// invalidParams wraps a params decoding or validation failure
func invalidParams(format string, args ...interface{}) *Error {
	return NewError(ErrInvalidParams, "Invalid params: "+fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}
