package mapper

import (
	"errors"
	"strings"
)

// Error is a low-level mediator error not tied to a particular BiDi
// error code (channel-closed races, malformed frames before an id can
// even be parsed, and the like).
type Error string

// Error satisfies the error interface.
func (e Error) Error() string { return string(e) }

const (
	// ErrChannelClosed is returned when a CDP response channel is
	// closed before a result or error arrives, typically because the
	// underlying connection went away.
	ErrChannelClosed Error = "channel closed"

	// ErrInvalidContext is returned when a command is routed against a
	// Session or CdpTarget that has already been torn down.
	ErrInvalidContext Error = "invalid context"
)

// ErrorCode is one of the BiDi error codes enumerated in the
// specification's external-interface section. The set is exhaustive;
// adding a code here requires adding it to the spec's error table too.
type ErrorCode string

const (
	ErrorCodeInvalidArgument      ErrorCode = "invalid argument"
	ErrorCodeInvalidSelector      ErrorCode = "invalid selector"
	ErrorCodeInvalidSessionID     ErrorCode = "invalid session id"
	ErrorCodeMoveTargetOutOfBound ErrorCode = "move target out of bounds"
	ErrorCodeNoSuchAlert          ErrorCode = "no such alert"
	ErrorCodeNoSuchElement        ErrorCode = "no such element"
	ErrorCodeNoSuchFrame          ErrorCode = "no such frame"
	ErrorCodeNoSuchHandle         ErrorCode = "no such handle"
	ErrorCodeNoSuchHistoryEntry   ErrorCode = "no such history entry"
	ErrorCodeNoSuchIntercept      ErrorCode = "no such intercept"
	ErrorCodeNoSuchNode           ErrorCode = "no such node"
	ErrorCodeNoSuchRequest        ErrorCode = "no such request"
	ErrorCodeNoSuchScript         ErrorCode = "no such script"
	ErrorCodeNoSuchUserContext    ErrorCode = "no such user context"
	ErrorCodeSessionNotCreated    ErrorCode = "session not created"
	ErrorCodeUnknownCommand       ErrorCode = "unknown command"
	ErrorCodeUnknownError         ErrorCode = "unknown error"
	ErrorCodeUnableToCaptureShot  ErrorCode = "unable to capture screen"
	ErrorCodeUnableToCloseBrowser ErrorCode = "unable to close browser"
	ErrorCodeUnsupportedOperation ErrorCode = "unsupported operation"
)

// BiDiError is a sum-typed BiDi error response. It satisfies the error
// interface so it can flow through ordinary Go error returns up to the
// command processor, which is the only place that needs to know about
// the wire shape.
type BiDiError struct {
	Code       ErrorCode
	Message    string
	Stacktrace string
}

func (e *BiDiError) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

// NewError builds a BiDiError with the given code and message.
func NewError(code ErrorCode, message string) *BiDiError {
	return &BiDiError{Code: code, Message: message}
}

// AsBiDiError unwraps err looking for a *BiDiError, the way the
// command processor does before falling back to "unknown error".
func AsBiDiError(err error) (*BiDiError, bool) {
	var be *BiDiError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ToErrorResponse converts any error escaping a command handler into
// the wire-level error response described in §6. Errors that are not
// already a *BiDiError become "unknown error" carrying the original
// message as the stacktrace, per §7.
func ToErrorResponse(id *uint64, err error) ErrorResponse {
	if be, ok := AsBiDiError(err); ok {
		return ErrorResponse{ID: id, Code: be.Code, Message: be.Message, Stacktrace: be.Stacktrace}
	}
	return ErrorResponse{ID: id, Code: ErrorCodeUnknownError, Message: err.Error(), Stacktrace: err.Error()}
}

// ErrorResponse is the wire shape of a BiDi error message (§6):
// {id?, type:"error", error, message, stacktrace?}.
type ErrorResponse struct {
	ID         *uint64   `json:"id,omitempty"`
	Type       string    `json:"type"`
	Code       ErrorCode `json:"error"`
	Message    string    `json:"message"`
	Stacktrace string    `json:"stacktrace,omitempty"`
}

// MarshalJSON fills in the constant "type" discriminator.
func (e ErrorResponse) MarshalJSON() ([]byte, error) {
	type alias ErrorResponse
	a := alias(e)
	a.Type = "error"
	return marshalJSONAlias(a)
}

// isCdpCloseError recognises the family of CDP errors that indicate a
// target or session has simply gone away mid-flight — these are
// treated as benign shutdown races rather than failures (§4.3, §7).
func isCdpCloseError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"target closed",
		"session closed",
		"no target with given id found",
		"not attached to an active page",
		"detached while handling command",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// translateCdpError maps a handful of well-known CDP -32000 messages
// (§7) to their BiDi error code; ok is false when the error doesn't
// match a known translation and should be treated as unknown error.
func translateCdpError(err error) (*BiDiError, bool) {
	if err == nil {
		return nil, false
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Could not find object with given id"),
		strings.Contains(msg, "Argument should belong to the same JavaScript world as target object"),
		strings.Contains(msg, "Invalid remote object id"):
		return NewError(ErrorCodeNoSuchHandle, msg), true
	case strings.Contains(msg, "No node with given id found"):
		return NewError(ErrorCodeNoSuchNode, msg), true
	case strings.Contains(msg, "Width and height values must be positive"):
		return NewError(ErrorCodeUnsupportedOperation, msg), true
	case strings.Contains(msg, "invalid print parameters: content area is empty"):
		return NewError(ErrorCodeUnsupportedOperation, msg), true
	}
	return nil, false
}
