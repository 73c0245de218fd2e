package errors

import (
	"errors"
	"fmt"
)

// Connection-level failures. Any of these refuses the connection outright;
// no partially-authenticated state is ever observable.
var (
	ErrMissingCredential = fmt.Errorf("authentication token required")
	ErrInvalidCredential = fmt.Errorf("invalid authentication token")
	ErrExpiredCredential = fmt.Errorf("authentication token expired")
)

// Operation-level failures. These are answered to the offending connection
// only and never broadcast.
var (
	ErrAccessDenied     = fmt.Errorf("not a participant of this conversation")
	ErrUnknownEvent     = fmt.Errorf("unknown event")
	ErrMalformedPayload = fmt.Errorf("malformed event payload")
)

// UpstreamError wraps a Conversation Store failure. The operation is
// aborted and reported to the caller, but the process keeps running.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("conversation store: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err must refuse the connection instead of
// producing a soft error event.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrExpiredCredential)
}

// Reply is the uniform error payload sent back to the connection whose
// event failed. Other participants never see it.
type Reply struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// MapToReply converts an internal error into the wire error reply for the
// named inbound event.
func MapToReply(event string, err error) Reply {
	reply := Reply{Event: event, Error: err.Error()}

	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrAccessDenied):
		reply.Message = "access denied"
	case errors.Is(err, ErrUnknownEvent):
		reply.Message = "unknown event"
	case errors.Is(err, ErrMalformedPayload):
		reply.Message = "invalid payload"
	case errors.As(err, &upstream):
		reply.Message = "operation failed"
	default:
		reply.Message = "internal error"
	}
	return reply
}
