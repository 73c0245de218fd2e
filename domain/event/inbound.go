// Package event defines the closed set of events crossing the realtime
// boundary. Inbound events decode into one typed struct per kind; anything
// outside the set is a decode error, never silently dropped.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "adopt-realtime/errors"
)

// Wire names of the inbound events.
const (
	NameJoinChat                = "join_chat"
	NameLeaveChat               = "leave_chat"
	NameTypingStart             = "typing_start"
	NameTypingStop              = "typing_stop"
	NameMarkAsRead              = "mark_as_read"
	NameAddReaction             = "add_reaction"
	NameRemoveReaction          = "remove_reaction"
	NameGetPresence             = "get_presence"
	NameUpdatePresence          = "update_presence"
	NameMessageSentNotification = "message_sent_notification"
	NameSendMessage             = "send_message"
)

// Inbound is the closed set of client-to-server events.
type Inbound interface {
	EventName() string
}

type JoinChat struct {
	ChatID string `json:"chatId" validate:"required"`
}

type LeaveChat struct {
	ChatID string `json:"chatId" validate:"required"`
}

type TypingStart struct {
	ChatID    string `json:"chatId" validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type TypingStop struct {
	ChatID string `json:"chatId" validate:"required"`
}

type MarkAsRead struct {
	ChatID string `json:"chatId" validate:"required"`
}

type AddReaction struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
}

type RemoveReaction struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
}

type GetPresence struct {
	UserIDs []string `json:"userIds" validate:"required"`
}

type UpdatePresence struct {
	Status string `json:"status" validate:"required,oneof=online away"`
}

// MessageSentNotification signals that the REST path already persisted a
// message; this layer only fans the notification out to the room.
type MessageSentNotification struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	TempID         string `json:"tempId"`
}

// SendMessage is the legacy direct-send path.
//
// Deprecated: message creation belongs to the Conversation Store; new
// clients should persist through REST and emit MessageSentNotification.
type SendMessage struct {
	ChatID      string `json:"chatId" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ContentType string `json:"messageType"`
}

func (JoinChat) EventName() string                { return NameJoinChat }
func (LeaveChat) EventName() string               { return NameLeaveChat }
func (TypingStart) EventName() string             { return NameTypingStart }
func (TypingStop) EventName() string              { return NameTypingStop }
func (MarkAsRead) EventName() string              { return NameMarkAsRead }
func (AddReaction) EventName() string             { return NameAddReaction }
func (RemoveReaction) EventName() string          { return NameRemoveReaction }
func (GetPresence) EventName() string             { return NameGetPresence }
func (UpdatePresence) EventName() string          { return NameUpdatePresence }
func (MessageSentNotification) EventName() string { return NameMessageSentNotification }
func (SendMessage) EventName() string             { return NameSendMessage }

// DecodeError reports which inbound event failed to decode so the error
// reply can name it.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var validate = validator.New()

// Decode parses one wire frame {event, data} into its typed inbound event.
// Unknown event names and payloads failing validation are both decode
// errors; the dispatcher answers them with a scoped error reply.
func Decode(raw []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &DecodeError{Event: "unknown", Err: apperrors.ErrMalformedPayload}
	}
	if f.Event == "" {
		return nil, &DecodeError{Event: "unknown", Err: apperrors.ErrMalformedPayload}
	}

	switch f.Event {
	case NameJoinChat:
		return decodeInto(f, &JoinChat{})
	case NameLeaveChat:
		return decodeInto(f, &LeaveChat{})
	case NameTypingStart:
		return decodeInto(f, &TypingStart{})
	case NameTypingStop:
		return decodeInto(f, &TypingStop{})
	case NameMarkAsRead:
		return decodeInto(f, &MarkAsRead{})
	case NameAddReaction:
		return decodeInto(f, &AddReaction{})
	case NameRemoveReaction:
		return decodeInto(f, &RemoveReaction{})
	case NameGetPresence:
		return decodeInto(f, &GetPresence{})
	case NameUpdatePresence:
		return decodeInto(f, &UpdatePresence{})
	case NameMessageSentNotification:
		return decodeInto(f, &MessageSentNotification{})
	case NameSendMessage:
		return decodeInto(f, &SendMessage{})
	default:
		return nil, &DecodeError{Event: f.Event, Err: apperrors.ErrUnknownEvent}
	}
}

func decodeInto(f frame, target Inbound) (Inbound, error) {
	if len(f.Data) > 0 && string(f.Data) != "null" {
		if err := json.Unmarshal(f.Data, target); err != nil {
			return nil, &DecodeError{Event: f.Event, Err: apperrors.ErrMalformedPayload}
		}
	}
	if err := validate.Struct(target); err != nil {
		return nil, &DecodeError{Event: f.Event, Err: fmt.Errorf("%w: %v", apperrors.ErrMalformedPayload, err)}
	}
	return target, nil
}
