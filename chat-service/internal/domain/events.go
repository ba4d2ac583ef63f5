package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentLength bounds a message body in runes.
const MaxContentLength = 4000

// Client -> server command types.
const (
	CmdJoinRoom          = "joinRoom"
	CmdLeaveRoom         = "leaveRoom"
	CmdSendMessage       = "sendMessage"
	CmdRespondInvitation = "respondInvitation"
	CmdTypingStart       = "typingStart"
	CmdTypingStop        = "typingStop"
	CmdPing              = "ping"
)

// Server -> client event types.
const (
	EventMessage            = "message"
	EventInvitationReceived = "invitationReceived"
	EventInvitationAccepted = "invitationAccepted"
	EventInvitationDeclined = "invitationDeclined"
	EventUserTyping         = "userTyping"
	EventUserStoppedTyping  = "userStoppedTyping"
	EventRoomJoined         = "roomJoined"
	EventRoomLeft           = "roomLeft"
	EventError              = "error"
	EventPong               = "pong"
)

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command is a validated client request.
type Command interface {
	CommandType() string
	Validate() error
}

type JoinRoomCommand struct {
	ChatID string `json:"chatId"`
}

func (*JoinRoomCommand) CommandType() string { return CmdJoinRoom }

func (c *JoinRoomCommand) Validate() error { return requireChatID(c.ChatID) }

type LeaveRoomCommand struct {
	ChatID string `json:"chatId"`
}

func (*LeaveRoomCommand) CommandType() string { return CmdLeaveRoom }

func (c *LeaveRoomCommand) Validate() error { return requireChatID(c.ChatID) }

type SendMessageCommand struct {
	ChatID          string      `json:"chatId"`
	Content         string      `json:"content"`
	Type            MessageType `json:"type,omitempty"`
	ClientMessageID string      `json:"clientMessageId,omitempty"`
}

func (*SendMessageCommand) CommandType() string { return CmdSendMessage }

func (c *SendMessageCommand) Validate() error {
	if err := requireChatID(c.ChatID); err != nil {
		return err
	}
	return ValidateContent(c.Content, c.Type)
}

type RespondInvitationCommand struct {
	InvitationID string           `json:"invitationId"`
	Response     InvitationStatus `json:"response"`
}

func (*RespondInvitationCommand) CommandType() string { return CmdRespondInvitation }

func (c *RespondInvitationCommand) Validate() error {
	if strings.TrimSpace(c.InvitationID) == "" {
		return fmt.Errorf("%w: invitationId is required", ErrValidation)
	}
	return ValidateResponse(c.Response)
}

type TypingStartCommand struct {
	ChatID string `json:"chatId"`
}

func (*TypingStartCommand) CommandType() string { return CmdTypingStart }

func (c *TypingStartCommand) Validate() error { return requireChatID(c.ChatID) }

type TypingStopCommand struct {
	ChatID string `json:"chatId"`
}

func (*TypingStopCommand) CommandType() string { return CmdTypingStop }

func (c *TypingStopCommand) Validate() error { return requireChatID(c.ChatID) }

type PingCommand struct{}

func (*PingCommand) CommandType() string { return CmdPing }

func (*PingCommand) Validate() error { return nil }

// DecodeCommand parses and validates one inbound frame.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", ErrValidation)
	}

	var cmd Command
	switch env.Type {
	case CmdJoinRoom:
		cmd = &JoinRoomCommand{}
	case CmdLeaveRoom:
		cmd = &LeaveRoomCommand{}
	case CmdSendMessage:
		cmd = &SendMessageCommand{}
	case CmdRespondInvitation:
		cmd = &RespondInvitationCommand{}
	case CmdTypingStart:
		cmd = &TypingStartCommand{}
	case CmdTypingStop:
		cmd = &TypingStopCommand{}
	case CmdPing:
		cmd = &PingCommand{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrValidation, env.Type)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, cmd); err != nil {
			return nil, fmt.Errorf("%w: malformed %s payload", ErrValidation, env.Type)
		}
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ValidateContent checks a message body and the requested type.
func ValidateContent(content string, t MessageType) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrValidation, MaxContentLength)
	}
	if t != "" && (!t.Valid() || t == MessageTypeSystem) {
		return fmt.Errorf("%w: unsupported message type %q", ErrValidation, t)
	}
	return nil
}

// ValidateResponse accepts only the two answers a user can give.
func ValidateResponse(r InvitationStatus) error {
	if r != InvitationAccepted && r != InvitationDeclined {
		return fmt.Errorf("%w: response must be ACCEPTED or DECLINED", ErrValidation)
	}
	return nil
}

func requireChatID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: chatId is required", ErrValidation)
	}
	return nil
}

// Event is a server-originated frame.
type Event interface {
	EventType() string
}

type MessageEvent struct {
	MessagePayload
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

func (*MessageEvent) EventType() string { return EventMessage }

type InvitationReceivedEvent struct {
	Invitation InvitationPayload `json:"invitation"`
}

func (*InvitationReceivedEvent) EventType() string { return EventInvitationReceived }

// InvitationResponseEvent tells the inviter how an invitation was answered.
type InvitationResponseEvent struct {
	InvitationID string           `json:"invitationId"`
	ChatID       string           `json:"chatId"`
	InviteeID    string           `json:"inviteeId"`
	Status       InvitationStatus `json:"status"`
}

func (e *InvitationResponseEvent) EventType() string {
	if e.Status == InvitationAccepted {
		return EventInvitationAccepted
	}
	return EventInvitationDeclined
}

// TypingEvent announces that a user started or stopped typing.
type TypingEvent struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Typing      bool   `json:"-"`
}

func (e *TypingEvent) EventType() string {
	if e.Typing {
		return EventUserTyping
	}
	return EventUserStoppedTyping
}

type RoomJoinedEvent struct {
	ChatID string `json:"chatId"`
}

func (*RoomJoinedEvent) EventType() string { return EventRoomJoined }

type RoomLeftEvent struct {
	ChatID string `json:"chatId"`
}

func (*RoomLeftEvent) EventType() string { return EventRoomLeft }

// ErrorEvent reports a failed command to the originating connection. Failed
// sends echo the unsent content so the client can restore its input.
type ErrorEvent struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	Command         string `json:"command,omitempty"`
	ChatID          string `json:"chatId,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
	Content         string `json:"content,omitempty"`
}

func (*ErrorEvent) EventType() string { return EventError }

type PongEvent struct{}

func (*PongEvent) EventType() string { return EventPong }

// EncodeEvent renders an event inside its envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Data: data})
}
