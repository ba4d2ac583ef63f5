package domain

import "time"

// ChatType classifies a conversation.
type ChatType string

const (
	ChatTypeIndividual ChatType = "INDIVIDUAL"
	ChatTypeGroup      ChatType = "GROUP"
	ChatTypeEvent      ChatType = "EVENT"
	ChatTypeCommunity  ChatType = "COMMUNITY"
)

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeIndividual, ChatTypeGroup, ChatTypeEvent, ChatTypeCommunity:
		return true
	}
	return false
}

// ParticipantRole is a participant's role inside a chat.
type ParticipantRole string

const (
	RoleAdmin     ParticipantRole = "ADMIN"
	RoleModerator ParticipantRole = "MODERATOR"
	RoleMember    ParticipantRole = "MEMBER"
)

// MessageType classifies a chat message.
type MessageType string

const (
	MessageTypeDirect    MessageType = "DIRECT"
	MessageTypeEventChat MessageType = "EVENT_CHAT"
	MessageTypeSystem    MessageType = "SYSTEM"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeDirect, MessageTypeEventChat, MessageTypeSystem:
		return true
	}
	return false
}

// DefaultMessageType picks the message type implied by the chat type.
func DefaultMessageType(t ChatType) MessageType {
	if t == ChatTypeEvent {
		return MessageTypeEventChat
	}
	return MessageTypeDirect
}

// InvitationStatus is the state of a chat invitation. Every status other
// than PENDING is terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// User is the read-only view of an account owned by the identity component.
type User struct {
	ID        string
	Role      string
	FirstName string
	LastName  string
	Avatar    string
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Chat is a conversation.
type Chat struct {
	ID            string
	Type          ChatType
	Name          string
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

// Participant is a persisted membership row.
type Participant struct {
	ChatID   string
	UserID   string
	Role     ParticipantRole
	JoinedAt time.Time
}

// Message is an append-only chat message.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	Type      MessageType
	CreatedAt time.Time
}

// Invitation invites a user into a chat.
type Invitation struct {
	ID          string
	ChatID      string
	InviterID   string
	InviteeID   string
	Status      InvitationStatus
	Message     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time
}

// Expired reports whether the invitation can no longer be answered at now.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// SenderInfo is the public profile embedded in message payloads.
type SenderInfo struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar,omitempty"`
}

// NewSenderInfo builds the sender payload, falling back to the bare id when
// the profile is unknown.
func NewSenderInfo(id string, u *User) SenderInfo {
	if u == nil {
		return SenderInfo{ID: id}
	}
	return SenderInfo{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar}
}

// MessagePayload is the wire shape of a chat message.
type MessagePayload struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	SenderID  string      `json:"senderId"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	Sender    SenderInfo  `json:"sender"`
}

// ToPayload renders a message with its sender profile.
func (m *Message) ToPayload(sender *User) MessagePayload {
	return MessagePayload{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		Sender:    NewSenderInfo(m.SenderID, sender),
	}
}

// InvitationPayload is the wire shape of an invitation.
type InvitationPayload struct {
	ID        string           `json:"id"`
	ChatID    string           `json:"chatId"`
	InviterID string           `json:"inviterId"`
	InviteeID string           `json:"inviteeId"`
	Status    InvitationStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// ToPayload renders the invitation for clients.
func (i *Invitation) ToPayload() InvitationPayload {
	return InvitationPayload{
		ID:        i.ID,
		ChatID:    i.ChatID,
		InviterID: i.InviterID,
		InviteeID: i.InviteeID,
		Status:    i.Status,
		Message:   i.Message,
		CreatedAt: i.CreatedAt,
		ExpiresAt: i.ExpiresAt,
	}
}

// ChatPayload is the wire shape of a chat summary.
type ChatPayload struct {
	ID            string     `json:"id"`
	Type          ChatType   `json:"type"`
	Name          string     `json:"name,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ToPayload renders the chat for clients.
func (c *Chat) ToPayload() ChatPayload {
	return ChatPayload{
		ID:            c.ID,
		Type:          c.Type,
		Name:          c.Name,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}
