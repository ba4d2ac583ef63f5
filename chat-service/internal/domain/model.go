package domain

import "time"

// UserModel maps the users table owned by the identity component. Chat code
// only reads it.
type UserModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Role      string    `gorm:"type:varchar(20)"`
	FirstName string    `gorm:"type:varchar(100)"`
	LastName  string    `gorm:"type:varchar(100)"`
	Avatar    string    `gorm:"type:varchar(500)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:        m.ID,
		Role:      m.Role,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Avatar:    m.Avatar,
	}
}

// ChatModel is the GORM model for the chats table.
type ChatModel struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	Type          string     `gorm:"type:varchar(20);not null"`
	Name          string     `gorm:"type:varchar(200)"`
	LastMessageAt *time.Time `gorm:"index"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ChatModel.
func (ChatModel) TableName() string {
	return "chats"
}

// ToDomain converts ChatModel to domain Chat.
func (m *ChatModel) ToDomain() *Chat {
	return &Chat{
		ID:            m.ID,
		Type:          ChatType(m.Type),
		Name:          m.Name,
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
	}
}

// ChatToModel converts domain Chat to ChatModel.
func ChatToModel(c *Chat) *ChatModel {
	return &ChatModel{
		ID:            c.ID,
		Type:          string(c.Type),
		Name:          c.Name,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

// ChatParticipantModel is the GORM model for chat_participants. The composite
// primary key keeps one row per (chat, user).
type ChatParticipantModel struct {
	ChatID   string    `gorm:"type:varchar(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(36);primaryKey;index"`
	Role     string    `gorm:"type:varchar(20);not null;default:'MEMBER'"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ChatParticipantModel.
func (ChatParticipantModel) TableName() string {
	return "chat_participants"
}

// ToDomain converts ChatParticipantModel to domain Participant.
func (m *ChatParticipantModel) ToDomain() *Participant {
	return &Participant{
		ChatID:   m.ChatID,
		UserID:   m.UserID,
		Role:     ParticipantRole(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

// ParticipantToModel converts domain Participant to ChatParticipantModel.
func ParticipantToModel(p *Participant) *ChatParticipantModel {
	return &ChatParticipantModel{
		ChatID:   p.ChatID,
		UserID:   p.UserID,
		Role:     string(p.Role),
		JoinedAt: p.JoinedAt,
	}
}

// ChatMessageModel is the GORM model for chat_messages. Rows are never updated.
type ChatMessageModel struct {
	ID        string    `gorm:"type:varchar(32);primaryKey"`
	ChatID    string    `gorm:"type:varchar(36);not null;index:idx_chat_messages_chat_created,priority:1"`
	SenderID  string    `gorm:"type:varchar(36);not null;index"`
	Content   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_chat_messages_chat_created,priority:2"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts ChatMessageModel to domain Message.
func (m *ChatMessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      MessageType(m.Type),
		CreatedAt: m.CreatedAt,
	}
}

// MessageToModel converts domain Message to ChatMessageModel.
func MessageToModel(msg *Message) *ChatMessageModel {
	return &ChatMessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      string(msg.Type),
		CreatedAt: msg.CreatedAt,
	}
}

// MessageReadModel records that a user has read a message.
type MessageReadModel struct {
	MessageID string    `gorm:"type:varchar(32);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	ReadAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for MessageReadModel.
func (MessageReadModel) TableName() string {
	return "chat_message_reads"
}

// ChatInvitationModel is the GORM model for chat_invitations.
type ChatInvitationModel struct {
	ID          string    `gorm:"type:varchar(26);primaryKey"`
	ChatID      string    `gorm:"type:varchar(36);not null;index"`
	InviterID   string    `gorm:"type:varchar(36);not null"`
	InviteeID   string    `gorm:"type:varchar(36);not null;index"`
	Status      string    `gorm:"type:varchar(20);not null;index:idx_chat_invitations_status_expires,priority:1"`
	Message     string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index:idx_chat_invitations_status_expires,priority:2"`
	RespondedAt *time.Time
}

// TableName specifies the table name for ChatInvitationModel.
func (ChatInvitationModel) TableName() string {
	return "chat_invitations"
}

// ToDomain converts ChatInvitationModel to domain Invitation.
func (m *ChatInvitationModel) ToDomain() *Invitation {
	return &Invitation{
		ID:          m.ID,
		ChatID:      m.ChatID,
		InviterID:   m.InviterID,
		InviteeID:   m.InviteeID,
		Status:      InvitationStatus(m.Status),
		Message:     m.Message,
		CreatedAt:   m.CreatedAt,
		ExpiresAt:   m.ExpiresAt,
		RespondedAt: m.RespondedAt,
	}
}

// InvitationToModel converts domain Invitation to ChatInvitationModel.
func InvitationToModel(i *Invitation) *ChatInvitationModel {
	return &ChatInvitationModel{
		ID:          i.ID,
		ChatID:      i.ChatID,
		InviterID:   i.InviterID,
		InviteeID:   i.InviteeID,
		Status:      string(i.Status),
		Message:     i.Message,
		CreatedAt:   i.CreatedAt,
		ExpiresAt:   i.ExpiresAt,
		RespondedAt: i.RespondedAt,
	}
}

// Models lists every table chat migrates.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&ChatModel{},
		&ChatParticipantModel{},
		&ChatMessageModel{},
		&MessageReadModel{},
		&ChatInvitationModel{},
	}
}
