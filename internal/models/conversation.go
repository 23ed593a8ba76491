package models

import "time"

// Tipo de canal derivado do sufixo do endereço do chat no gateway.
const (
	ChannelIndividual = "individual"
	ChannelGroup      = "group"
	ChannelChannel    = "channel"
)

type Conversation struct {
	ID             int64      `json:"id"`
	OrgID          int64      `json:"org_id"`
	SessionID      int64      `json:"session_id"`
	ContactID      *int64     `json:"contact_id"`
	ExternalChatID string     `json:"external_chat_id"`
	ChannelType    string     `json:"channel_type"`
	Name           string     `json:"name"`
	AvatarURL      string     `json:"avatar_url"`
	MessageCount   int64      `json:"message_count"`
	UnreadCount    int64      `json:"unread_count"`
	FirstMessageAt *time.Time `json:"first_message_at"`
	LastMessageAt  *time.Time `json:"last_message_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ConversationRepository interface {
	GetByChatID(orgID int64, sessionID int64, externalChatID string) (*Conversation, error)
	Create(conversation *Conversation) error
	// RegisterMessage aplica os contadores de forma atômica no banco:
	// message_count sempre, unread_count apenas para mensagens recebidas.
	RegisterMessage(id int64, at time.Time, inbound bool) error
	UpdateDisplay(id int64, name string, avatarURL string) error
}
