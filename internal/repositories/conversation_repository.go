package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"
)

type MySQLConversationRepository struct {
	db *sql.DB
}

func NewMySQLConversationRepository(db *sql.DB) *MySQLConversationRepository {
	return &MySQLConversationRepository{db: db}
}

func (r *MySQLConversationRepository) GetByChatID(orgID int64, sessionID int64, externalChatID string) (*models.Conversation, error) {
	query := `
		SELECT
			id, org_id, session_id, contact_id, external_chat_id, channel_type,
			name, avatar_url, message_count, unread_count,
			first_message_at, last_message_at, created_at, updated_at
		FROM conversations
		WHERE org_id = ? AND session_id = ? AND external_chat_id = ?`

	conversation := &models.Conversation{}
	var contactID sql.NullInt64
	var name, avatarURL sql.NullString
	var firstMessageAt, lastMessageAt sql.NullTime

	err := r.db.QueryRow(query, orgID, sessionID, externalChatID).Scan(
		&conversation.ID,
		&conversation.OrgID,
		&conversation.SessionID,
		&contactID,
		&conversation.ExternalChatID,
		&conversation.ChannelType,
		&name,
		&avatarURL,
		&conversation.MessageCount,
		&conversation.UnreadCount,
		&firstMessageAt,
		&lastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting conversation: %v", err)
	}

	if contactID.Valid {
		conversation.ContactID = &contactID.Int64
	}
	conversation.Name = name.String
	conversation.AvatarURL = avatarURL.String
	if firstMessageAt.Valid {
		conversation.FirstMessageAt = &firstMessageAt.Time
	}
	if lastMessageAt.Valid {
		conversation.LastMessageAt = &lastMessageAt.Time
	}

	return conversation, nil
}

func (r *MySQLConversationRepository) Create(conversation *models.Conversation) error {
	query := `
		INSERT INTO conversations (
			org_id, session_id, contact_id, external_chat_id, channel_type,
			name, avatar_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	result, err := r.db.Exec(query,
		conversation.OrgID,
		conversation.SessionID,
		utils.NullInt64(conversation.ContactID),
		conversation.ExternalChatID,
		conversation.ChannelType,
		utils.NullString(conversation.Name),
		utils.NullString(conversation.AvatarURL),
	)
	if err != nil {
		if isDuplicateKey(err) {
			// Entrega concorrente criou a conversa primeiro; reaproveitar
			existing, getErr := r.GetByChatID(conversation.OrgID, conversation.SessionID, conversation.ExternalChatID)
			if getErr != nil {
				return getErr
			}
			if existing != nil {
				*conversation = *existing
				return nil
			}
		}
		return fmt.Errorf("error saving conversation: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting last insert id: %v", err)
	}

	conversation.ID = id
	return nil
}

// RegisterMessage aplica os contadores direto no banco, nunca
// read-modify-write em memória: entregas concorrentes do webhook para a
// mesma conversa não podem perder incrementos.
func (r *MySQLConversationRepository) RegisterMessage(id int64, at time.Time, inbound bool) error {
	unread := 0
	if inbound {
		unread = 1
	}
	_, err := r.db.Exec(`
		UPDATE conversations
		SET message_count = message_count + 1,
			unread_count = unread_count + ?,
			first_message_at = COALESCE(first_message_at, ?),
			last_message_at = ?,
			updated_at = NOW()
		WHERE id = ?`,
		unread, at, at, id)
	return err
}

func (r *MySQLConversationRepository) UpdateDisplay(id int64, name string, avatarURL string) error {
	_, err := r.db.Exec(`
		UPDATE conversations
		SET name = COALESCE(NULLIF(?, ''), name),
			avatar_url = COALESCE(NULLIF(?, ''), avatar_url),
			updated_at = NOW()
		WHERE id = ?`,
		name, avatarURL, id)
	return err
}
