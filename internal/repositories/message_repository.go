package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"

	"github.com/go-sql-driver/mysql"
)

type MySQLMessageRepository struct {
	db *sql.DB
}

func NewMySQLMessageRepository(db *sql.DB) *MySQLMessageRepository {
	return &MySQLMessageRepository{db: db}
}

// isDuplicateKey identifica violação de chave única (erro 1062 do MySQL).
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// Save insere a mensagem. A chave única (org_id, external_message_id) é
// a fonte de verdade da idempotência: inserção duplicada vira no-op e
// retorna created=false, nunca erro.
func (r *MySQLMessageRepository) Save(message *models.Message) (bool, error) {
	var pollOptions interface{}
	if len(message.PollOptions) > 0 {
		data, err := json.Marshal(message.PollOptions)
		if err != nil {
			return false, fmt.Errorf("error serializing poll options: %v", err)
		}
		pollOptions = string(data)
	}

	query := `
		INSERT INTO messages (
			org_id, conversation_id, contact_id, external_message_id,
			direction, sender, recipient, participant, type, body,
			media_url, media_mimetype, media_filename, media_size, media_duration,
			delivery_ack, ack_name, reply_to_external_id,
			poll_question, poll_options, latitude, longitude, location_name,
			raw_payload, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`

	result, err := r.db.Exec(query,
		message.OrgID,
		message.ConversationID,
		utils.NullInt64(message.ContactID),
		message.ExternalMessageID,
		message.Direction,
		utils.NullString(message.Sender),
		utils.NullString(message.Recipient),
		utils.NullString(message.Participant),
		message.Type,
		message.Body,
		utils.NullString(message.Media.URL),
		utils.NullString(message.Media.MimeType),
		utils.NullString(message.Media.FileName),
		message.Media.Size,
		message.Media.DurationSeconds,
		message.DeliveryAck,
		message.AckName,
		utils.NullString(message.ReplyToExternalID),
		utils.NullString(message.PollQuestion),
		pollOptions,
		utils.NullFloat(message.Latitude),
		utils.NullFloat(message.Longitude),
		utils.NullString(message.LocationName),
		string(message.RawPayload),
		message.SentAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("error saving message: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("error getting last insert id: %v", err)
	}

	message.ID = id
	return true, nil
}

const messageColumns = `
	id, org_id, conversation_id, contact_id, external_message_id,
	direction, sender, recipient, participant, type, body,
	media_url, media_mimetype, media_filename, media_size, media_duration,
	delivery_ack, ack_name, reply_to_external_id,
	poll_question, poll_options, latitude, longitude, location_name,
	sent_at, created_at`

func (r *MySQLMessageRepository) GetByExternalID(orgID int64, externalMessageID string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE org_id = ? AND external_message_id = ?`
	return r.scanMessage(r.db.QueryRow(query, orgID, externalMessageID))
}

// GetByExternalIDSuffix casa pelo segmento final do id externo. Cobre o
// caso em que o recibo chega com o id no namespace @lid e a mensagem foi
// gravada com @c.us (ou vice-versa).
func (r *MySQLMessageRepository) GetByExternalIDSuffix(orgID int64, suffix string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE org_id = ? AND external_message_id LIKE ?
		ORDER BY id DESC
		LIMIT 1`
	return r.scanMessage(r.db.QueryRow(query, orgID, "%_"+suffix))
}

func (r *MySQLMessageRepository) scanMessage(row *sql.Row) (*models.Message, error) {
	message := &models.Message{}
	var contactID sql.NullInt64
	var sender, recipient, participant sql.NullString
	var mediaURL, mediaMime, mediaFile sql.NullString
	var ackName, replyTo, pollQuestion, pollOptions, locationName sql.NullString
	var latitude, longitude sql.NullFloat64

	err := row.Scan(
		&message.ID,
		&message.OrgID,
		&message.ConversationID,
		&contactID,
		&message.ExternalMessageID,
		&message.Direction,
		&sender,
		&recipient,
		&participant,
		&message.Type,
		&message.Body,
		&mediaURL,
		&mediaMime,
		&mediaFile,
		&message.Media.Size,
		&message.Media.DurationSeconds,
		&message.DeliveryAck,
		&ackName,
		&replyTo,
		&pollQuestion,
		&pollOptions,
		&latitude,
		&longitude,
		&locationName,
		&message.SentAt,
		&message.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting message: %v", err)
	}

	if contactID.Valid {
		message.ContactID = &contactID.Int64
	}
	message.Sender = sender.String
	message.Recipient = recipient.String
	message.Participant = participant.String
	message.Media.URL = mediaURL.String
	message.Media.MimeType = mediaMime.String
	message.Media.FileName = mediaFile.String
	message.AckName = ackName.String
	message.ReplyToExternalID = replyTo.String
	message.PollQuestion = pollQuestion.String
	message.LocationName = locationName.String
	if latitude.Valid {
		message.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		message.Longitude = &longitude.Float64
	}
	if pollOptions.Valid && pollOptions.String != "" {
		if err := json.Unmarshal([]byte(pollOptions.String), &message.PollOptions); err != nil {
			utils.LogWarning("Opções de enquete inválidas na mensagem %d: %v", message.ID, err)
		}
	}

	return message, nil
}

// UpdateAck só anda para frente: a condição delivery_ack < ? torna a
// atualização segura sob qualquer intercalação de recibos.
func (r *MySQLMessageRepository) UpdateAck(id int64, rank int, ackName string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE messages
		SET delivery_ack = ?, ack_name = ?
		WHERE id = ? AND delivery_ack < ?`,
		rank, ackName, id, rank)
	if err != nil {
		return false, fmt.Errorf("error updating ack: %v", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLMessageRepository) UpdatePollOptions(id int64, options []models.PollOption) error {
	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("error serializing poll options: %v", err)
	}
	_, err = r.db.Exec(`UPDATE messages SET poll_options = ? WHERE id = ?`, string(data), id)
	return err
}
