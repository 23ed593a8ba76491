package repositories

import (
	"database/sql"
	"fmt"

	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"
)

type MySQLSessionRepository struct {
	db *sql.DB
}

func NewMySQLSessionRepository(db *sql.DB) *MySQLSessionRepository {
	return &MySQLSessionRepository{db: db}
}

const sessionColumns = `
	id, org_id, external_session_name, status, phone_number,
	phone_display_name, webhook_endpoint, auto_create_lead,
	destination_pipeline_id, inbound_message_count,
	connected_at, disconnected_at, last_qr_at, created_at, updated_at`

func (r *MySQLSessionRepository) Save(session *models.Session) error {
	query := `
		INSERT INTO whatsapp_sessions (
			org_id, external_session_name, status, phone_number,
			phone_display_name, webhook_endpoint, auto_create_lead,
			destination_pipeline_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	result, err := r.db.Exec(query,
		session.OrgID,
		session.ExternalSessionName,
		session.Status,
		utils.NullString(session.PhoneNumber),
		utils.NullString(session.PhoneDisplayName),
		utils.NullString(session.WebhookEndpoint),
		utils.BoolToInt(session.AutoCreateLead),
		utils.NullInt64(session.DestinationPipelineID),
	)
	if err != nil {
		return fmt.Errorf("error saving session: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting last insert id: %v", err)
	}

	session.ID = id
	return nil
}

func (r *MySQLSessionRepository) GetByID(id int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM whatsapp_sessions WHERE id = ?`
	return r.scanSession(r.db.QueryRow(query, id))
}

func (r *MySQLSessionRepository) GetByName(externalSessionName string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM whatsapp_sessions WHERE external_session_name = ?`
	return r.scanSession(r.db.QueryRow(query, externalSessionName))
}

func (r *MySQLSessionRepository) scanSession(row *sql.Row) (*models.Session, error) {
	session := &models.Session{}
	var phoneNumber, displayName, webhookEndpoint sql.NullString
	var pipelineID sql.NullInt64
	var connectedAt, disconnectedAt, lastQRAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.OrgID,
		&session.ExternalSessionName,
		&session.Status,
		&phoneNumber,
		&displayName,
		&webhookEndpoint,
		&session.AutoCreateLead,
		&pipelineID,
		&session.InboundMessageCount,
		&connectedAt,
		&disconnectedAt,
		&lastQRAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting session: %v", err)
	}

	session.PhoneNumber = phoneNumber.String
	session.PhoneDisplayName = displayName.String
	session.WebhookEndpoint = webhookEndpoint.String
	if pipelineID.Valid {
		session.DestinationPipelineID = &pipelineID.Int64
	}
	if connectedAt.Valid {
		session.ConnectedAt = &connectedAt.Time
	}
	if disconnectedAt.Valid {
		session.DisconnectedAt = &disconnectedAt.Time
	}
	if lastQRAt.Valid {
		session.LastQRAt = &lastQRAt.Time
	}

	return session, nil
}

func (r *MySQLSessionRepository) UpdateStatus(id int64, status string) error {
	_, err := r.db.Exec(`
		UPDATE whatsapp_sessions
		SET status = ?, updated_at = NOW()
		WHERE id = ?`,
		status, id)
	return err
}

func (r *MySQLSessionRepository) SetConnected(id int64, phoneNumber string, displayName string) error {
	_, err := r.db.Exec(`
		UPDATE whatsapp_sessions
		SET status = 'connected',
			phone_number = ?,
			phone_display_name = ?,
			connected_at = NOW(),
			updated_at = NOW()
		WHERE id = ?`,
		utils.NullString(phoneNumber), utils.NullString(displayName), id)
	return err
}

// SetDisconnected limpa a identidade do telefone junto com o status, para
// que o próximo scan de QR comece sem identidade antiga.
func (r *MySQLSessionRepository) SetDisconnected(id int64) error {
	_, err := r.db.Exec(`
		UPDATE whatsapp_sessions
		SET status = 'disconnected',
			phone_number = NULL,
			phone_display_name = NULL,
			disconnected_at = NOW(),
			updated_at = NOW()
		WHERE id = ?`,
		id)
	return err
}

func (r *MySQLSessionRepository) TouchQR(id int64) error {
	_, err := r.db.Exec(`
		UPDATE whatsapp_sessions
		SET last_qr_at = NOW(), updated_at = NOW()
		WHERE id = ?`,
		id)
	return err
}

func (r *MySQLSessionRepository) SetPhoneIdentity(id int64, phoneNumber string, displayName string) error {
	_, err := r.db.Exec(`
		UPDATE whatsapp_sessions
		SET phone_number = ?,
			phone_display_name = ?,
			updated_at = NOW()
		WHERE id = ? AND (phone_number IS NULL OR phone_number = '')`,
		phoneNumber, displayName, id)
	return err
}

func (r *MySQLSessionRepository) IncrementInbound(id int64) error {
	_, err := r.db.Exec(`
		UPDATE whatsapp_sessions
		SET inbound_message_count = inbound_message_count + 1,
			updated_at = NOW()
		WHERE id = ?`,
		id)
	return err
}
