package repositories

import (
	"database/sql"
	"fmt"

	"whatsapp-channel/internal/models"
)

type MySQLPreOpportunityRepository struct {
	db *sql.DB
}

func NewMySQLPreOpportunityRepository(db *sql.DB) *MySQLPreOpportunityRepository {
	return &MySQLPreOpportunityRepository{db: db}
}

func (r *MySQLPreOpportunityRepository) GetPending(orgID int64, phoneNumber string) (*models.PreOpportunity, error) {
	query := `
		SELECT
			id, org_id, phone_number, pipeline_id, status,
			first_message, last_message, message_count, created_at, updated_at
		FROM pre_opportunities
		WHERE org_id = ? AND phone_number = ? AND status = 'pending'
		ORDER BY id DESC
		LIMIT 1`

	preOpportunity := &models.PreOpportunity{}
	var firstMessage, lastMessage sql.NullString

	err := r.db.QueryRow(query, orgID, phoneNumber).Scan(
		&preOpportunity.ID,
		&preOpportunity.OrgID,
		&preOpportunity.PhoneNumber,
		&preOpportunity.PipelineID,
		&preOpportunity.Status,
		&firstMessage,
		&lastMessage,
		&preOpportunity.MessageCount,
		&preOpportunity.CreatedAt,
		&preOpportunity.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting pre opportunity: %v", err)
	}

	preOpportunity.FirstMessage = firstMessage.String
	preOpportunity.LastMessage = lastMessage.String
	return preOpportunity, nil
}

func (r *MySQLPreOpportunityRepository) Create(preOpportunity *models.PreOpportunity) error {
	query := `
		INSERT INTO pre_opportunities (
			org_id, phone_number, pipeline_id, status,
			first_message, last_message, message_count, created_at, updated_at
		) VALUES (?, ?, ?, 'pending', ?, ?, 1, NOW(), NOW())`

	result, err := r.db.Exec(query,
		preOpportunity.OrgID,
		preOpportunity.PhoneNumber,
		preOpportunity.PipelineID,
		preOpportunity.FirstMessage,
		preOpportunity.LastMessage,
	)
	if err != nil {
		return fmt.Errorf("error saving pre opportunity: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting last insert id: %v", err)
	}

	preOpportunity.ID = id
	preOpportunity.Status = models.PreOpportunityPending
	preOpportunity.MessageCount = 1
	return nil
}

func (r *MySQLPreOpportunityRepository) RegisterMessage(id int64, body string) error {
	_, err := r.db.Exec(`
		UPDATE pre_opportunities
		SET last_message = ?,
			message_count = message_count + 1,
			updated_at = NOW()
		WHERE id = ?`,
		body, id)
	return err
}
