package repositories

import (
	"database/sql"
	"fmt"

	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"
)

type MySQLContactRepository struct {
	db *sql.DB
}

func NewMySQLContactRepository(db *sql.DB) *MySQLContactRepository {
	return &MySQLContactRepository{db: db}
}

func (r *MySQLContactRepository) GetByPhone(orgID int64, phoneNumber string) (*models.Contact, error) {
	query := `
		SELECT
			id, org_id, name, phone_number, avatar_url,
			contact_status, created_at, updated_at
		FROM contacts
		WHERE org_id = ? AND phone_number = ?`

	contact := &models.Contact{}
	var name, avatarURL sql.NullString

	err := r.db.QueryRow(query, orgID, phoneNumber).Scan(
		&contact.ID,
		&contact.OrgID,
		&name,
		&contact.PhoneNumber,
		&avatarURL,
		&contact.ContactStatus,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting contact: %v", err)
	}

	contact.Name = name.String
	contact.AvatarURL = avatarURL.String
	return contact, nil
}

func (r *MySQLContactRepository) CreateIfNotExists(orgID int64, phoneNumber string) (*models.Contact, error) {
	contact, err := r.GetByPhone(orgID, phoneNumber)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		return contact, nil
	}

	utils.LogInfo("Criando contato que não existe no banco: %s (org %d)", phoneNumber, orgID)
	query := `
		INSERT INTO contacts (
			org_id, name, phone_number, contact_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, NOW(), NOW())`

	result, err := r.db.Exec(query, orgID, phoneNumber, phoneNumber, models.ContactStatusPreLead)
	if err != nil {
		if isDuplicateKey(err) {
			// Outra entrega do webhook criou o contato primeiro
			return r.GetByPhone(orgID, phoneNumber)
		}
		return nil, fmt.Errorf("error creating contact: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error getting last insert id: %v", err)
	}

	return &models.Contact{
		ID:            id,
		OrgID:         orgID,
		Name:          phoneNumber,
		PhoneNumber:   phoneNumber,
		ContactStatus: models.ContactStatusPreLead,
	}, nil
}

// UpgradeName só sobrescreve quando o nome atual é vazio ou ainda é o
// próprio número. Nome preenchido por humano nunca é rebaixado.
func (r *MySQLContactRepository) UpgradeName(orgID int64, phoneNumber string, name string) error {
	if name == "" || name == phoneNumber {
		return nil
	}
	_, err := r.db.Exec(`
		UPDATE contacts
		SET name = ?, updated_at = NOW()
		WHERE org_id = ? AND phone_number = ?
		AND (name IS NULL OR name = '' OR name = phone_number)`,
		name, orgID, phoneNumber)
	return err
}

func (r *MySQLContactRepository) UpdateAvatar(orgID int64, phoneNumber string, avatarURL string) error {
	if avatarURL == "" {
		return nil
	}
	_, err := r.db.Exec(`
		UPDATE contacts
		SET avatar_url = ?, updated_at = NOW()
		WHERE org_id = ? AND phone_number = ?
		AND (avatar_url IS NULL OR avatar_url = '')`,
		avatarURL, orgID, phoneNumber)
	return err
}
