package models

import "time"

// Contatos criados automaticamente pelo processador de webhooks entram
// como pre_lead para não poluir a lista principal do CRM.
const ContactStatusPreLead = "pre_lead"

type Contact struct {
	ID            int64     `json:"id"`
	OrgID         int64     `json:"org_id"`
	Name          string    `json:"name"`
	PhoneNumber   string    `json:"phone_number"`
	AvatarURL     string    `json:"avatar_url"`
	ContactStatus string    `json:"contact_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ContactRepository interface {
	GetByPhone(orgID int64, phoneNumber string) (*Contact, error)
	CreateIfNotExists(orgID int64, phoneNumber string) (*Contact, error)
	// UpgradeName só grava o nome quando o atual é vazio ou é o próprio
	// número; nunca rebaixa um nome preenchido por um humano.
	UpgradeName(orgID int64, phoneNumber string, name string) error
	UpdateAvatar(orgID int64, phoneNumber string, avatarURL string) error
}
