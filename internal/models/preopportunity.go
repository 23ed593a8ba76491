package models

import "time"

const PreOpportunityPending = "pending"

// PreOpportunity é um rascunho de lead acumulado pelo canal. O motor de
// pipelines (fora deste serviço) promove ou descarta os registros pendentes.
type PreOpportunity struct {
	ID           int64     `json:"id"`
	OrgID        int64     `json:"org_id"`
	PhoneNumber  string    `json:"phone_number"`
	PipelineID   int64     `json:"pipeline_id"`
	Status       string    `json:"status"`
	FirstMessage string    `json:"first_message"`
	LastMessage  string    `json:"last_message"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PreOpportunityRepository interface {
	GetPending(orgID int64, phoneNumber string) (*PreOpportunity, error)
	Create(preOpportunity *PreOpportunity) error
	RegisterMessage(id int64, body string) error
}
