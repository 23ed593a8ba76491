package events

import "time"

// Envelope é o contrato publicado no barramento para os consumidores do
// CRM (motor de pipelines, notificações).
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

type Meta struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	OrgID         int64     `json:"org_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	KindMessageIngested  = "whatsapp.message.ingested"
	KindLeadDraftCreated = "whatsapp.lead_draft.created"
)

type MessageIngested struct {
	MessageID         int64  `json:"message_id"`
	ConversationID    int64  `json:"conversation_id"`
	SessionID         int64  `json:"session_id"`
	ExternalMessageID string `json:"external_message_id"`
	Direction         string `json:"direction"`
	ChannelType       string `json:"channel_type"`
	Type              string `json:"type"`
	BodyPreview       string `json:"body_preview"`
}

type LeadDraftCreated struct {
	PreOpportunityID int64  `json:"pre_opportunity_id"`
	PhoneNumber      string `json:"phone_number"`
	PipelineID       int64  `json:"pipeline_id"`
}
