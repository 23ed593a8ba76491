package models

import "time"

// Status da sessão local. O gateway tem os próprios estados remotos
// (ver internal/gateway); aqui guardamos apenas o ciclo de vida do vínculo.
const (
	SessionStarting     = "starting"
	SessionScanning     = "scanning"
	SessionConnected    = "connected"
	SessionDisconnected = "disconnected"
	SessionFailed       = "failed"
)

type Session struct {
	ID                    int64
	OrgID                 int64
	ExternalSessionName   string
	Status                string
	PhoneNumber           string
	PhoneDisplayName      string
	WebhookEndpoint       string
	AutoCreateLead        bool
	DestinationPipelineID *int64
	InboundMessageCount   int64
	ConnectedAt           *time.Time
	DisconnectedAt        *time.Time
	LastQRAt              *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type SessionRepository interface {
	Save(session *Session) error
	GetByID(id int64) (*Session, error)
	GetByName(externalSessionName string) (*Session, error)
	UpdateStatus(id int64, status string) error
	SetConnected(id int64, phoneNumber string, displayName string) error
	// SetDisconnected marca a sessão como desconectada e limpa a identidade
	// do telefone, para que um novo scan comece do zero.
	SetDisconnected(id int64) error
	TouchQR(id int64) error
	SetPhoneIdentity(id int64, phoneNumber string, displayName string) error
	IncrementInbound(id int64) error
}
