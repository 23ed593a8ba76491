package models

import (
	"encoding/json"
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Rank do recibo de entrega. Só anda para frente: um "delivered"
// atrasado nunca rebaixa um "read" já aplicado.
const (
	AckPending   = 0
	AckSent      = 1
	AckDelivered = 2
	AckRead      = 3
	AckPlayed    = 4
)

var ackNames = map[int]string{
	AckPending:   "pending",
	AckSent:      "sent",
	AckDelivered: "delivered",
	AckRead:      "read",
	AckPlayed:    "played",
}

func AckName(rank int) string {
	if name, ok := ackNames[rank]; ok {
		return name
	}
	return "unknown"
}

// Tipos de mensagem suportados pela tela de conversas.
const (
	TypeText         = "text"
	TypeImage        = "image"
	TypeVideo        = "video"
	TypeAudio        = "audio"
	TypeVoiceNote    = "voice_note"
	TypeDocument     = "document"
	TypeContact      = "contact"
	TypeLocation     = "location"
	TypePoll         = "poll"
	TypePollCreation = "poll_creation"
)

type Media struct {
	URL             string `json:"url"`
	MimeType        string `json:"mimetype"`
	FileName        string `json:"filename"`
	Size            int64  `json:"size"`
	DurationSeconds int    `json:"duration"`
}

type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type Message struct {
	ID                int64
	OrgID             int64
	ConversationID    int64
	ContactID         *int64
	ExternalMessageID string
	Direction         string
	Sender            string
	Recipient         string
	Participant       string
	Type              string
	Body              string
	Media             Media
	DeliveryAck       int
	AckName           string
	ReplyToExternalID string
	PollQuestion      string
	PollOptions       []PollOption
	Latitude          *float64
	Longitude         *float64
	LocationName      string
	RawPayload        json.RawMessage
	SentAt            time.Time
	CreatedAt         time.Time
}

type MessageRepository interface {
	// Save insere a mensagem. Retorna false quando o par
	// (org_id, external_message_id) já existe — a chave única do banco é
	// a garantia de idempotência, não o pré-check do pipeline.
	Save(message *Message) (created bool, err error)
	GetByExternalID(orgID int64, externalMessageID string) (*Message, error)
	// GetByExternalIDSuffix casa pelo segmento final do id, para cobrir
	// os dois namespaces de JID (@lid vs @c.us) do gateway.
	GetByExternalIDSuffix(orgID int64, suffix string) (*Message, error)
	// UpdateAck aplica o recibo apenas se o rank novo for maior que o
	// armazenado. Retorna false quando nada foi atualizado.
	UpdateAck(id int64, rank int, ackName string) (applied bool, err error)
	UpdatePollOptions(id int64, options []PollOption) error
}
