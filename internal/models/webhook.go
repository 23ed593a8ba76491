package models

import "encoding/json"

// WebhookEvent é o envelope que o gateway entrega por POST. O payload
// fica opaco aqui; a normalização acontece no processador.
type WebhookEvent struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

const (
	EventMessage  = "message"
	EventAck      = "message.ack"
	EventPollVote = "poll.vote"
)
