package wsnotify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type WebSocketManager struct {
	clients map[*websocket.Conn]bool
	lock    sync.RWMutex
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func Upgrader() *websocket.Upgrader {
	return &upgrader
}

var Manager = &WebSocketManager{
	clients: make(map[*websocket.Conn]bool),
}

func (m *WebSocketManager) AddClient(conn *websocket.Conn) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.clients[conn] = true
}

func (m *WebSocketManager) RemoveClient(conn *websocket.Conn) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.clients, conn)
}

func (m *WebSocketManager) Broadcast(event interface{}) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for client := range m.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteJSON(event); err != nil {
			client.Close()
			go m.RemoveClient(client)
		}
	}
}

// MessagePayload é o que a tela de conversas do CRM consome em tempo real.
type MessagePayload struct {
	ID             int64   `json:"id"`
	ConversationID int64   `json:"conversationId"`
	SessionID      int64   `json:"sessionId"`
	OrgID          int64   `json:"orgId"`
	Direction      string  `json:"direction"`
	Type           string  `json:"type"`
	Body           string  `json:"body"`
	MediaUrl       *string `json:"mediaUrl"`
	FileName       *string `json:"fileName"`
	MimeType       *string `json:"mimeType"`
	SentAt         string  `json:"sentAt"`
}

type MessageEvent struct {
	Type    string         `json:"type"`
	Payload MessagePayload `json:"payload"`
}

func SendMessageEvent(id int64, conversationID int64, sessionID int64, orgID int64,
	direction string, messageType string, body string,
	mediaUrl *string, fileName *string, mimeType *string, sentAt time.Time) {
	event := MessageEvent{
		Type: "message",
		Payload: MessagePayload{
			ID:             id,
			ConversationID: conversationID,
			SessionID:      sessionID,
			OrgID:          orgID,
			Direction:      direction,
			Type:           messageType,
			Body:           body,
			MediaUrl:       mediaUrl,
			FileName:       fileName,
			MimeType:       mimeType,
			SentAt:         sentAt.UTC().Format(time.RFC3339Nano),
		},
	}
	Manager.Broadcast(event)
}

type AckEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId"`
	Ack       int    `json:"ack"`
	AckName   string `json:"ackName"`
}

func SendAckEvent(messageID int64, ack int, ackName string) {
	Manager.Broadcast(AckEvent{
		Type:      "message.ack",
		MessageID: messageID,
		Ack:       ack,
		AckName:   ackName,
	})
}
