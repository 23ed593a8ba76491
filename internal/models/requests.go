package models

type StartSessionRequest struct {
	SessionID int64 `json:"session_id" example:"1" swagger:"required" description:"ID da sessão do WhatsApp"`
}

type SendTextRequest struct {
	SessionID int64  `json:"session_id" example:"1" swagger:"required" description:"ID da sessão do WhatsApp"`
	ChatID    string `json:"chat_id" example:"5511999999999@c.us" swagger:"required" description:"Endereço do chat no gateway"`
	Body      string `json:"body" example:"Olá, como vai?" swagger:"required" description:"Texto da mensagem"`
	ReplyTo   string `json:"reply_to" description:"ID externo da mensagem citada"`
}

type SendMediaRequest struct {
	SessionID int64  `json:"session_id"`
	ChatID    string `json:"chat_id"`
	URL       string `json:"url" description:"URL do arquivo já hospedado no blob storage"`
	MimeType  string `json:"mimetype"`
	FileName  string `json:"filename"`
	Caption   string `json:"caption"`
}

type SendContactRequest struct {
	SessionID   int64  `json:"session_id"`
	ChatID      string `json:"chat_id"`
	ContactName string `json:"contact_name"`
	PhoneNumber string `json:"phone_number"`
}

type SendPollRequest struct {
	SessionID       int64    `json:"session_id"`
	ChatID          string   `json:"chat_id"`
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	MultipleAnswers bool     `json:"multiple_answers"`
}
