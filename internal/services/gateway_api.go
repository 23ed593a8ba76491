package services

import (
	"context"

	"whatsapp-channel/internal/gateway"
)

// GatewayAPI é a superfície do gateway externo usada pelos serviços.
// *gateway.Client implementa; os testes usam um fake.
type GatewayAPI interface {
	StartSession(ctx context.Context, name string, webhookURL string) error
	StopSession(ctx context.Context, name string) error
	LogoutSession(ctx context.Context, name string) error
	DeleteSession(ctx context.Context, name string) error
	GetSessionStatus(ctx context.Context, name string) (*gateway.SessionInfo, error)
	GetQR(ctx context.Context, name string) (*gateway.QRCode, error)
	SendText(ctx context.Context, session string, chatID string, text string, replyTo string) (*gateway.SendResponse, error)
	SendMedia(ctx context.Context, session string, chatID string, fileURL string, mimeType string, fileName string, caption string) (*gateway.SendResponse, error)
	SendContact(ctx context.Context, session string, chatID string, contactName string, phoneNumber string) (*gateway.SendResponse, error)
	SendPoll(ctx context.Context, session string, chatID string, question string, options []string, multipleAnswers bool) (*gateway.SendResponse, error)
	GetGroupInfo(ctx context.Context, session string, groupID string) (*gateway.GroupInfo, error)
	GetChannelInfo(ctx context.Context, session string, channelID string) (*gateway.GroupInfo, error)
	GetProfilePicture(ctx context.Context, session string, contactID string) (string, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}
