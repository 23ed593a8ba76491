package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"whatsapp-channel/internal/gateway"
	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"

	qrcode "github.com/skip2/go-qrcode"
)

// SessionService controla o ciclo de vida do vínculo sessão↔gateway.
// Start e Disconnect da mesma sessão são serializados por mutex; o resto
// do serviço é stateless.
type SessionService struct {
	sessions      models.SessionRepository
	contacts      models.ContactRepository
	conversations models.ConversationRepository
	messages      models.MessageRepository
	gw            GatewayAPI

	webhookEndpoint string
	restartWait     time.Duration

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex
}

func NewSessionService(
	sessions models.SessionRepository,
	contacts models.ContactRepository,
	conversations models.ConversationRepository,
	messages models.MessageRepository,
	gw GatewayAPI,
	webhookEndpoint string,
) *SessionService {
	return &SessionService{
		sessions:        sessions,
		contacts:        contacts,
		conversations:   conversations,
		messages:        messages,
		gw:              gw,
		webhookEndpoint: webhookEndpoint,
		restartWait:     2 * time.Second,
		locks:           make(map[int64]*sync.Mutex),
	}
}

func (s *SessionService) sessionLock(sessionID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

type StartResult struct {
	Status           string `json:"status"`
	Restarted        bool   `json:"restarted,omitempty"`
	AlreadyConnected bool   `json:"already_connected,omitempty"`
	AlreadyStarted   bool   `json:"already_started,omitempty"`
}

type QRResult struct {
	Status  string `json:"status"`
	QRImage string `json:"qr_image,omitempty"`
}

type StatusResult struct {
	Status           string     `json:"status"`
	RemoteStatus     string     `json:"remote_status,omitempty"`
	PhoneNumber      string     `json:"phone_number,omitempty"`
	PhoneDisplayName string     `json:"phone_display_name,omitempty"`
	ConnectedAt      *time.Time `json:"connected_at,omitempty"`
}

type SendResult struct {
	MessageID         int64  `json:"message_id"`
	ExternalMessageID string `json:"external_message_id"`
}

var ErrSessionNotFound = errors.New("sessão não encontrada")

// ErrSessionNotConnected é a pré-condição de envio: só sessão conectada
// pode mandar mensagem.
var ErrSessionNotConnected = errors.New("sessão não está conectada")

func (s *SessionService) getSession(sessionID int64) (*models.Session, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Start inicia a sessão no gateway, reconciliando com o estado que o
// gateway já tiver. "Sessão já existe" não é erro: é ponto de partida
// para descobrir o estado real.
func (s *SessionService) Start(ctx context.Context, sessionID int64) (*StartResult, error) {
	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	utils.LogInfo("Iniciando sessão %d (%s) no gateway", session.ID, session.ExternalSessionName)

	err = s.gw.StartSession(ctx, session.ExternalSessionName, s.webhookEndpoint)
	if err == nil {
		s.markScanning(session.ID)
		return &StartResult{Status: models.SessionScanning}, nil
	}
	if !errors.Is(err, gateway.ErrSessionAlreadyExists) {
		if uerr := s.sessions.UpdateStatus(session.ID, models.SessionFailed); uerr != nil {
			utils.LogError("Erro ao gravar status da sessão %d: %v", session.ID, uerr)
		}
		return nil, fmt.Errorf("erro ao iniciar sessão %s no gateway: %v", session.ExternalSessionName, err)
	}

	// O gateway já conhece a sessão: consultar o estado real
	info, err := s.gw.GetSessionStatus(ctx, session.ExternalSessionName)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar estado da sessão %s: %v", session.ExternalSessionName, err)
	}

	switch info.Status {
	case gateway.StatusWorking:
		phone, display := meIdentity(info)
		if err := s.sessions.SetConnected(session.ID, phone, display); err != nil {
			utils.LogError("Erro ao gravar conexão da sessão %d: %v", session.ID, err)
		}
		return &StartResult{Status: models.SessionConnected, AlreadyConnected: true}, nil

	case gateway.StatusFailed, gateway.StatusStopped:
		// Sessão zumbi do lado do gateway: derrubar e recriar
		utils.LogWarning("Sessão %s está %s no gateway, recriando", session.ExternalSessionName, info.Status)
		if err := s.gw.DeleteSession(ctx, session.ExternalSessionName); err != nil {
			utils.LogWarning("Erro ao remover sessão %s do gateway: %v", session.ExternalSessionName, err)
		}
		time.Sleep(s.restartWait)
		if err := s.gw.StartSession(ctx, session.ExternalSessionName, s.webhookEndpoint); err != nil {
			if uerr := s.sessions.UpdateStatus(session.ID, models.SessionFailed); uerr != nil {
				utils.LogError("Erro ao gravar status da sessão %d: %v", session.ID, uerr)
			}
			return nil, fmt.Errorf("erro ao recriar sessão %s no gateway: %v", session.ExternalSessionName, err)
		}
		s.markScanning(session.ID)
		return &StartResult{Status: models.SessionScanning, Restarted: true}, nil

	default:
		// STARTING ou SCAN_QR_CODE: já está a caminho
		if err := s.sessions.UpdateStatus(session.ID, models.SessionScanning); err != nil {
			utils.LogError("Erro ao gravar status da sessão %d: %v", session.ID, err)
		}
		return &StartResult{Status: models.SessionScanning, AlreadyStarted: true}, nil
	}
}

// GetQR busca o QR de pareamento. Se a sessão já conectou entre o start
// e o poll do QR, devolve o status conectado em vez de erro.
func (s *SessionService) GetQR(ctx context.Context, sessionID int64) (*QRResult, error) {
	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	info, err := s.gw.GetSessionStatus(ctx, session.ExternalSessionName)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar estado da sessão %s: %v", session.ExternalSessionName, err)
	}
	if info.Status == gateway.StatusWorking {
		phone, display := meIdentity(info)
		if err := s.sessions.SetConnected(session.ID, phone, display); err != nil {
			utils.LogError("Erro ao gravar conexão da sessão %d: %v", session.ID, err)
		}
		return &QRResult{Status: models.SessionConnected}, nil
	}

	qr, err := s.gw.GetQR(ctx, session.ExternalSessionName)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar QR da sessão %s: %v", session.ExternalSessionName, err)
	}

	image, err := qrImage(qr)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.TouchQR(session.ID); err != nil {
		utils.LogError("Erro ao registrar emissão de QR da sessão %d: %v", session.ID, err)
	}
	if err := s.sessions.UpdateStatus(session.ID, models.SessionScanning); err != nil {
		utils.LogError("Erro ao gravar status da sessão %d: %v", session.ID, err)
	}
	return &QRResult{Status: models.SessionScanning, QRImage: image}, nil
}

// qrImage devolve um data URI PNG. O gateway pode mandar a imagem pronta
// em base64 ou só o valor cru de pareamento.
func qrImage(qr *gateway.QRCode) (string, error) {
	if qr.Data != "" {
		mimetype := qr.Mimetype
		if mimetype == "" {
			mimetype = "image/png"
		}
		if strings.HasPrefix(qr.Data, "data:") {
			return qr.Data, nil
		}
		return "data:" + mimetype + ";base64," + qr.Data, nil
	}
	if qr.Value == "" {
		return "", fmt.Errorf("gateway devolveu QR vazio")
	}
	png, err := qrcode.Encode(qr.Value, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("erro ao gerar imagem do QR: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Status devolve o estado local e, quando o gateway responde, o remoto.
// Divergência conhecida (local conectado, remoto não) é reconciliada.
func (s *SessionService) Status(ctx context.Context, sessionID int64) (*StatusResult, error) {
	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		Status:           session.Status,
		PhoneNumber:      session.PhoneNumber,
		PhoneDisplayName: session.PhoneDisplayName,
		ConnectedAt:      session.ConnectedAt,
	}

	info, err := s.gw.GetSessionStatus(ctx, session.ExternalSessionName)
	if err != nil {
		utils.LogWarning("Erro ao consultar gateway para sessão %d, devolvendo estado local: %v", session.ID, err)
		return result, nil
	}
	result.RemoteStatus = info.Status

	switch {
	case info.Status == gateway.StatusWorking && session.Status != models.SessionConnected:
		phone, display := meIdentity(info)
		if err := s.sessions.SetConnected(session.ID, phone, display); err != nil {
			utils.LogError("Erro ao gravar conexão da sessão %d: %v", session.ID, err)
		}
		result.Status = models.SessionConnected
		if phone != "" {
			result.PhoneNumber = phone
			result.PhoneDisplayName = display
		}
	case info.Status == gateway.StatusFailed && session.Status == models.SessionConnected:
		if err := s.sessions.UpdateStatus(session.ID, models.SessionFailed); err != nil {
			utils.LogError("Erro ao gravar status da sessão %d: %v", session.ID, err)
		}
		result.Status = models.SessionFailed
	}
	return result, nil
}

// Disconnect derruba a sessão no gateway em três passos best-effort
// (logout, stop, delete). Falha em qualquer passo é registrada e não
// impede os seguintes; o estado local sempre termina desconectado.
func (s *SessionService) Disconnect(ctx context.Context, sessionID int64) error {
	session, err := s.getSession(sessionID)
	if err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	utils.LogInfo("Desconectando sessão %d (%s)", session.ID, session.ExternalSessionName)

	if err := s.gw.LogoutSession(ctx, session.ExternalSessionName); err != nil {
		utils.LogWarning("Erro no logout da sessão %s: %v", session.ExternalSessionName, err)
	}
	if err := s.gw.StopSession(ctx, session.ExternalSessionName); err != nil {
		utils.LogWarning("Erro ao parar sessão %s: %v", session.ExternalSessionName, err)
	}
	if err := s.gw.DeleteSession(ctx, session.ExternalSessionName); err != nil {
		utils.LogWarning("Erro ao remover sessão %s: %v", session.ExternalSessionName, err)
	}

	if err := s.sessions.SetDisconnected(session.ID); err != nil {
		return fmt.Errorf("erro ao gravar desconexão da sessão %d: %v", session.ID, err)
	}
	return nil
}

// markScanning grava a transição para scanning e carimba a emissão do QR.
func (s *SessionService) markScanning(sessionID int64) {
	if err := s.sessions.UpdateStatus(sessionID, models.SessionScanning); err != nil {
		utils.LogError("Erro ao gravar status da sessão %d: %v", sessionID, err)
	}
	if err := s.sessions.TouchQR(sessionID); err != nil {
		utils.LogError("Erro ao registrar emissão de QR da sessão %d: %v", sessionID, err)
	}
}

func meIdentity(info *gateway.SessionInfo) (string, string) {
	if info.Me == nil {
		return "", ""
	}
	return utils.PhoneFromJID(info.Me.ID), info.Me.PushName
}

// requireConnected aplica a pré-condição de envio.
func (s *SessionService) requireConnected(sessionID int64) (*models.Session, error) {
	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionConnected {
		return nil, fmt.Errorf("%w (sessão %d está %s)", ErrSessionNotConnected, session.ID, session.Status)
	}
	return session, nil
}

// sendWithRetry executa o envio e tenta uma segunda vez em erro
// transitório do gateway.
func sendWithRetry(send func() (*gateway.SendResponse, error)) (*gateway.SendResponse, error) {
	resp, err := send()
	if err != nil && gateway.IsTransient(err) {
		utils.LogWarning("Erro transitório no envio, tentando de novo: %v", err)
		resp, err = send()
	}
	return resp, err
}

func (s *SessionService) SendText(ctx context.Context, req models.SendTextRequest) (*SendResult, error) {
	session, err := s.requireConnected(req.SessionID)
	if err != nil {
		return nil, err
	}

	resp, err := sendWithRetry(func() (*gateway.SendResponse, error) {
		return s.gw.SendText(ctx, session.ExternalSessionName, req.ChatID, req.Body, req.ReplyTo)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao enviar mensagem: %v", err)
	}

	message := s.recordOutbound(session, req.ChatID, resp, models.TypeText, req.Body, models.Media{}, req.ReplyTo)
	return sendResult(message, resp), nil
}

func (s *SessionService) SendMedia(ctx context.Context, req models.SendMediaRequest) (*SendResult, error) {
	session, err := s.requireConnected(req.SessionID)
	if err != nil {
		return nil, err
	}
	if !utils.IsURL(req.URL) {
		return nil, fmt.Errorf("url de mídia inválida: %q", req.URL)
	}

	resp, err := sendWithRetry(func() (*gateway.SendResponse, error) {
		return s.gw.SendMedia(ctx, session.ExternalSessionName, req.ChatID, req.URL, req.MimeType, req.FileName, req.Caption)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao enviar mídia: %v", err)
	}

	media := models.Media{URL: req.URL, MimeType: req.MimeType, FileName: req.FileName}
	messageType := utils.MessageTypeFromMime(req.MimeType)
	message := s.recordOutbound(session, req.ChatID, resp, messageType, req.Caption, media, "")
	return sendResult(message, resp), nil
}

func (s *SessionService) SendContact(ctx context.Context, req models.SendContactRequest) (*SendResult, error) {
	session, err := s.requireConnected(req.SessionID)
	if err != nil {
		return nil, err
	}

	resp, err := sendWithRetry(func() (*gateway.SendResponse, error) {
		return s.gw.SendContact(ctx, session.ExternalSessionName, req.ChatID, req.ContactName, req.PhoneNumber)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao enviar contato: %v", err)
	}

	message := s.recordOutbound(session, req.ChatID, resp, models.TypeContact, req.ContactName, models.Media{}, "")
	return sendResult(message, resp), nil
}

func (s *SessionService) SendPoll(ctx context.Context, req models.SendPollRequest) (*SendResult, error) {
	session, err := s.requireConnected(req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.Question == "" || len(req.Options) < 2 {
		return nil, fmt.Errorf("enquete exige pergunta e pelo menos duas opções")
	}

	resp, err := sendWithRetry(func() (*gateway.SendResponse, error) {
		return s.gw.SendPoll(ctx, session.ExternalSessionName, req.ChatID, req.Question, req.Options, req.MultipleAnswers)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao enviar enquete: %v", err)
	}

	message := s.recordOutbound(session, req.ChatID, resp, models.TypePollCreation, req.Question, models.Media{}, "")
	if message != nil {
		message.PollQuestion = req.Question
	}
	return sendResult(message, resp), nil
}

// recordOutbound persiste o envio pelo mesmo caminho da ingestão, para a
// conversa ficar completa sem depender do eco do webhook. Falha aqui não
// derruba o envio, que já aconteceu.
func (s *SessionService) recordOutbound(session *models.Session, chatID string, resp *gateway.SendResponse,
	messageType string, body string, media models.Media, replyTo string) *models.Message {

	conversation, err := s.conversations.GetByChatID(session.OrgID, session.ID, chatID)
	if err != nil {
		utils.LogError("Erro ao buscar conversa %q para envio: %v", chatID, err)
	}
	if conversation == nil {
		conversation = &models.Conversation{
			OrgID:          session.OrgID,
			SessionID:      session.ID,
			ExternalChatID: chatID,
			ChannelType:    utils.ChannelTypeFromChatID(chatID),
		}
		if err := s.conversations.Create(conversation); err != nil {
			utils.LogError("Erro ao criar conversa %q para envio: %v", chatID, err)
			conversation = nil
		}
	}

	now := time.Now()
	message := &models.Message{
		OrgID:             session.OrgID,
		ExternalMessageID: resp.ExternalMessageID,
		Direction:         models.DirectionOutbound,
		Sender:            session.PhoneNumber,
		Recipient:         utils.PhoneFromJID(chatID),
		Type:              messageType,
		Body:              body,
		Media:             media,
		DeliveryAck:       models.AckPending,
		AckName:           models.AckName(models.AckPending),
		ReplyToExternalID: replyTo,
		RawPayload:        resp.Raw,
		SentAt:            now,
	}
	if conversation != nil {
		message.ConversationID = conversation.ID
	}

	created, err := s.messages.Save(message)
	if err != nil {
		utils.LogError("Erro ao gravar mensagem enviada %q: %v", resp.ExternalMessageID, err)
		return nil
	}
	if !created {
		// O eco do webhook chegou antes da gravação local
		utils.LogDebug("Mensagem enviada %q já registrada pelo webhook", resp.ExternalMessageID)
		return message
	}
	if conversation != nil {
		if err := s.conversations.RegisterMessage(conversation.ID, now, false); err != nil {
			utils.LogError("Erro ao atualizar contadores da conversa %d: %v", conversation.ID, err)
		}
	}
	return message
}

func sendResult(message *models.Message, resp *gateway.SendResponse) *SendResult {
	result := &SendResult{ExternalMessageID: resp.ExternalMessageID}
	if message != nil {
		result.MessageID = message.ID
	}
	return result
}
