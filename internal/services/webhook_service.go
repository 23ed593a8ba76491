package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whatsapp-channel/internal/events"
	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"
	"whatsapp-channel/internal/wsnotify"

	"github.com/google/uuid"
)

// WebhookService processa os eventos empurrados pelo gateway. O gateway
// entrega pelo menos uma vez, sem ordem; a correção vem das guardas no
// banco (chave única, rank monotônico, incrementos atômicos), não de
// locks aqui.
type WebhookService struct {
	sessions      models.SessionRepository
	contacts      models.ContactRepository
	conversations models.ConversationRepository
	messages      models.MessageRepository
	leads         *LeadService
	gw            GatewayAPI
	blob          BlobUploader
	publisher     events.Publisher

	metadataTimeout time.Duration
	mediaTimeout    time.Duration
}

func NewWebhookService(
	sessions models.SessionRepository,
	contacts models.ContactRepository,
	conversations models.ConversationRepository,
	messages models.MessageRepository,
	leads *LeadService,
	gw GatewayAPI,
	blob BlobUploader,
	publisher events.Publisher,
) *WebhookService {
	return &WebhookService{
		sessions:        sessions,
		contacts:        contacts,
		conversations:   conversations,
		messages:        messages,
		leads:           leads,
		gw:              gw,
		blob:            blob,
		publisher:       publisher,
		metadataTimeout: 3 * time.Second,
		mediaTimeout:    15 * time.Second,
	}
}

// HandleEvent despacha pelo tipo do evento. Tipo desconhecido é
// reconhecido como no-op: responder não-2xx faria o gateway reentregar
// algo que não temos como tratar de qualquer forma.
func (s *WebhookService) HandleEvent(ctx context.Context, evt models.WebhookEvent) error {
	switch evt.Event {
	case models.EventMessage:
		return s.handleMessage(ctx, evt)
	case models.EventAck:
		return s.handleAck(ctx, evt)
	case models.EventPollVote:
		return s.handlePollVote(ctx, evt)
	default:
		utils.LogDebug("Evento %q da sessão %q ignorado", evt.Event, evt.Session)
		return nil
	}
}

func (s *WebhookService) resolveSession(sessionName string) *models.Session {
	if sessionName == "" {
		utils.LogWarning("Webhook sem nome de sessão, ignorando")
		return nil
	}
	session, err := s.sessions.GetByName(sessionName)
	if err != nil {
		utils.LogError("Erro ao resolver sessão %q: %v", sessionName, err)
		return nil
	}
	if session == nil {
		utils.LogWarning("Webhook para sessão desconhecida %q, ignorando", sessionName)
	}
	return session
}

// findMessageByExternalID tenta o id exato e depois o segmento final.
// Os dois namespaces de JID do gateway (@lid e @c.us) geram ids
// diferentes para a mesma mensagem lógica.
func (s *WebhookService) findMessageByExternalID(orgID int64, externalID string) (*models.Message, error) {
	message, err := s.messages.GetByExternalID(orgID, externalID)
	if err != nil || message != nil {
		return message, err
	}
	return s.messages.GetByExternalIDSuffix(orgID, utils.MessageIDSuffix(externalID))
}

func (s *WebhookService) handleAck(ctx context.Context, evt models.WebhookEvent) error {
	session := s.resolveSession(evt.Session)
	if session == nil {
		return nil
	}

	ack, err := normalizeAck(evt.Payload)
	if err != nil {
		utils.LogWarning("Recibo descartado para sessão %q: %v", evt.Session, err)
		return nil
	}
	if len(ack.IDs) == 0 {
		utils.LogWarning("Recibo sem id de mensagem para sessão %q", evt.Session)
		return nil
	}

	for _, externalID := range ack.IDs {
		message, err := s.findMessageByExternalID(session.OrgID, externalID)
		if err != nil {
			utils.LogError("Erro ao buscar mensagem %q para recibo: %v", externalID, err)
			continue
		}
		if message == nil {
			utils.LogDebug("Recibo para mensagem desconhecida %q, ignorando", externalID)
			continue
		}

		applied, err := s.messages.UpdateAck(message.ID, ack.Rank, ack.AckName)
		if err != nil {
			utils.LogError("Erro ao aplicar recibo na mensagem %d: %v", message.ID, err)
			continue
		}
		if applied {
			wsnotify.SendAckEvent(message.ID, ack.Rank, ack.AckName)
		} else {
			utils.LogDebug("Recibo %s atrasado para mensagem %d (rank atual %d), não aplicado",
				ack.AckName, message.ID, message.DeliveryAck)
		}
	}
	return nil
}

func (s *WebhookService) handlePollVote(ctx context.Context, evt models.WebhookEvent) error {
	session := s.resolveSession(evt.Session)
	if session == nil {
		return nil
	}

	vote, err := normalizePollVote(evt.Payload)
	if err != nil {
		utils.LogWarning("Voto descartado para sessão %q: %v", evt.Session, err)
		return nil
	}

	message, err := s.findMessageByExternalID(session.OrgID, vote.PollMessageID)
	if err != nil {
		utils.LogError("Erro ao buscar enquete %q: %v", vote.PollMessageID, err)
		return nil
	}
	if message == nil {
		utils.LogWarning("Voto para enquete desconhecida %q, ignorando", vote.PollMessageID)
		return nil
	}

	selected := make(map[string]bool, len(vote.SelectedOptions))
	for _, option := range vote.SelectedOptions {
		selected[strings.ToLower(strings.TrimSpace(option))] = true
	}

	// Incremento aditivo, não resync: reentrega do mesmo voto conta de
	// novo. Ver DESIGN.md.
	options := message.PollOptions
	changed := false
	for i := range options {
		if selected[strings.ToLower(strings.TrimSpace(options[i].Text))] {
			options[i].Votes++
			changed = true
		}
	}
	if !changed {
		utils.LogDebug("Voto sem opção correspondente na enquete %d", message.ID)
		return nil
	}

	if err := s.messages.UpdatePollOptions(message.ID, options); err != nil {
		utils.LogError("Erro ao atualizar votos da enquete %d: %v", message.ID, err)
	}
	return nil
}

// handleMessage executa o pipeline de ingestão. Cada estágio tolera a
// própria falha: a mensagem é persistida mesmo quando enriquecimento,
// relay de mídia ou captura de lead falham.
func (s *WebhookService) handleMessage(ctx context.Context, evt models.WebhookEvent) error {
	session := s.resolveSession(evt.Session)
	if session == nil {
		return nil
	}

	n, err := normalizeMessage(evt.Payload)
	if err != nil {
		utils.LogWarning("Mensagem descartada para sessão %q: %v", evt.Session, err)
		return nil
	}
	if n.ExternalID == "" || n.ChatID == "" {
		utils.LogWarning("Mensagem sem id ou chat para sessão %q, ignorando", evt.Session)
		return nil
	}

	// Contato
	var contact *models.Contact
	if n.ContactPhone != "" {
		contact, err = s.contacts.CreateIfNotExists(session.OrgID, n.ContactPhone)
		if err != nil {
			utils.LogError("Erro ao resolver contato %s: %v", n.ContactPhone, err)
		} else if n.SenderDisplay != "" && !n.FromMe {
			if err := s.contacts.UpgradeName(session.OrgID, n.ContactPhone, n.SenderDisplay); err != nil {
				utils.LogError("Erro ao atualizar nome do contato %s: %v", n.ContactPhone, err)
			}
		}
	}

	// Conversa
	conversation := s.resolveConversation(ctx, session, contact, n)

	// Correção de tipo: o type de primeiro nível do gateway não é
	// confiável para mídia, vCard, enquete e localização.
	refineType(n)

	// Relay de mídia com fallback para a URL original do gateway
	if n.MediaURL != "" {
		n.MediaURL = s.relayMedia(ctx, session, conversation, n)
	}

	// Checagem de idempotência. É otimização: a fonte de verdade é a
	// chave única do banco no insert.
	existing, err := s.findMessageByExternalID(session.OrgID, n.ExternalID)
	if err != nil {
		utils.LogError("Erro na checagem de idempotência para %q: %v", n.ExternalID, err)
	}
	if existing != nil {
		utils.LogDebug("Mensagem %q já registrada, ignorando reentrega", n.ExternalID)
		return nil
	}

	message := s.buildMessage(session, conversation, contact, n)
	created, err := s.messages.Save(message)
	if err != nil {
		return fmt.Errorf("erro ao gravar mensagem %q: %v", n.ExternalID, err)
	}
	if !created {
		utils.LogDebug("Mensagem %q inserida por entrega concorrente, ignorando", n.ExternalID)
		return nil
	}

	inbound := message.Direction == models.DirectionInbound
	if conversation != nil {
		if err := s.conversations.RegisterMessage(conversation.ID, n.Timestamp, inbound); err != nil {
			utils.LogError("Erro ao atualizar contadores da conversa %d: %v", conversation.ID, err)
		}
	}
	if inbound {
		if err := s.sessions.IncrementInbound(session.ID); err != nil {
			utils.LogError("Erro ao incrementar contador da sessão %d: %v", session.ID, err)
		}
		// Identidade do telefone aprendida de forma oportunista
		if session.PhoneNumber == "" && n.RecipientJID != "" {
			if err := s.sessions.SetPhoneIdentity(session.ID, utils.PhoneFromJID(n.RecipientJID), ""); err != nil {
				utils.LogError("Erro ao gravar identidade da sessão %d: %v", session.ID, err)
			}
		}
	}

	s.notify(ctx, session, conversation, message, n)

	// Captura de lead: só entrada individual com auto_create_lead e
	// pipeline de destino configurados
	if inbound && n.ChannelType == models.ChannelIndividual &&
		session.AutoCreateLead && session.DestinationPipelineID != nil && s.leads != nil {
		if err := s.leads.Capture(ctx, session, n.ContactPhone, n.Body); err != nil {
			utils.LogError("Erro ao capturar lead para %s: %v", n.ContactPhone, err)
		}
	}

	return nil
}

func (s *WebhookService) resolveConversation(ctx context.Context, session *models.Session, contact *models.Contact, n *normalizedMessage) *models.Conversation {
	conversation, err := s.conversations.GetByChatID(session.OrgID, session.ID, n.ChatID)
	if err != nil {
		utils.LogError("Erro ao buscar conversa %q: %v", n.ChatID, err)
		return nil
	}
	if conversation != nil {
		if conversation.Name == "" && n.ChannelType != models.ChannelIndividual {
			if name, avatar := s.fetchChatDisplay(ctx, session, n); name != "" || avatar != "" {
				if err := s.conversations.UpdateDisplay(conversation.ID, name, avatar); err != nil {
					utils.LogError("Erro ao atualizar exibição da conversa %d: %v", conversation.ID, err)
				}
			}
		}
		return conversation
	}

	conversation = &models.Conversation{
		OrgID:          session.OrgID,
		SessionID:      session.ID,
		ExternalChatID: n.ChatID,
		ChannelType:    n.ChannelType,
	}
	if contact != nil && n.ChannelType == models.ChannelIndividual {
		conversation.ContactID = &contact.ID
		conversation.Name = contact.Name
		if n.SenderDisplay != "" && !n.FromMe {
			conversation.Name = n.SenderDisplay
		}
	}
	if n.ChannelType != models.ChannelIndividual {
		conversation.Name, conversation.AvatarURL = s.fetchChatDisplay(ctx, session, n)
	}

	if err := s.conversations.Create(conversation); err != nil {
		utils.LogError("Erro ao criar conversa %q: %v", n.ChatID, err)
		return nil
	}
	return conversation
}

// fetchChatDisplay busca nome e avatar de grupo/canal no gateway, com
// timeout curto: enriquecimento nunca pode segurar a persistência.
func (s *WebhookService) fetchChatDisplay(ctx context.Context, session *models.Session, n *normalizedMessage) (string, string) {
	mctx, cancel := context.WithTimeout(ctx, s.metadataTimeout)
	defer cancel()

	var name, avatar string
	switch n.ChannelType {
	case models.ChannelGroup:
		info, err := s.gw.GetGroupInfo(mctx, session.ExternalSessionName, n.ChatID)
		if err != nil {
			utils.LogWarning("Erro ao buscar metadados do grupo %q: %v", n.ChatID, err)
			return "", ""
		}
		name, avatar = info.Name, info.AvatarURL
	case models.ChannelChannel:
		info, err := s.gw.GetChannelInfo(mctx, session.ExternalSessionName, n.ChatID)
		if err != nil {
			utils.LogWarning("Erro ao buscar metadados do canal %q: %v", n.ChatID, err)
			return "", ""
		}
		name, avatar = info.Name, info.AvatarURL
	}
	return name, avatar
}

// relayMedia baixa o anexo do gateway e rehospeda no blob storage num
// caminho escopado pela conversa. Qualquer falha devolve a URL original
// (possivelmente efêmera) em vez de derrubar a mensagem.
func (s *WebhookService) relayMedia(ctx context.Context, session *models.Session, conversation *models.Conversation, n *normalizedMessage) string {
	if s.blob == nil || !utils.IsURL(n.MediaURL) {
		return n.MediaURL
	}

	mctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
	defer cancel()

	data, err := s.gw.DownloadMedia(mctx, n.MediaURL)
	if err != nil {
		utils.LogWarning("Erro ao baixar mídia de %q, mantendo URL original: %v", n.MediaURL, err)
		return n.MediaURL
	}

	var conversationID int64
	if conversation != nil {
		conversationID = conversation.ID
	}
	key := fmt.Sprintf("org_%d/conversations/%d/%s.%s",
		session.OrgID, conversationID, uuid.NewString(), utils.GetExtensionFromMime(n.MimeType))

	url, err := s.blob.UploadBytes(data, key, n.MimeType)
	if err != nil {
		utils.LogWarning("Erro ao rehospedar mídia de %q, mantendo URL original: %v", n.MediaURL, err)
		return n.MediaURL
	}
	if n.MediaSize == 0 {
		n.MediaSize = int64(len(data))
	}
	return url
}

func (s *WebhookService) buildMessage(session *models.Session, conversation *models.Conversation, contact *models.Contact, n *normalizedMessage) *models.Message {
	direction := models.DirectionInbound
	sender := n.ContactPhone
	recipient := utils.PhoneFromJID(n.RecipientJID)
	if n.FromMe {
		direction = models.DirectionOutbound
		sender = session.PhoneNumber
		recipient = utils.PhoneFromJID(n.ChatID)
	}

	ack := n.Ack
	if ack < models.AckPending || ack > models.AckPlayed {
		ack = models.AckPending
	}

	message := &models.Message{
		OrgID:             session.OrgID,
		ExternalMessageID: n.ExternalID,
		Direction:         direction,
		Sender:            sender,
		Recipient:         recipient,
		Participant:       utils.PhoneFromJID(n.Participant),
		Type:              n.Type,
		Body:              n.Body,
		Media: models.Media{
			URL:             n.MediaURL,
			MimeType:        n.MimeType,
			FileName:        n.FileName,
			Size:            n.MediaSize,
			DurationSeconds: n.Duration,
		},
		DeliveryAck:       ack,
		AckName:           models.AckName(ack),
		ReplyToExternalID: n.ReplyTo,
		PollQuestion:      n.PollQuestion,
		Latitude:          n.Latitude,
		Longitude:         n.Longitude,
		LocationName:      n.LocationName,
		RawPayload:        n.Raw,
		SentAt:            n.Timestamp,
	}
	if conversation != nil {
		message.ConversationID = conversation.ID
	}
	if contact != nil {
		message.ContactID = &contact.ID
	}
	if n.ContactName != "" && message.Body == "" {
		message.Body = n.ContactName
	}
	for _, option := range n.PollOptions {
		message.PollOptions = append(message.PollOptions, models.PollOption{Text: option})
	}
	return message
}

func (s *WebhookService) notify(ctx context.Context, session *models.Session, conversation *models.Conversation, message *models.Message, n *normalizedMessage) {
	var mediaUrl, fileName, mimeType *string
	if message.Media.URL != "" {
		mediaUrl = &message.Media.URL
	}
	if message.Media.FileName != "" {
		fileName = &message.Media.FileName
	}
	if message.Media.MimeType != "" {
		mimeType = &message.Media.MimeType
	}

	var conversationID int64
	if conversation != nil {
		conversationID = conversation.ID
	}
	wsnotify.SendMessageEvent(message.ID, conversationID, session.ID, session.OrgID,
		message.Direction, message.Type, message.Body,
		mediaUrl, fileName, mimeType, message.SentAt)

	if s.publisher == nil {
		return
	}
	envelope := events.Envelope{
		Meta: events.Meta{
			Kind:          events.KindMessageIngested,
			OrgID:         session.OrgID,
			CorrelationID: message.ExternalMessageID,
		},
		Data: events.MessageIngested{
			MessageID:         message.ID,
			ConversationID:    conversationID,
			SessionID:         session.ID,
			ExternalMessageID: message.ExternalMessageID,
			Direction:         message.Direction,
			ChannelType:       n.ChannelType,
			Type:              message.Type,
			BodyPreview:       bodyPreview(message.Body),
		},
	}
	if err := s.publisher.Publish(ctx, events.KindMessageIngested, envelope); err != nil {
		utils.LogWarning("Erro ao publicar evento de mensagem %d: %v", message.ID, err)
	}
}

func bodyPreview(body string) string {
	const max = 140
	if len(body) <= max {
		return body
	}
	return body[:max]
}
